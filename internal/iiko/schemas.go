package iiko

import "fmt"

// APIError is a non-retryable response from the POS API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("iiko api error: status=%d body=%s", e.Status, e.Body)
}

type accessTokenResult struct {
	CorrelationID string `json:"correlationId"`
	Token         string `json:"token"`
}

// DeltaGroup is a menu group entry in a nomenclature delta.
type DeltaGroup struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ImageLinks       []string `json:"imageLinks"`
	ParentGroup      *string  `json:"parentGroup"`
	IsDeleted        bool     `json:"isDeleted"`
	IsIncludedInMenu bool     `json:"isIncludedInMenu"`
	IsGroupModifier  bool     `json:"isGroupModifier"`
}

// SizePrice carries the current price for one product size.
type SizePrice struct {
	Price struct {
		CurrentPrice float64 `json:"currentPrice"`
	} `json:"price"`
}

// DeltaProduct is a product entry in a nomenclature delta. Type is one of
// Dish, Good, Modifier or Service; only Dish and Good are sellable.
type DeltaProduct struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	GroupID          *string     `json:"groupId"`
	SizePrices       []SizePrice `json:"sizePrices"`
	ImageLinks       []string    `json:"imageLinks"`
	Type             string      `json:"type"`
	IsDeleted        bool        `json:"isDeleted"`
	IsIncludedInMenu bool        `json:"isIncludedInMenu"`
}

// CurrentPriceMinor returns the product price in minor currency units.
func (p DeltaProduct) CurrentPriceMinor() int64 {
	if len(p.SizePrices) == 0 {
		return 0
	}
	return int64(p.SizePrices[0].Price.CurrentPrice * 100)
}

// DeltaResult is the menu state since a given revision. All items in one
// response share the response revision.
type DeltaResult struct {
	CorrelationID string         `json:"correlationId"`
	Groups        []DeltaGroup   `json:"groups"`
	Products      []DeltaProduct `json:"products"`
	Revision      int64          `json:"revision"`
}

// DeliveryAddress is the address part of a serviceability request.
type DeliveryAddress struct {
	City       string `json:"city"`
	StreetName string `json:"streetName"`
	House      string `json:"house"`
}

// ServiceabilityRequest asks which terminals can serve an address and sum.
type ServiceabilityRequest struct {
	OrganizationIDs   []string        `json:"organizationIds"`
	DeliveryAddress   DeliveryAddress `json:"deliveryAddress"`
	IsCourierDelivery bool            `json:"isCourierDelivery"`
	DeliverySum       int64           `json:"deliverySum"`
}

// AllowedItem is one terminal able to serve the requested delivery.
type AllowedItem struct {
	TerminalGroupID           string `json:"terminalGroupId"`
	OrganizationID            string `json:"organizationId"`
	DeliveryServiceProductID  string `json:"deliveryServiceProductId"`
	DeliveryDurationInMinutes int    `json:"deliveryDurationInMinutes"`
	Zone                      string `json:"zone"`
}

// ServiceabilityResult lists the terminals allowed to serve the request;
// empty means the address is outside every delivery zone.
type ServiceabilityResult struct {
	CorrelationID string        `json:"correlationId"`
	AllowedItems  []AllowedItem `json:"allowedItems"`
}

// WalletBalance is one loyalty wallet of a customer.
type WalletBalance struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    int     `json:"type"`
	Balance float64 `json:"balance"`
}

// CustomerInfo is the loyalty profile returned by the POS.
type CustomerInfo struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Surname        string          `json:"surname"`
	MiddleName     string          `json:"middleName"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	WalletBalances []WalletBalance `json:"walletBalances"`
}

// BonusBalanceMinor sums all wallet balances in minor currency units.
func (c CustomerInfo) BonusBalanceMinor() int64 {
	var total float64
	for _, w := range c.WalletBalances {
		total += w.Balance
	}
	return int64(total * 100)
}

// CreateOrUpdateCustomerRequest upserts a loyalty profile.
type CreateOrUpdateCustomerRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Birthday       string `json:"birthday,omitempty"`
	OrganizationID string `json:"organizationId"`
}

type createOrUpdateCustomerResult struct {
	ID string `json:"id"`
}

// Organization is a serving location known to the POS.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type organizationsResult struct {
	CorrelationID string         `json:"correlationId"`
	Organizations []Organization `json:"organizations"`
}

// OrderItem is one product line in an outbound order.
type OrderItem struct {
	ProductID string `json:"productId"`
	Type      string `json:"type"`
	Amount    int    `json:"amount"`
}

// OrderPayment is one settlement entry of an outbound order.
type OrderPayment struct {
	PaymentTypeKind       string `json:"paymentTypeKind,omitempty"`
	Sum                   int64  `json:"sum"`
	IsPrepay              bool   `json:"isPrepay,omitempty"`
	IsProcessedExternally bool   `json:"isProcessedExternally,omitempty"`
}

// Street is the street part of a delivery point.
type Street struct {
	City string `json:"city"`
	Name string `json:"name"`
}

// Address is the structured address of a delivery point.
type Address struct {
	Street   Street `json:"street"`
	House    string `json:"house"`
	Entrance string `json:"entrance,omitempty"`
	Floor    string `json:"floor,omitempty"`
	Flat     string `json:"flat,omitempty"`
}

// DeliveryPoint is where a courier order is delivered.
type DeliveryPoint struct {
	Address Address `json:"address"`
}

// OrderPayload is the order body of a delivery-create request.
type OrderPayload struct {
	Phone            string         `json:"phone"`
	OrderServiceType string         `json:"orderServiceType"`
	CompleteBefore   string         `json:"completeBefore,omitempty"`
	Items            []OrderItem    `json:"items"`
	Payments         []OrderPayment `json:"payments,omitempty"`
	DeliveryPoint    *DeliveryPoint `json:"deliveryPoint,omitempty"`
	Comment          string         `json:"comment,omitempty"`
}

// DeliveryCreateRequest submits an order to the POS.
type DeliveryCreateRequest struct {
	OrganizationID  string       `json:"organizationId"`
	TerminalGroupID string       `json:"terminalGroupId"`
	Order           OrderPayload `json:"order"`
}

// DeliveryCreateResult is the POS acknowledgement of a created order.
type DeliveryCreateResult struct {
	CorrelationID string `json:"correlationId"`
	OrderInfo     struct {
		ID string `json:"id"`
	} `json:"orderInfo"`
}
