package models

import "time"

// CatalogGroup is a mirrored menu group. Revision is the sync pass that
// last confirmed the record current.
type CatalogGroup struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ImageLink string    `db:"image_link" json:"image_link,omitempty"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Revision  int64     `db:"revision" json:"revision"`
	Included  bool      `db:"included" json:"included"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CatalogProduct is a mirrored menu product. Price is authoritative only
// for the stamped revision; amounts are in minor currency units.
type CatalogProduct struct {
	ID          string    `db:"id" json:"id"`
	GroupID     string    `db:"group_id" json:"group_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Price       int64     `db:"price" json:"price"`
	ImageLink   string    `db:"image_link" json:"image_link,omitempty"`
	Revision    int64     `db:"revision" json:"revision"`
	Included    bool      `db:"included" json:"included"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CartLine is one product in a customer's cart.
type CartLine struct {
	ID         int64  `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	ProductID  string `db:"product_id" json:"product_id"`
	Quantity   int    `db:"quantity" json:"quantity"`
}

// CartItem is a cart line joined with its mirrored product.
type CartItem struct {
	Line    CartLine       `json:"line"`
	Product CatalogProduct `json:"product"`
}

// Subtotal returns the line price at the product's stamped revision.
func (ci CartItem) Subtotal() int64 {
	return ci.Product.Price * int64(ci.Line.Quantity)
}

// Customer is the loyalty profile fetched from the POS.
type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Surname      string `json:"surname,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	BonusBalance int64  `json:"bonus_balance"`
}

// Service types
const (
	ServiceTypeDelivery = "DELIVERY"
	ServiceTypePickup   = "PICKUP"
)

// Payment methods
const (
	PaymentMethodOnline     = "ONLINE"
	PaymentMethodOnDelivery = "ON_DELIVERY"
)

// Order statuses
const (
	OrderStatusPendingSubmission = "PENDING_SUBMISSION"
	OrderStatusSubmitted         = "SUBMITTED"
)

// Order is immutable once created by the finalizer.
type Order struct {
	ID              string    `db:"id" json:"id"`
	CustomerID      string    `db:"customer_id" json:"customer_id"`
	TotalAmount     int64     `db:"total_amount" json:"total_amount"`
	BonusAmount     int64     `db:"bonus_amount" json:"bonus_amount"`
	SurchargeAmount int64     `db:"surcharge_amount" json:"surcharge_amount"`
	ServiceType     string    `db:"service_type" json:"service_type"`
	Status          string    `db:"status" json:"status"`
	ExternalID      string    `db:"external_id" json:"external_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// OrderLine captures quantity and unit price at finalize time.
type OrderLine struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}
