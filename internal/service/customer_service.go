package service

import (
	"context"
	"fmt"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
)

// CustomerService exposes the POS loyalty profile. Profiles are not
// mirrored locally; the POS stays the source of truth for bonus balances.
type CustomerService struct {
	pos            ProfileClient
	organizationID string
}

// NewCustomerService creates a new customer service
func NewCustomerService(pos ProfileClient, organizationID string) *CustomerService {
	return &CustomerService{pos: pos, organizationID: organizationID}
}

// GetProfile fetches the loyalty profile for a customer.
func (s *CustomerService) GetProfile(ctx context.Context, customerID string) (*models.Customer, error) {
	info, err := s.pos.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer profile: %w", err)
	}

	return &models.Customer{
		ID:           info.ID,
		Name:         info.Name,
		Surname:      info.Surname,
		Phone:        info.Phone,
		Email:        info.Email,
		BonusBalance: info.BonusBalanceMinor(),
	}, nil
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Birthday string `json:"birthday"`
}

// UpdateProfile upserts the loyalty profile in the POS and returns the
// refreshed view.
func (s *CustomerService) UpdateProfile(ctx context.Context, customerID string, req *UpdateProfileRequest) (*models.Customer, error) {
	_, err := s.pos.CreateOrUpdateCustomer(ctx, &iiko.CreateOrUpdateCustomerRequest{
		ID:             customerID,
		Name:           req.Name,
		Surname:        req.Surname,
		Phone:          req.Phone,
		Email:          req.Email,
		Birthday:       req.Birthday,
		OrganizationID: s.organizationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update customer profile: %w", err)
	}

	return s.GetProfile(ctx, customerID)
}
