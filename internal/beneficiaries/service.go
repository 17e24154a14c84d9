// Package beneficiaries wraps the saved-recipient endpoints used by the
// airtime/data screens (phone) and P2P-style sends (email).
package beneficiaries

import (
	"context"
	"fmt"

	"github.com/zippy-pay/zippy_mobile/internal/api"
)

// Service exposes beneficiary management.
type Service struct {
	api *api.Client
}

// NewService builds a beneficiary service.
func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// PhoneBeneficiary is a saved airtime/data recipient.
type PhoneBeneficiary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

// EmailBeneficiary is a saved wallet-transfer recipient.
type EmailBeneficiary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ListPhone returns the saved phone beneficiaries.
func (s *Service) ListPhone(ctx context.Context) ([]PhoneBeneficiary, error) {
	var res struct {
		Beneficiaries []PhoneBeneficiary `json:"beneficiaries"`
	}
	if err := s.api.Get(ctx, "/beneficiaries/phone", &res, "Failed to fetch beneficiaries"); err != nil {
		return nil, err
	}
	return res.Beneficiaries, nil
}

// AddPhone saves a phone beneficiary.
func (s *Service) AddPhone(ctx context.Context, b PhoneBeneficiary) (PhoneBeneficiary, error) {
	var res struct {
		Beneficiary PhoneBeneficiary `json:"beneficiary"`
	}
	if err := s.api.Post(ctx, "/beneficiaries/phone", b, &res, "Failed to add beneficiary"); err != nil {
		return PhoneBeneficiary{}, err
	}
	return res.Beneficiary, nil
}

// DeletePhone removes a phone beneficiary.
func (s *Service) DeletePhone(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, fmt.Sprintf("/beneficiaries/phone/%d", id), nil, "Failed to delete beneficiary")
}

// ListEmail returns the saved email beneficiaries.
func (s *Service) ListEmail(ctx context.Context) ([]EmailBeneficiary, error) {
	var res struct {
		Beneficiaries []EmailBeneficiary `json:"beneficiaries"`
	}
	if err := s.api.Get(ctx, "/beneficiaries/email", &res, "Failed to fetch beneficiaries"); err != nil {
		return nil, err
	}
	return res.Beneficiaries, nil
}

// AddEmail saves an email beneficiary.
func (s *Service) AddEmail(ctx context.Context, b EmailBeneficiary) (EmailBeneficiary, error) {
	var res struct {
		Beneficiary EmailBeneficiary `json:"beneficiary"`
	}
	if err := s.api.Post(ctx, "/beneficiaries/email", b, &res, "Failed to add beneficiary"); err != nil {
		return EmailBeneficiary{}, err
	}
	return res.Beneficiary, nil
}

// DeleteEmail removes an email beneficiary.
func (s *Service) DeleteEmail(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, fmt.Sprintf("/beneficiaries/email/%d", id), nil, "Failed to delete beneficiary")
}
