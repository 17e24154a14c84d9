// Package vtu wraps the virtual top-up product endpoints: airtime, data and
// bill payments (cable, electricity), plus the customer verification lookups
// the bill screens need. Successful purchases nudge the wallet cache
// optimistically; the next refresh reconciles against the server.
package vtu

import (
	"context"
	"log/slog"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

// Service exposes the VTU purchase operations.
type Service struct {
	api    *api.Client
	cache  *wallet.Cache
	logger *slog.Logger
}

// NewService builds a VTU service.
func NewService(client *api.Client, cache *wallet.Cache, logger *slog.Logger) *Service {
	return &Service{api: client, cache: cache, logger: logger}
}

// AirtimeInput captures an airtime recharge request.
type AirtimeInput struct {
	Network string `json:"network"`
	Phone   string `json:"phone"`
	Amount  int64  `json:"amount"`
}

// DataInput captures a data bundle purchase request.
type DataInput struct {
	Network       string `json:"network"`
	Phone         string `json:"phone"`
	VariationCode string `json:"variation_code"`
	Amount        int64  `json:"amount"`
}

// BillInput captures a bill payment (cable TV, electricity) request.
type BillInput struct {
	ServiceID     string `json:"service_id"`
	CustomerID    string `json:"customer_id"`
	VariationCode string `json:"variation_code,omitempty"`
	Amount        int64  `json:"amount"`
}

// PurchaseResult is the backend's confirmation of a completed purchase.
type PurchaseResult struct {
	Message     string             `json:"message"`
	Transaction wallet.Transaction `json:"transaction"`
	// Token carries the electricity prepaid token when the bill type has one.
	Token string `json:"token,omitempty"`
}

// BuyAirtime purchases airtime and applies the optimistic cache nudge.
func (s *Service) BuyAirtime(ctx context.Context, input AirtimeInput) (PurchaseResult, error) {
	var res PurchaseResult
	if err := s.api.Post(ctx, "/vtu/airtime", input, &res, "Airtime purchase failed"); err != nil {
		return PurchaseResult{}, err
	}
	s.applyPurchase(res.Transaction)
	return res, nil
}

// BuyData purchases a data bundle and applies the optimistic cache nudge.
func (s *Service) BuyData(ctx context.Context, input DataInput) (PurchaseResult, error) {
	var res PurchaseResult
	if err := s.api.Post(ctx, "/vtu/data", input, &res, "Data purchase failed"); err != nil {
		return PurchaseResult{}, err
	}
	s.applyPurchase(res.Transaction)
	return res, nil
}

// PayBill settles a cable or electricity bill and applies the optimistic
// cache nudge.
func (s *Service) PayBill(ctx context.Context, input BillInput) (PurchaseResult, error) {
	var res PurchaseResult
	if err := s.api.Post(ctx, "/vtu/bills", input, &res, "Bill payment failed"); err != nil {
		return PurchaseResult{}, err
	}
	s.applyPurchase(res.Transaction)
	return res, nil
}

// SmartcardInput identifies a cable TV subscription to verify.
type SmartcardInput struct {
	ServiceID       string `json:"service_id"`
	SmartcardNumber string `json:"smartcard_number"`
}

// VerifySmartcard resolves the customer behind a smartcard number. The
// response shape is provider-specific; the caller only displays it.
func (s *Service) VerifySmartcard(ctx context.Context, input SmartcardInput) (map[string]any, error) {
	var res map[string]any
	if err := s.api.Post(ctx, "/vtu/verify-smartcard", input, &res, "Smartcard verification failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// MeterInput identifies an electricity meter to verify.
type MeterInput struct {
	ServiceID   string `json:"service_id"`
	MeterNumber string `json:"meter_number"`
	MeterType   string `json:"meter_type"`
}

// VerifyMeter resolves the customer behind a meter number.
func (s *Service) VerifyMeter(ctx context.Context, input MeterInput) (map[string]any, error) {
	var res map[string]any
	if err := s.api.Post(ctx, "/vtu/verify-meter", input, &res, "Meter verification failed"); err != nil {
		return nil, err
	}
	return res, nil
}

// ServiceInfo describes one purchasable VTU service.
type ServiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Variation describes one plan of a service, e.g. a data bundle size.
type Variation struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Services lists the purchasable VTU services.
func (s *Service) Services(ctx context.Context) ([]ServiceInfo, error) {
	var res struct {
		Services []ServiceInfo `json:"services"`
	}
	if err := s.api.Get(ctx, "/vtu/services", &res, "Failed to fetch services"); err != nil {
		return nil, err
	}
	return res.Services, nil
}

// Variations lists the plans available under a service.
func (s *Service) Variations(ctx context.Context, serviceID string) ([]Variation, error) {
	var res struct {
		Variations []Variation `json:"variations"`
	}
	if err := s.api.Get(ctx, "/vtu/variations/"+serviceID, &res, "Failed to fetch service variations"); err != nil {
		return nil, err
	}
	return res.Variations, nil
}

// applyPurchase records the confirmed purchase locally: prepend the new
// transaction and debit the cached balance without waiting for a refresh.
func (s *Service) applyPurchase(tx wallet.Transaction) {
	s.cache.PrependTransaction(tx)
	s.cache.ApplyLocalDebit(tx.Amount)
}
