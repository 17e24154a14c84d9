package funding

import (
	"context"

	"github.com/google/uuid"
)

// PopupStatus is the single outcome a popup run resolves to.
type PopupStatus int

const (
	// PopupSuccess means the provider accepted the payment client-side.
	PopupSuccess PopupStatus = iota + 1
	// PopupError means the popup failed before any charge was confirmed.
	PopupError
	// PopupCancelled means the user dismissed the popup.
	PopupCancelled
)

// PopupData carries the provider's settlement reference. Some providers
// report it under trxref instead of reference; SettlementReference normalizes.
type PopupData struct {
	Reference string `json:"reference"`
	Trxref    string `json:"trxref"`
}

// SettlementReference returns the provider reference, preferring the primary
// field over the trxref alias.
func (d PopupData) SettlementReference() string {
	if d.Reference != "" {
		return d.Reference
	}
	return d.Trxref
}

// PopupRequest is what the external payment popup needs to open.
type PopupRequest struct {
	Key       string
	Email     string
	Amount    int64
	Reference string
}

// PopupOutcome is the resolved result of one popup run. Exactly one of the
// three statuses is set; Err is populated only for PopupError.
type PopupOutcome struct {
	Status PopupStatus
	Data   PopupData
	Err    error
}

// Popup is the externally hosted card/bank/USSD payment surface. Open blocks
// until the user finishes with the popup and resolves to a single outcome.
type Popup interface {
	Open(ctx context.Context, req PopupRequest) (PopupOutcome, error)
}

// StaticPopup simulates a provider that approves every payment, assigning a
// synthetic provider reference. Used against the sandbox and in tests.
type StaticPopup struct{}

// Open approves the payment with a provider-assigned reference.
func (StaticPopup) Open(context.Context, PopupRequest) (PopupOutcome, error) {
	return PopupOutcome{
		Status: PopupSuccess,
		Data:   PopupData{Reference: "PSK_" + uuid.NewString()},
	}, nil
}
