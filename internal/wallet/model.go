package wallet

import "time"

// Transaction types as the backend reports them.
const (
	TypeWalletFund  = "wallet_fund"
	TypeWithdrawal  = "withdrawal"
	TypeAirtime     = "airtime"
	TypeData        = "data"
	TypeBill        = "bill"
	TypeP2PTransfer = "p2p_transfer"
)

// Transaction statuses as the backend reports them.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Transaction is a server-created ledger entry. The client only reads these
// or prepends a locally-known copy after a completed action; the amount sign
// and status together drive display, never reinterpreted beyond that.
type Transaction struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Amount    int64          `json:"amount"`
	Status    string         `json:"status"`
	Reference string         `json:"reference,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
