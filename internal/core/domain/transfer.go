package domain

import "time"

// TransferKind selects the validation path for a transfer. Each kind is
// dispatched to an isolated, independently testable case.
type TransferKind string

const (
	// TransferPublic is a plain signed transfer with a visible amount.
	TransferPublic TransferKind = "public"
	// TransferPrivate hides the amount behind a Pedersen commitment and
	// carries a range proof instead of a cleartext amount check.
	TransferPrivate TransferKind = "private"
	// TransferAuditablePrivate is a private transfer that additionally
	// discloses a view of the amount to the wallet's registered auditor key.
	TransferAuditablePrivate TransferKind = "auditable_private"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferFailed    TransferStatus = "FAILED"
)

// TransferRecord is the unit of settlement. Once COMPLETED it is immutable.
//
// Signature, Commitment and Proof are base64 (std encoding) strings; this
// is the single canonical byte encoding at the wire boundary. Addresses
// are hex.
type TransferRecord struct {
	ID           string
	FromWalletID string
	ToWalletID   string
	Token        string
	Amount       float64
	Fee          float64
	Kind         TransferKind
	Signature    string
	Commitment   string
	Proof        string
	Status       TransferStatus
	CreatedAt    time.Time
}
