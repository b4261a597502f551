package domain

import "time"

// Wallet holds the public half of an account's key bundle. The secret key
// is returned exactly once at creation and never persisted server-side.
type Wallet struct {
	ID             string
	UserID         string
	Address        string
	PublicKey      string // base64
	AuditPublicKey string // base64, optional; set for auditable wallets
	CreatedAt      time.Time
}

// Balance is one (wallet, token) row. An absent row means zero.
type Balance struct {
	WalletID  string
	Token     string
	Amount    float64
	UpdatedAt time.Time
}

// Stake is the locked portion of a wallet's native-token balance.
type Stake struct {
	WalletID string
	Amount   float64
	StakedAt time.Time
}
