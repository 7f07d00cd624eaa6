package store

import "time"

// ValidatorNode is one managed validator account. Amount fields are decimal
// unit strings; arithmetic happens in micro-units at the engine layer.
type ValidatorNode struct {
	Address   string `gorm:"primaryKey;size:64"`
	Owner     string `gorm:"index;size:64"`
	PublicKey string `gorm:"size:128"`
	Region    string `gorm:"size:32"`
	URL       string `gorm:"size:128"`

	// Funding-account credentials. OperatingKey is the raw signing key; it is
	// read only to sign outgoing transfers and never leaves the process.
	FundingPassword string
	EncryptedKey    string
	OperatingKey    string

	StakeAmount     string // requested stake
	BalanceRequired string // stake + fee reserve

	// StakeTxRef being set is the idempotency guard: the stake transfer for
	// this node has been submitted and must never be re-sent.
	StakeTxRef string `gorm:"index;size:128"`

	Staked        bool `gorm:"index"`
	StakedAmount  string
	StakedAtBlock uint64

	// UnstakeMaturity is set exactly once, by the admin surface, on a staked
	// node. The engine tears the node down after it passes.
	UnstakeMaturity *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeletedNode is the teardown snapshot of a ValidatorNode. It is created
// exactly once per teardown and never resurrected.
type DeletedNode struct {
	Address      string `gorm:"primaryKey;size:64"`
	Owner        string `gorm:"index;size:64"`
	PublicKey    string `gorm:"size:128"`
	OperatingKey string
	StakedAmount string

	// StakeReturned records that the collateral-return transfer from the
	// treasury went through; inserting the snapshot first and flipping this
	// after makes teardown retry-safe without double-paying.
	StakeReturned bool

	// ReturnBalance stays true until the residual balance has been swept back
	// to the owner. It is the no-silent-fund-loss guarantee.
	ReturnBalance bool `gorm:"index"`

	TornDownAt time.Time
	UpdatedAt  time.Time
}

// User is an end user who owns validator nodes.
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Address      string `gorm:"index;size:64"`
	PasswordHash string
	CreatedAt    time.Time
}

// Invitation gates registration; each code is redeemable once.
type Invitation struct {
	Code string `gorm:"primaryKey;size:64"`
	// Memo records who the invitation was minted for.
	Memo       string `gorm:"size:255"`
	Valid      bool   `gorm:"index"`
	RedeemedBy string `gorm:"size:64"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
