package api

// RegisterRequest redeems an invitation for a new user account.
type RegisterRequest struct {
	Invitation string `json:"invitation"`
	Password   string `json:"password"`
	Address    string `json:"address"`
}

// RegisterResponse returns the generated user id.
type RegisterResponse struct {
	ID string `json:"id"`
}

// UnlockRequest exchanges user credentials for a session token.
type UnlockRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// UnlockResponse carries the session token and its expiration.
type UnlockResponse struct {
	Token      string `json:"token"`
	Expiration string `json:"expiration"`
}

// StakeValidatorRequest provisions a new validator node.
type StakeValidatorRequest struct {
	Password    string `json:"password"`
	StakeAmount string `json:"stakeAmount"`
}

// StakeValidatorResponse returns the funding account the user must top up.
// The raw operating key is deliberately absent: the encrypted key plus the
// password is everything the owner needs.
type StakeValidatorResponse struct {
	Address             string `json:"address"`
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	Password            string `json:"password"`
	BalanceRequired     string `json:"balanceRequired"`
}

// UnstakeResponse confirms an accepted unstake request.
type UnstakeResponse struct {
	Address     string `json:"address"`
	UnstakeDate string `json:"unstakeDate"`
}

// NodeView is the API representation of a managed node.
type NodeView struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	// Jailed is always false for now; the ledger client does not report
	// jailing yet.
	Jailed       bool   `json:"jailed"`
	PublicKey    string `json:"publicKey"`
	Region       string `json:"region"`
	ReportBlock  uint64 `json:"reportBlock"`
	Staked       bool   `json:"staked"`
	StakedAmount string `json:"stakedAmount"`
	StakedBlock  uint64 `json:"stakedBlock"`
	Step         string `json:"step,omitempty"`
	StepError    string `json:"stepError,omitempty"`
	Timestamp    string `json:"timestamp"`
	UnstakeDate  string `json:"unstakeDate,omitempty"`
	URL          string `json:"url"`
}
