package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/store"
	"github.com/nodepilot/custodian/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// validAddress checks for a 20-byte hex account address.
func validAddress(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Register redeems an invitation and creates a user account.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	switch {
	case req.Invitation == "":
		s.writeError(w, http.StatusBadRequest, "request body must include an invitation string")
		return
	case req.Password == "":
		s.writeError(w, http.StatusBadRequest, "request body must include a password string")
		return
	case !validAddress(req.Address):
		s.writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	inv, err := s.Store.InvitationByCode(req.Invitation)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !inv.Valid) {
		s.writeError(w, http.StatusUnauthorized, "no valid invitation found")
		return
	}
	if err != nil {
		s.internalError(w, "register", err)
		return
	}

	hash, err := utils.HashOrRead(req.Password)
	if err != nil {
		s.internalError(w, "register", err)
		return
	}
	userID := utils.GenerateID()
	if err := s.Store.UpdateInvitation(inv.Code, map[string]any{"valid": false, "redeemed_by": userID}); err != nil {
		s.internalError(w, "register", err)
		return
	}
	if err := s.Store.InsertUser(&store.User{ID: userID, Address: req.Address, PasswordHash: string(hash)}); err != nil {
		s.internalError(w, "register", err)
		return
	}
	s.Logger.Info("User registered", zap.String("user", userID))
	s.writeJSON(w, http.StatusOK, RegisterResponse{ID: userID})
}

// Unlock verifies credentials and issues a session token.
func (s *Server) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.Password == "" {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := s.Store.UserByID(req.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		s.internalError(w, "unlock", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, expiration, err := s.IssueSession(user.ID)
	if err != nil {
		s.internalError(w, "unlock", err)
		return
	}
	s.Logger.Info("Unlock", zap.String("user", user.ID))
	s.writeJSON(w, http.StatusOK, UnlockResponse{Token: token, Expiration: expiration.UTC().Format(time.RFC3339)})
}

func (s *Server) nodeView(r *http.Request, n *store.ValidatorNode) NodeView {
	view := NodeView{
		Address:      n.Address,
		PublicKey:    n.PublicKey,
		Region:       n.Region,
		ReportBlock:  s.ReportHeight(),
		Staked:       n.Staked,
		StakedAmount: n.StakedAmount,
		StakedBlock:  n.StakedAtBlock,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		URL:          n.URL,
	}
	if n.UnstakeMaturity != nil {
		view.UnstakeDate = n.UnstakeMaturity.UTC().Format(time.RFC3339)
	}
	if s.ReportStatus != nil {
		if step, lastErr, ok := s.ReportStatus(n.Address); ok {
			view.Step = step
			view.StepError = lastErr
		}
	}
	if bal, err := s.Ledger.Balance(r.Context(), n.Address); err == nil {
		view.Balance = amount.Format(bal)
	} else {
		s.Logger.Warn("Balance lookup failed", zap.String("address", n.Address), zap.Error(err))
		view.Balance = "0"
	}
	return view
}

// ListNodes returns the caller's nodes with live balances.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	nodes, err := s.Store.NodesWhere(map[string]any{"owner": userID})
	if err != nil {
		s.internalError(w, "nodes", err)
		return
	}
	views := make([]NodeView, 0, len(nodes))
	for i := range nodes {
		views = append(views, s.nodeView(r, &nodes[i]))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// GetNode returns a single node owned by the caller.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	address := mux.Vars(r)["address"]
	n, err := s.Store.NodeByAddress(address)
	if errors.Is(err, store.ErrNotFound) || (err == nil && n.Owner != userID) {
		s.writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err != nil {
		s.internalError(w, "node", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.nodeView(r, n))
}

// StakeValidator creates a funding account and node record. The node stays in
// Funding until the engine observes a sufficient balance.
func (s *Server) StakeValidator(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	var req StakeValidatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "request body must include a password string")
		return
	}
	stake, err := amount.Parse(req.StakeAmount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must include a stakeAmount string")
		return
	}
	if stake.Cmp(s.MinimumStake) < 0 {
		s.writeError(w, http.StatusBadRequest, "stakeAmount must be at least "+amount.Format(s.MinimumStake))
		return
	}

	acct, err := s.Ledger.CreateAccount(r.Context(), req.Password)
	if err != nil {
		s.internalError(w, "stake_validator", err)
		return
	}
	balanceRequired := amount.Format(new(big.Int).Add(stake, amount.Units(1)))
	node := &store.ValidatorNode{
		Address:         acct.Address,
		Owner:           userID,
		PublicKey:       acct.PublicKey,
		Region:          "us-east",
		URL:             utils.GenerateNodeURL(),
		FundingPassword: req.Password,
		EncryptedKey:    acct.EncryptedPrivateKey,
		OperatingKey:    acct.RawPrivateKey,
		StakeAmount:     amount.Format(stake),
		BalanceRequired: balanceRequired,
	}
	if err := s.Store.InsertNode(node); err != nil {
		s.internalError(w, "stake_validator", err)
		return
	}
	s.Logger.Info("Create validator", zap.String("address", acct.Address), zap.String("user", userID))
	s.writeJSON(w, http.StatusOK, StakeValidatorResponse{
		Address:             acct.Address,
		PublicKey:           acct.PublicKey,
		EncryptedPrivateKey: acct.EncryptedPrivateKey,
		Password:            acct.Password,
		BalanceRequired:     balanceRequired,
	})
}

// UnstakeValidator schedules a staked node for teardown after the unstake
// delay. It is the only writer of the maturity timestamp.
func (s *Server) UnstakeValidator(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	address := mux.Vars(r)["address"]
	n, err := s.Store.NodeByAddress(address)
	if errors.Is(err, store.ErrNotFound) || (err == nil && n.Owner != userID) {
		s.writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err != nil {
		s.internalError(w, "unstake", err)
		return
	}
	if !n.Staked {
		s.writeError(w, http.StatusBadRequest, "node is not staked")
		return
	}
	if n.UnstakeMaturity != nil {
		s.writeError(w, http.StatusBadRequest, "node is already scheduled to be unstaked")
		return
	}
	maturity := s.now().Add(UnstakeDelay).UTC()
	if err := s.Store.UpdateNode(address, map[string]any{"unstake_maturity": maturity}); err != nil {
		s.internalError(w, "unstake", err)
		return
	}
	s.Logger.Info("Unstake scheduled", zap.String("address", address), zap.Time("maturity", maturity))
	s.writeJSON(w, http.StatusOK, UnstakeResponse{Address: address, UnstakeDate: maturity.Format(time.RFC3339)})
}
