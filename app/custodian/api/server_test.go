package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/keys"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/store"
	"github.com/nodepilot/custodian/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOwnerAddr = "dddddddddddddddddddddddddddddddddddddddd"

// setupTestServer creates a server with an in-memory store and a fake chain
// client that answers every balance with one unit.
func setupTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)

	cli := ledger.FuncClient{
		BalanceFunc: func(_ context.Context, _ string) (*big.Int, error) {
			return amount.Units(1), nil
		},
		CreateAccountFunc: func(_ context.Context, password string) (*keys.Account, error) {
			return &keys.Account{
				Address:             "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				PublicKey:           "pub",
				EncryptedPrivateKey: "armored",
				RawPrivateKey:       "raw",
				Password:            password,
			}, nil
		},
	}

	return &Server{
		Store:        st,
		Ledger:       cli,
		Logger:       zap.NewNop(),
		JWTSecret:    []byte("test-secret"),
		MinimumStake: amount.Units(15100),
		ReportHeight: func() uint64 { return 77 },
	}
}

func seedUser(t *testing.T, s *Server) (userID, token string) {
	t.Helper()
	userID = utils.GenerateID()
	hash, err := utils.HashOrRead("hunter2")
	require.NoError(t, err)
	require.NoError(t, s.Store.InsertUser(&store.User{
		ID: userID, Address: testOwnerAddr, PasswordHash: string(hash),
	}))
	token, _, err = s.IssueSession(userID)
	require.NoError(t, err)
	return userID, token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRedeemsInvitation(t *testing.T) {
	s := setupTestServer(t)
	minted, err := s.Store.MintInvitation("new operator")
	require.NoError(t, err)
	router := s.Routes()

	rec := doJSON(t, router, "POST", "/api/v1/register", "", map[string]string{
		"invitation": minted.Code,
		"password":   "hunter2",
		"address":    testOwnerAddr,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)

	user, err := s.Store.UserByID(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, testOwnerAddr, user.Address)

	inv, err := s.Store.InvitationByCode(minted.Code)
	require.NoError(t, err)
	assert.False(t, inv.Valid)
	assert.Equal(t, resp.ID, inv.RedeemedBy)

	// A redeemed invitation cannot be reused.
	rec = doJSON(t, router, "POST", "/api/v1/register", "", map[string]string{
		"invitation": minted.Code,
		"password":   "other",
		"address":    testOwnerAddr,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := setupTestServer(t)
	router := s.Routes()

	tests := []struct {
		name string
		body map[string]string
		code int
	}{
		{"missing invitation", map[string]string{"password": "x", "address": testOwnerAddr}, http.StatusBadRequest},
		{"missing password", map[string]string{"invitation": "i", "address": testOwnerAddr}, http.StatusBadRequest},
		{"bad address", map[string]string{"invitation": "i", "password": "x", "address": "zz"}, http.StatusBadRequest},
		{"unknown invitation", map[string]string{"invitation": "nope", "password": "x", "address": testOwnerAddr}, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/api/v1/register", "", tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestUnlockIssuesToken(t *testing.T) {
	s := setupTestServer(t)
	userID, _ := seedUser(t, s)
	router := s.Routes()

	rec := doJSON(t, router, "POST", "/api/v1/unlock", "", map[string]string{
		"id": userID, "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UnlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	// The issued token passes the auth middleware.
	rec = doJSON(t, router, "GET", "/api/v1/nodes", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/unlock", "", map[string]string{
		"id": userID, "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := setupTestServer(t)
	router := s.Routes()

	for _, path := range []string{"/api/v1/nodes", "/api/v1/node/aaa"} {
		rec := doJSON(t, router, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := doJSON(t, router, "GET", "/api/v1/nodes", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStakeValidatorCreatesNode(t *testing.T) {
	s := setupTestServer(t)
	userID, token := seedUser(t, s)
	router := s.Routes()

	rec := doJSON(t, router, "POST", "/api/v1/stake_validator", token, map[string]string{
		"password":    "node-pass",
		"stakeAmount": "15100",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StakeValidatorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", resp.Address)
	assert.Equal(t, "15101", resp.BalanceRequired)
	// The raw operating key never leaves the service.
	assert.NotContains(t, rec.Body.String(), `"raw"`)

	n, err := s.Store.NodeByAddress(resp.Address)
	require.NoError(t, err)
	assert.Equal(t, userID, n.Owner)
	assert.Equal(t, "15100", n.StakeAmount)
	assert.Equal(t, "15101", n.BalanceRequired)
	assert.False(t, n.Staked)
	assert.Empty(t, n.StakeTxRef)
}

func TestStakeValidatorRejectsBelowMinimum(t *testing.T) {
	s := setupTestServer(t)
	_, token := seedUser(t, s)
	router := s.Routes()

	rec := doJSON(t, router, "POST", "/api/v1/stake_validator", token, map[string]string{
		"password":    "node-pass",
		"stakeAmount": "15099",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/stake_validator", token, map[string]string{
		"password":    "node-pass",
		"stakeAmount": "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeViewsAreOwnerScoped(t *testing.T) {
	s := setupTestServer(t)
	userID, token := seedUser(t, s)
	_, otherToken := seedUser(t, s)
	s.ReportStatus = func(address string) (string, string, bool) {
		if address == "aaa" {
			return "stake_confirm", "", true
		}
		return "", "", false
	}
	router := s.Routes()

	require.NoError(t, s.Store.InsertNode(&store.ValidatorNode{
		Address: "aaa", Owner: userID, PublicKey: "pub-aaa",
		Region: "us-east", URL: "node-aaa.example.com",
		StakeAmount: "15100", BalanceRequired: "15101",
		Staked: true, StakedAmount: "15100", StakedAtBlock: 42,
	}))

	rec := doJSON(t, router, "GET", "/api/v1/nodes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []NodeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "aaa", views[0].Address)
	assert.Equal(t, "1", views[0].Balance)
	assert.Equal(t, uint64(77), views[0].ReportBlock)
	assert.Equal(t, uint64(42), views[0].StakedBlock)
	assert.Equal(t, "stake_confirm", views[0].Step)
	assert.False(t, views[0].Jailed)
	assert.Contains(t, rec.Body.String(), `"jailed":false`)

	// The other user sees nothing.
	rec = doJSON(t, router, "GET", "/api/v1/nodes", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Empty(t, views)

	rec = doJSON(t, router, "GET", "/api/v1/node/aaa", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/node/aaa", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnstakeValidator(t *testing.T) {
	s := setupTestServer(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	userID, token := seedUser(t, s)
	router := s.Routes()

	require.NoError(t, s.Store.InsertNode(&store.ValidatorNode{
		Address: "aaa", Owner: userID,
		StakeAmount: "15100", BalanceRequired: "15101",
		Staked: true, StakedAmount: "15100",
	}))
	require.NoError(t, s.Store.InsertNode(&store.ValidatorNode{
		Address: "bbb", Owner: userID,
		StakeAmount: "15100", BalanceRequired: "15101",
	}))

	rec := doJSON(t, router, "POST", "/api/v1/node/aaa/unstake", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UnstakeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, now.Add(UnstakeDelay).Format(time.RFC3339), resp.UnstakeDate)

	n, err := s.Store.NodeByAddress("aaa")
	require.NoError(t, err)
	require.NotNil(t, n.UnstakeMaturity)
	assert.Equal(t, now.Add(UnstakeDelay).Unix(), n.UnstakeMaturity.Unix())

	// Repeated request is rejected.
	rec = doJSON(t, router, "POST", "/api/v1/node/aaa/unstake", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// An unstaked node cannot be unstaked.
	rec = doJSON(t, router, "POST", "/api/v1/node/bbb/unstake", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionExpiry(t *testing.T) {
	s := setupTestServer(t)
	past := time.Now().Add(-48 * time.Hour)
	s.Now = func() time.Time { return past }
	userID, _ := seedUser(t, s)
	token, _, err := s.IssueSession(userID)
	require.NoError(t, err)
	s.Now = nil

	router := s.Routes()
	rec := doJSON(t, router, "GET", "/api/v1/nodes", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
