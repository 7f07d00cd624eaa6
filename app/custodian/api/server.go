// Package api is the account/admin HTTP surface: registration, session
// issuance, node views, stake and unstake requests. It is the sole writer of
// node creation and unstake maturity; every lifecycle field belongs to the
// reconciliation engine.
package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/store"
	"go.uber.org/zap"
)

// UnstakeDelay is how long after an accepted unstake request a node becomes
// eligible for teardown.
const UnstakeDelay = 24 * time.Hour

// Server carries the handlers' dependencies.
type Server struct {
	Store  *store.Store
	Ledger ledger.Client
	Logger *zap.Logger

	// JWTSecret signs session tokens.
	JWTSecret []byte
	// MinimumStake is the smallest accepted stake request, micro-units.
	MinimumStake *big.Int
	// ReportHeight returns the monitor's last observed chain height.
	ReportHeight func() uint64
	// ReportStatus returns the engine's last step and error for a node
	// address, when one has been recorded.
	ReportStatus func(address string) (step, lastError string, ok bool)
	// Now is the request clock; defaults to time.Now.
	Now func() time.Time

	HTTP *http.Server
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes builds the router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")

	r.HandleFunc("/api/v1/register", s.Register).Methods("POST")
	r.HandleFunc("/api/v1/unlock", s.Unlock).Methods("POST")
	r.Handle("/api/v1/nodes", s.RequireAuth(http.HandlerFunc(s.ListNodes))).Methods("GET")
	r.Handle("/api/v1/node/{address}", s.RequireAuth(http.HandlerFunc(s.GetNode))).Methods("GET")
	r.Handle("/api/v1/node/{address}/unstake", s.RequireAuth(http.HandlerFunc(s.UnstakeValidator))).Methods("POST")
	r.Handle("/api/v1/stake_validator", s.RequireAuth(http.HandlerFunc(s.StakeValidator))).Methods("POST")
	return r
}

// Setup binds the HTTP server to addr.
func (s *Server) Setup(addr string) {
	s.HTTP = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs the failure and answers 500 without leaking details.
func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.Logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
