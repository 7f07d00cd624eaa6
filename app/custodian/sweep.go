package custodian

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper skims surplus balance above the operating reserve from staked nodes
// back to their owners, once per calendar day. It never writes lifecycle
// fields, so it is safe to run alongside a reconciliation pass.
type Sweeper struct {
	Store    *store.Store
	Ledger   ledger.Client
	Logger   *zap.Logger
	Cron     *cron.Cron
	CronSpec string
}

// Start schedules the daily sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := s.Cron.AddFunc(s.CronSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		s.Run(rctx)
	}); err != nil {
		return err
	}
	s.Cron.Start()
	s.Logger.Info("Sweep job started", zap.String("cronSpec", s.CronSpec))
	return nil
}

// Stop halts the schedule after any in-flight sweep finishes.
func (s *Sweeper) Stop() {
	if s.Cron != nil {
		<-s.Cron.Stop().Done()
	}
}

// Run performs one sweep over every staked node. One node's failure is logged
// and does not stop the sweep for the rest.
func (s *Sweeper) Run(ctx context.Context) {
	nodes, err := s.Store.NodesWhere(map[string]any{"staked": true})
	if err != nil {
		s.Logger.Error("Sweep aborted: cannot list staked nodes", zap.Error(err))
		return
	}
	swept := 0
	for _, n := range nodes {
		if err := s.sweepNode(ctx, &n); err != nil {
			s.Logger.Warn("Sweep failed for node", zap.String("address", n.Address), zap.Error(err))
			continue
		}
		swept++
	}
	s.Logger.Info("Sweep complete", zap.Int("nodes", len(nodes)), zap.Int("processed", swept))
}

func (s *Sweeper) sweepNode(ctx context.Context, n *store.ValidatorNode) error {
	bal, err := s.Ledger.Balance(ctx, n.Address)
	if err != nil {
		return err
	}
	surplus := new(big.Int).Sub(bal, operatingReserve)
	if surplus.Sign() <= 0 {
		return nil
	}
	owner, err := s.Store.UserByID(n.Owner)
	if errors.Is(err, store.ErrNotFound) {
		s.Logger.Warn("Owner record missing, surplus left in place",
			zap.String("address", n.Address), zap.String("owner", n.Owner))
		return nil
	}
	if err != nil {
		return err
	}
	ref, err := s.Ledger.Send(ctx, n.OperatingKey, surplus, n.Address, owner.Address)
	if err != nil {
		return err
	}
	s.Logger.Info("Surplus swept",
		zap.String("address", n.Address),
		zap.String("owner", owner.ID),
		zap.String("amount", amount.Format(surplus)),
		zap.String("ref", ref))
	return nil
}
