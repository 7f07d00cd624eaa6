package custodian

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/store"
	"github.com/nodepilot/custodian/pkg/treasury"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Reserves, in micro-units. The fee reserve pads balanceRequired so a node
// can pay the network fee on its stake transfer; the residual reserve is left
// behind when sweeping a torn-down node; the operating reserve is the floor
// the daily sweep never skims below.
var (
	feeReserve       = amount.Units(1)
	residualReserve  = amount.MustParse("0.01")
	operatingReserve = amount.MustParse("1.01")
)

// EngineConfig tunes reward distribution and the pass clock.
type EngineConfig struct {
	// RewardProbability is the 1-in-N chance a staked node is rewarded on a
	// pass. Zero disables rewards.
	RewardProbability int
	// RewardMin and RewardMax bound the pseudo-random reward, micro-units.
	RewardMin *big.Int
	RewardMax *big.Int
	// Now is the pass clock; defaults to time.Now.
	Now func() time.Time
}

// Engine advances every managed node through the staking lifecycle, one pass
// per observed block increase. Passes run strictly serially; within a pass a
// node undergoes at most one externally visible chain mutation.
type Engine struct {
	Store    *store.Store
	Ledger   ledger.Client
	Treasury *treasury.Treasury
	Logger   *zap.Logger

	// Status mirrors the last step and error per node address; the API reads
	// it for operator visibility.
	Status *xsync.Map[string, NodeStatus]

	cfg  EngineConfig
	pool pond.Pool
	rng  *rand.Rand
}

// NewEngine builds the reconciliation engine.
func NewEngine(st *store.Store, cli ledger.Client, tr *treasury.Treasury, logger *zap.Logger, cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RewardMin == nil {
		cfg.RewardMin = amount.Units(1)
	}
	if cfg.RewardMax == nil || cfg.RewardMax.Cmp(cfg.RewardMin) < 0 {
		cfg.RewardMax = new(big.Int).Set(cfg.RewardMin)
	}
	return &Engine{
		Store:    st,
		Ledger:   cli,
		Treasury: tr,
		Logger:   logger,
		Status:   xsync.NewMap[string, NodeStatus](),
		cfg:      cfg,
		pool:     pond.NewPool(8),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run consumes height events until the context is canceled. The monitor's
// capacity-one channel already coalesces superseded heights, so consumption
// here is strictly serial.
func (e *Engine) Run(ctx context.Context, heights <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-heights:
			if !ok {
				return
			}
			e.Pass(ctx, h)
		}
	}
}

// Pass runs one full reconciliation cycle at the given height. Node sets are
// snapshotted up front, so a node confirmed in this pass is not also rewarded
// or torn down in it.
func (e *Engine) Pass(ctx context.Context, height uint64) {
	start := e.cfg.Now()

	unstaked, err := e.Store.NodesWhere(map[string]any{"staked": false})
	if err != nil {
		e.Logger.Error("Pass aborted: cannot list unstaked nodes", zap.Uint64("height", height), zap.Error(err))
		return
	}
	var funding, submitted []store.ValidatorNode
	for _, n := range unstaked {
		if n.StakeTxRef == "" {
			funding = append(funding, n)
		} else {
			submitted = append(submitted, n)
		}
	}
	staked, err := e.Store.NodesWhere(map[string]any{"staked": true})
	if err != nil {
		e.Logger.Error("Pass aborted: cannot list staked nodes", zap.Uint64("height", height), zap.Error(err))
		return
	}
	pendingReturns, err := e.Store.DeletedWhere(map[string]any{"return_balance": true})
	if err != nil {
		e.Logger.Error("Pass aborted: cannot list deleted nodes", zap.Uint64("height", height), zap.Error(err))
		return
	}

	e.submitStakes(ctx, height, funding)
	e.confirmStakes(ctx, height, submitted)
	e.distributeRewards(ctx, height, staked)
	e.processMaturities(ctx, height, staked)
	e.returnResiduals(ctx, height, pendingReturns)

	e.Logger.Info("Reconciliation pass complete",
		zap.Uint64("height", height),
		zap.Int("funding", len(funding)),
		zap.Int("awaitingConfirm", len(submitted)),
		zap.Int("staked", len(staked)),
		zap.Int("pendingReturns", len(pendingReturns)),
		zap.Duration("took", e.cfg.Now().Sub(start)))
}

// guard runs one node's step body with panic recovery. A failure is logged
// and recorded against the node, never propagated, so the remaining nodes in
// the pass are unaffected.
func (e *Engine) guard(height uint64, address, step string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn()
	}()
	e.record(address, step, height, err)
	if err != nil {
		e.Logger.Warn("Node step failed",
			zap.String("address", address),
			zap.String("step", step),
			zap.Uint64("height", height),
			zap.Error(err))
	}
}

// rewardAmount draws a pseudo-random reward in [RewardMin, RewardMax].
func (e *Engine) rewardAmount() *big.Int {
	span := new(big.Int).Sub(e.cfg.RewardMax, e.cfg.RewardMin)
	span.Add(span, big.NewInt(1))
	offset := new(big.Int).Rand(e.rng, span)
	return offset.Add(offset, e.cfg.RewardMin)
}
