package custodian

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/store"
	"go.uber.org/zap"
)

// submitStakes moves sufficiently funded nodes from Funding to StakeSubmitted.
// Balances are fetched in parallel; submissions run serially afterwards.
// Once a stake reference is recorded the transfer is never re-sent, even if
// confirmation lags for many passes.
func (e *Engine) submitStakes(ctx context.Context, height uint64, nodes []store.ValidatorNode) {
	if len(nodes) == 0 {
		return
	}

	balances := make([]*big.Int, len(nodes))
	balanceErrs := make([]error, len(nodes))
	group := e.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := range nodes {
		i := i
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			balances[i], balanceErrs[i] = e.Ledger.Balance(groupCtx, nodes[i].Address)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		e.Logger.Warn("Parallel balance fetch encountered error", zap.Uint64("height", height), zap.Error(err))
	}

	for i, n := range nodes {
		i, n := i, n
		e.guard(height, n.Address, "stake_submit", func() error {
			if balanceErrs[i] != nil {
				return balanceErrs[i]
			}
			if balances[i] == nil {
				// The fetch task was skipped on a canceled group context.
				return fmt.Errorf("balance fetch skipped")
			}
			required, err := amount.Parse(n.BalanceRequired)
			if err != nil {
				return err
			}
			if balances[i].Cmp(required) < 0 {
				// Still funding; untouched until the balance arrives.
				return nil
			}
			stake := new(big.Int).Sub(required, feeReserve)
			e.Logger.Info("Staking node", zap.String("address", n.Address), zap.String("amount", amount.Format(stake)))
			ref, err := e.Ledger.Send(ctx, n.OperatingKey, stake, n.Address, e.Treasury.Address())
			if err != nil {
				// No reference stored, so the next pass retries safely.
				return err
			}
			return e.Store.UpdateNode(n.Address, map[string]any{"stake_tx_ref": ref})
		})
	}
}

// confirmStakes promotes StakeSubmitted nodes whose transfer has landed in a
// block. An unindexed transaction is expected transient behavior, not an
// error.
func (e *Engine) confirmStakes(ctx context.Context, height uint64, nodes []store.ValidatorNode) {
	for _, n := range nodes {
		n := n
		e.guard(height, n.Address, "stake_confirm", func() error {
			tx, err := e.Ledger.TransactionByHash(ctx, n.StakeTxRef)
			if errors.Is(err, ledger.ErrNotFound) {
				e.Logger.Debug("Stake transfer not indexed yet", zap.String("address", n.Address), zap.String("ref", n.StakeTxRef))
				return nil
			}
			if err != nil {
				return err
			}
			if tx.Height == 0 {
				return nil
			}
			required, err := amount.Parse(n.BalanceRequired)
			if err != nil {
				return err
			}
			stake := new(big.Int).Sub(required, feeReserve)
			e.Logger.Info("Node staked",
				zap.String("address", n.Address),
				zap.String("stakedAmount", amount.Format(stake)),
				zap.Uint64("stakedAtBlock", tx.Height))
			return e.Store.UpdateNode(n.Address, map[string]any{
				"staked":          true,
				"staked_amount":   amount.Format(stake),
				"staked_at_block": tx.Height,
			})
		})
	}
}

// distributeRewards pays a bounded pseudo-random reward from the treasury to
// each eligible staked node that wins the per-pass coin flip. Nodes with a
// pending unstake request are not eligible.
func (e *Engine) distributeRewards(ctx context.Context, height uint64, nodes []store.ValidatorNode) {
	if e.cfg.RewardProbability <= 0 {
		return
	}
	for _, n := range nodes {
		n := n
		if n.UnstakeMaturity != nil {
			continue
		}
		if e.rng.Intn(e.cfg.RewardProbability) != 0 {
			continue
		}
		e.guard(height, n.Address, "reward", func() error {
			reward := e.rewardAmount()
			ref, err := e.Ledger.Send(ctx, e.Treasury.SigningKey(), reward, e.Treasury.Address(), n.Address)
			if err != nil {
				return err
			}
			e.Logger.Info("Reward paid",
				zap.String("address", n.Address),
				zap.String("amount", amount.Format(reward)),
				zap.String("ref", ref))
			return nil
		})
	}
}

// processMaturities tears down staked nodes whose unstake maturity has
// passed: return the collateral from the treasury, snapshot the node into the
// deleted collection, and remove it from the active set. The snapshot is
// inserted before the transfer so a retry after a partial failure never pays
// the collateral twice.
func (e *Engine) processMaturities(ctx context.Context, height uint64, nodes []store.ValidatorNode) {
	now := e.cfg.Now()
	for _, n := range nodes {
		n := n
		if n.UnstakeMaturity == nil || n.UnstakeMaturity.After(now) {
			continue
		}
		e.guard(height, n.Address, "teardown", func() error {
			snap, err := e.Store.DeletedByAddress(n.Address)
			if errors.Is(err, store.ErrNotFound) {
				snap = &store.DeletedNode{
					Address:       n.Address,
					Owner:         n.Owner,
					PublicKey:     n.PublicKey,
					OperatingKey:  n.OperatingKey,
					StakedAmount:  n.StakedAmount,
					ReturnBalance: true,
					TornDownAt:    now,
				}
				if err := e.Store.InsertDeleted(snap); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			if !snap.StakeReturned {
				collateral, err := amount.Parse(n.StakedAmount)
				if err != nil {
					return err
				}
				if _, err := e.Ledger.Send(ctx, e.Treasury.SigningKey(), collateral, e.Treasury.Address(), n.Address); err != nil {
					return err
				}
				if err := e.Store.UpdateDeleted(n.Address, map[string]any{"stake_returned": true}); err != nil {
					return err
				}
			}

			e.Logger.Info("Node torn down", zap.String("address", n.Address), zap.String("collateral", n.StakedAmount))
			return e.Store.RemoveNode(n.Address)
		})
	}
}

// returnResiduals sweeps the leftover balance of torn-down nodes back to
// their owners. A zero balance is indistinguishable from already-returned, so
// the flag is left set for a later pass; a missing owner record likewise
// keeps the flag, so funds are never dropped silently.
func (e *Engine) returnResiduals(ctx context.Context, height uint64, deleted []store.DeletedNode) {
	for _, d := range deleted {
		d := d
		e.guard(height, d.Address, "residual_return", func() error {
			bal, err := e.Ledger.Balance(ctx, d.Address)
			if err != nil {
				return err
			}
			if bal.Sign() == 0 {
				return nil
			}
			owner, err := e.Store.UserByID(d.Owner)
			if errors.Is(err, store.ErrNotFound) {
				e.Logger.Warn("Owner record missing, residual return deferred",
					zap.String("address", d.Address), zap.String("owner", d.Owner))
				return nil
			}
			if err != nil {
				return err
			}
			residual := new(big.Int).Sub(bal, residualReserve)
			if residual.Sign() <= 0 {
				return nil
			}
			if _, err := e.Ledger.Send(ctx, d.OperatingKey, residual, d.Address, owner.Address); err != nil {
				return err
			}
			e.Logger.Info("Residual balance returned",
				zap.String("address", d.Address),
				zap.String("owner", owner.ID),
				zap.String("amount", amount.Format(residual)))
			return e.Store.UpdateDeleted(d.Address, map[string]any{"return_balance": false})
		})
	}
}
