package custodian

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nodepilot/custodian/pkg/datastore"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Monitor polls the chain head on a cron tick and publishes strictly
// increasing heights. The channel has capacity one and a pending stale height
// is replaced rather than queued: every reconciliation pass re-scans full
// state, so only the newest height matters.
type Monitor struct {
	Ledger   ledger.Client
	Data     *datastore.Store
	Logger   *zap.Logger
	Cron     *cron.Cron
	CronSpec string

	height  atomic.Uint64
	heights chan uint64
}

// NewMonitor builds a monitor, restoring the persisted block cursor when one
// exists.
func NewMonitor(cli ledger.Client, ds *datastore.Store, logger *zap.Logger, cronSpec string) (*Monitor, error) {
	m := &Monitor{
		Ledger:   cli,
		Data:     ds,
		Logger:   logger,
		CronSpec: cronSpec,
		heights:  make(chan uint64, 1),
	}
	var cursor uint64
	if ok, err := ds.Get(datastore.KeyBlock, &cursor); err != nil {
		return nil, err
	} else if ok {
		m.height.Store(cursor)
	}
	return m, nil
}

// Heights is the strictly-increasing height feed consumed by the engine.
func (m *Monitor) Heights() <-chan uint64 { return m.heights }

// Height returns the last observed chain height.
func (m *Monitor) Height() uint64 { return m.height.Load() }

// Start begins the polling schedule.
func (m *Monitor) Start(ctx context.Context) error {
	m.Cron = cron.New(cron.WithSeconds(), cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	if _, err := m.Cron.AddFunc(m.CronSpec, func() {
		// keep each probe bounded
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		m.Observe(octx)
	}); err != nil {
		return err
	}
	m.Cron.Start()
	m.Logger.Info("Block monitor started", zap.String("cronSpec", m.CronSpec), zap.Uint64("cursor", m.Height()))
	return nil
}

// Stop halts the schedule after any in-flight probe finishes.
func (m *Monitor) Stop() {
	if m.Cron != nil {
		<-m.Cron.Stop().Done()
	}
}

// Observe performs one height probe. Query failures are reported and skipped;
// the next tick retries. Heights equal to or below the cursor are ignored,
// which also swallows clock-skew and reorg noise.
func (m *Monitor) Observe(ctx context.Context) {
	h, err := m.Ledger.Head(ctx)
	if err != nil {
		m.Logger.Warn("Height probe failed", zap.Error(err))
		return
	}
	last := m.height.Load()
	if h <= last {
		return
	}
	m.height.Store(h)
	if err := m.Data.Set(datastore.KeyBlock, h); err != nil {
		m.Logger.Warn("Persist block cursor failed", zap.Uint64("height", h), zap.Error(err))
	}
	m.publish(h)
	m.Logger.Debug("Block increase", zap.Uint64("height", h), zap.Uint64("previous", last))
}

// publish delivers h without blocking, dropping a superseded pending height.
func (m *Monitor) publish(h uint64) {
	for {
		select {
		case m.heights <- h:
			return
		default:
			select {
			case <-m.heights:
			default:
			}
		}
	}
}
