package custodian

import (
	"context"
	"math/big"
	"net/http"
	"path/filepath"
	"time"

	"github.com/nodepilot/custodian/app/custodian/api"
	"github.com/nodepilot/custodian/pkg/amount"
	"github.com/nodepilot/custodian/pkg/datastore"
	"github.com/nodepilot/custodian/pkg/ledger"
	"github.com/nodepilot/custodian/pkg/logging"
	"github.com/nodepilot/custodian/pkg/retry"
	"github.com/nodepilot/custodian/pkg/store"
	"github.com/nodepilot/custodian/pkg/treasury"
	"github.com/nodepilot/custodian/pkg/utils"
	"go.uber.org/zap"
)

type App struct {
	Monitor  *Monitor
	Engine   *Engine
	Sweeper  *Sweeper
	Server   *api.Server
	Treasury *treasury.Treasury
	Logger   *zap.Logger
}

// Initialize wires the custodian from the environment: chain client, document
// store, node database, treasury, monitor, engine, sweep job and API server.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	endpoint := utils.Env("CHAIN_ENDPOINT", "")
	if endpoint == "" {
		logger.Fatal("CHAIN_ENDPOINT environment variable is required")
	}
	cli := ledger.NewHTTPWithOpts(ledger.Opts{
		Endpoints:       []string{endpoint},
		RPS:             utils.EnvInt("CHAIN_RPS", 20),
		Burst:           utils.EnvInt("CHAIN_BURST", 40),
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	})

	dataDir := utils.Env("DATA_DIR", "./data")
	ds, err := datastore.Open(filepath.Join(dataDir, "data.json"))
	if err != nil {
		logger.Fatal("Unable to open document store", zap.Error(err))
	}
	st, err := store.Open(filepath.Join(dataDir, "custodian.db"))
	if err != nil {
		logger.Fatal("Unable to open node database", zap.Error(err))
	}

	// Do not come up against a dead chain endpoint; retry the head probe so a
	// restart race with the chain node resolves itself.
	probeErr := retry.WithBackoff(ctx, retry.BootConfig(), logger, "chain head probe", func() error {
		_, err := cli.Head(ctx)
		return err
	})
	if probeErr != nil {
		logger.Fatal("Chain endpoint unreachable", zap.Error(probeErr))
	}

	tr, err := treasury.Load(ctx, ds, cli, logger)
	if err != nil {
		logger.Fatal("Unable to load treasury account", zap.Error(err))
	}

	monitor, err := NewMonitor(cli, ds, logger, utils.Env("BLOCK_POLL_SPEC", "*/10 * * * * *"))
	if err != nil {
		logger.Fatal("Unable to restore block cursor", zap.Error(err))
	}

	engine := NewEngine(st, cli, tr, logger, EngineConfig{
		RewardProbability: utils.EnvInt("REWARD_PROBABILITY", 10),
		RewardMin:         amount.Units(int64(utils.EnvInt("REWARD_MIN", 1))),
		RewardMax:         amount.Units(int64(utils.EnvInt("REWARD_MAX", 5))),
	})

	sweeper := &Sweeper{
		Store:    st,
		Ledger:   cli,
		Logger:   logger,
		CronSpec: utils.Env("SWEEP_SPEC", "0 0 0 * * *"),
	}

	server := &api.Server{
		Store:        st,
		Ledger:       cli,
		Logger:       logger,
		JWTSecret:    []byte(utils.Env("JWT_SECRET", utils.GenerateID())),
		MinimumStake: minimumStake(),
		ReportHeight: monitor.Height,
		ReportStatus: func(address string) (string, string, bool) {
			st, ok := engine.StatusFor(address)
			return st.Step, st.Error, ok
		},
	}
	server.Setup(utils.Env("ADDR", ":3300"))

	return &App{
		Monitor:  monitor,
		Engine:   engine,
		Sweeper:  sweeper,
		Server:   server,
		Treasury: tr,
		Logger:   logger,
	}
}

func minimumStake() *big.Int {
	return amount.Units(int64(utils.EnvInt("MINIMUM_STAKE", 15100)))
}

// Start runs every component and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Monitor.Start(ctx); err != nil {
		a.Logger.Fatal("Unable to start block monitor", zap.Error(err))
	}
	go a.Engine.Run(ctx, a.Monitor.Heights())
	if err := a.Sweeper.Start(ctx); err != nil {
		a.Logger.Fatal("Unable to start sweep job", zap.Error(err))
	}
	go func() {
		a.Logger.Info("API listening", zap.String("addr", a.Server.HTTP.Addr))
		if err := a.Server.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("API server failed", zap.Error(err))
		}
	}()
	<-ctx.Done()
	a.Stop()
}

// Stop shuts everything down in dependency order.
func (a *App) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Server.HTTP.Shutdown(shutdownCtx)
	a.Monitor.Stop()
	a.Sweeper.Stop()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
