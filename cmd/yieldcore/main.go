package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/elys-network/yieldcore/internal/config"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/metrics"
	"github.com/elys-network/yieldcore/internal/simulations"
	"github.com/elys-network/yieldcore/internal/state"
	"github.com/elys-network/yieldcore/internal/strategy"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/elys-network/yieldcore/internal/web"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const (
	PAPER_STRATEGY_ADDRESS = "paper-strategy"
	DEFAULT_PAPER_DEPOSIT  = 100_000 // whole base tokens minted to the strategy at startup
	BOOTSTRAP_CHANGED_BY   = "bootstrap"
)

// main is the entry point for the strategy keeper.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Str("strategy_id", config.StrategyID).Msg("Strategy keeper starting...")

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	store := state.NewPostgresStore(config.StrategyID)

	// Load Strategy Parameters
	params, err := store.LoadParameters()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load strategy parameters")
	}
	if params == nil {
		log.Warn().Msg("No persisted strategy parameters, using defaults and saving.")
		defaults := config.DefaultStrategyParameters()
		if err := store.SaveParameters(defaults, BOOTSTRAP_CHANGED_BY); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default strategy parameters.")
		}
		params = &defaults
	}
	log.Info().Msg("Strategy parameters loaded successfully.")

	// --- 2. Collaborators (with Safety Switch) ---
	if config.Mode != config.MODE_PAPER {
		log.Fatal().Msg("STRATEGY_MODE is not set to 'paper'. Halting to prevent accidental execution. Set STRATEGY_MODE=paper to run.")
	}
	log.Warn().Msg("Initializing strategy in PAPER mode. Every collaborator is simulated in memory.")

	chain, err := simulations.NewPaperChain(config.Basket, simulations.PaperAddresses{
		Strategy:   PAPER_STRATEGY_ADDRESS,
		Aggregator: config.AggregatorAddress,
		Splitter:   config.SplitterAddress,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create paper chain")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	strategyMetrics, err := metrics.NewStrategyMetrics(registry, simulations.PAPER_DECIMALS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register strategy metrics")
	}

	// --- 3. Create Strategy Instance with Dependency Injection ---
	s, err := strategy.NewStrategy(strategy.Config{
		StrategyID: config.StrategyID,
		Basket:     config.Basket,
		Parameters: *params,
		Roles: strategy.Roles{
			Operator:   config.OperatorAddress,
			Governance: config.GovernanceAddress,
			Forwarder:  config.ForwarderAddress,
			Insurance:  config.InsuranceAddress,
		},
		Aggregator: chain.Lending(),
		Depositor:  chain.Pool(),
		Swap:       chain.Swap(),
		Oracle:     chain.Oracle(),
		Splitter:   chain.Splitter(),
		Wallet:     chain.Wallet(),
		Journal:    chain.Journal(),
		Store:      store,
		Metrics:    strategyMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy instance")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deposit := utils.Pow10(simulations.PAPER_DECIMALS).MulRaw(int64(mustAtoi(os.Getenv("PAPER_INITIAL_DEPOSIT"), DEFAULT_PAPER_DEPOSIT)))
	if deposit.IsPositive() {
		chain.Mint(PAPER_STRATEGY_ADDRESS, config.Basket.Base(), deposit)
		liquidity, err := s.DepositToPool(ctx, config.SplitterAddress)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to invest initial paper deposit")
		}
		log.Info().
			Str("deposit", deposit.String()).
			Str("liquidity", liquidity.String()).
			Msg("Initial paper deposit invested")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, store, s, registry)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting strategy dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Work Loop ---
	log.Info().Str("interval", config.CycleInterval.String()).Msg("Starting strategy work loop")
	s.RunLoop(ctx, config.CycleInterval, chain.Tick)

	log.Info().
		Str("investedAssets", s.Snapshot().InvestedAssets.String()).
		Str("idle", chain.BalanceOf(PAPER_STRATEGY_ADDRESS, config.Basket.Base()).String()).
		Msg("Strategy keeper stopped")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
