package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/keelswap/keel/internal/config"
	"github.com/keelswap/keel/internal/incentives"
	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pool/pcl"
	"github.com/keelswap/keel/internal/pool/stable"
	"github.com/keelswap/keel/internal/pool/xyk"
	"github.com/keelswap/keel/internal/state"
	"github.com/keelswap/keel/internal/types"
	"github.com/keelswap/keel/internal/web"
)

const (
	BLOCK_INTERVAL    = 1 * time.Second
	SNAPSHOT_INTERVAL = 60 * time.Second
)

// main is the entry point for the keel AMM host.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Keel AMM host starting...")

	// Initialize Database Connection (history recording and query API)
	if config.DBEnabled {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("DB_ENABLED is false; history endpoints are disabled.")
	}

	// --- 2. Ledger and Factory ---
	bank := ledger.NewBank()
	factory := ledger.NewFactory(config.FactoryAddr)
	for pairType, feeInfo := range config.DefaultFeeInfos(config.MakerAddr) {
		factory.SetFeeInfo(pairType, feeInfo)
	}

	// Block clock: height advances on a fixed interval, block time is wall
	// time. Queries project TWAPs and reward accrual against this env.
	start := time.Now()
	envFn := func() ledger.Env {
		return ledger.Env{
			BlockHeight: uint64(time.Since(start)/BLOCK_INTERVAL) + 1,
			BlockTime:   uint64(time.Now().Unix()),
		}
	}

	// --- 3. Incentives Engine ---
	tps, err := sdkmath.LegacyNewDecFromStr(config.TokensPerSecond)
	if err != nil {
		log.Fatal().Err(err).Str("value", config.TokensPerSecond).Msg("Invalid EMISSION_TOKENS_PER_SECOND")
	}
	engine, err := incentives.NewEngine(incentives.Config{
		Addr:               "keel1incentives",
		Owner:              config.OwnerAddr,
		Guardian:           config.GuardianAddr,
		VestingAddr:        config.VestingAddr,
		EmissionToken:      types.NewNativeAsset(config.EmissionDenom),
		TokensPerSecond:    tps,
		IncentivizationFee: sdk.NewCoin(config.IncentivizationFeeDenom, sdkmath.NewIntFromUint64(config.IncentivizationFeeAmount)),
		FeeReceiver:        config.MakerAddr,
	}, factory, bank)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create incentives engine")
	}

	// --- 4. Bootstrap Pools ---
	pools, err := bootstrapPools(envFn(), factory, bank, engine)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap pools")
	}
	log.Info().Int("count", len(pools)).Msg("Pools bootstrapped")

	// --- 5. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, engine, envFn, config.DBEnabled)
	for _, p := range pools {
		webServer.RegisterPool(p)
		engine.RegisterPair(p.Pair())
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting query API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Snapshot Recording Loop ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	if config.DBEnabled {
		go recordSnapshots(pools, envFn)
	}

	<-stop
	log.Info().Msg("Shutting down.")
}

// bootstrapPools instantiates the launch pool set and wires auto-staking.
func bootstrapPools(env ledger.Env, factory *ledger.Factory, bank *ledger.Bank,
	engine *incentives.Engine) ([]web.PoolQuerier, error) {

	uluna := types.NewNativeAsset("uluna")
	uusdc := types.NewNativeAsset("uusdc")
	uusdt := types.NewNativeAsset("uusdt")
	uatom := types.NewNativeAsset("uatom")

	xykPool, err := xyk.NewPool(xyk.InstantiateMsg{
		Addr:               "keel1pairxyk",
		AssetInfos:         [2]types.AssetInfo{uluna, uusdc},
		Owner:              config.OwnerAddr,
		TrackAssetBalances: true,
	}, factory, bank)
	if err != nil {
		return nil, err
	}
	xykPool.SetAutoStaker(engine)

	stablePool, err := stable.NewPool(env, stable.InstantiateMsg{
		Addr:       "keel1pairstable",
		AssetInfos: [2]types.AssetInfo{uusdc, uusdt},
		Owner:      config.OwnerAddr,
		Amp:        100,
		Precisions: [2]uint8{config.PrecisionFor("uusdc"), config.PrecisionFor("uusdt")},
	}, factory, bank)
	if err != nil {
		return nil, err
	}
	stablePool.SetAutoStaker(engine)

	pclPool, err := pcl.NewPool(env, pcl.InstantiateMsg{
		Addr:       "keel1pairpcl",
		AssetInfos: [2]types.AssetInfo{uatom, uusdc},
		Owner:      config.OwnerAddr,
		AmpGamma:   config.DefaultConcentratedAmpGamma,
		Params:     config.DefaultConcentratedParams,
		PriceScale: sdkmath.LegacyNewDec(10),
		Precisions: [2]uint8{config.PrecisionFor("uatom"), config.PrecisionFor("uusdc")},
	}, factory, bank)
	if err != nil {
		return nil, err
	}
	pclPool.SetAutoStaker(engine)

	return []web.PoolQuerier{xykPool, stablePool, pclPool}, nil
}

// recordSnapshots periodically persists every pool's state and advances
// the block cursor.
func recordSnapshots(pools []web.PoolQuerier, envFn func() ledger.Env) {
	ticker := time.NewTicker(SNAPSHOT_INTERVAL)
	defer ticker.Stop()

	for range ticker.C {
		env := envFn()
		now := time.Now().UTC()

		for _, p := range pools {
			pair := p.Pair()
			st := p.PoolState()
			snapshot := types.PoolSnapshot{
				Timestamp:   now,
				BlockHeight: env.BlockHeight,
				PoolAddr:    pair.ContractAddr,
				PairType:    pair.PairType,
				Reserves: []types.ReserveRecord{
					{Denom: st.Assets[0].Info.ID(), Amount: st.Assets[0].Amount.String()},
					{Denom: st.Assets[1].Info.ID(), Amount: st.Assets[1].Amount.String()},
				},
				TotalShare: st.TotalShare.String(),
			}
			if _, err := state.SavePoolSnapshot(snapshot); err != nil {
				log.Error().Err(err).Str("pool", pair.ContractAddr).Msg("Failed to save pool snapshot")
			}
		}

		if err := state.AdvanceBlockCursor(env.BlockHeight); err != nil {
			log.Error().Err(err).Msg("Failed to advance block cursor")
		}
	}
}
