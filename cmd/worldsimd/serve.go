package main

import (
	"net/http"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"weltgrid/action"
	"weltgrid/auth"
	"weltgrid/blueprint"
	"weltgrid/economy"
	"weltgrid/geom"
	"weltgrid/httpapi"
	"weltgrid/persistence"
	"weltgrid/spatial"
	"weltgrid/sync"
	"weltgrid/telemetry"
	"weltgrid/worldstore"
)

// moveUnitsPerTick is how far a moving agent advances toward its target on
// each tick; spec.md leaves the exact rate open, so this picks a value that
// crosses the default build-range ceiling in a handful of seconds.
const moveUnitsPerTick = 5.0

// refillSweepInterval is how often the serve loop checks every agent's
// economy.Ledger allowance; RefillIfDue itself is the real gate (it only
// grants once per RefillPeriod), so this just needs to be frequent enough
// that a due refill lands promptly.
const refillSweepInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the grid-world server and serve HTTP until killed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := telemetry.NewLogger(true)
		logger.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DatabasePath).Msg("starting worldsimd")

		persist, err := persistence.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer persist.Close()

		store := worldstore.New(cfg.AgentLiveness)
		if err := store.LoadFrom(persist); err != nil {
			return err
		}

		ledger := economy.New(economy.RefillPolicy{
			SoloRefill:  cfg.SoloRefill,
			GuildRefill: cfg.GuildRefill,
			Period:      cfg.RefillPeriod,
		}, nil)
		if err := ledger.LoadFrom(persist); err != nil {
			return err
		}

		catalog, err := blueprint.LoadCatalog(cfg.BlueprintDir)
		if err != nil {
			return err
		}

		hub := sync.NewHub()
		policy := cfg.Policy.ApplyTo(geom.DefaultPolicy())

		pipeline := action.New(store, ledger, policy, persist, hub)
		analyzer := spatial.NewAnalyzer(store, policy)
		pipeline.Nodes = analyzer
		pipeline.Directives = economy.NewDirectiveBoard()
		pipeline.DirectivePersist = persist

		issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
		verifier := auth.NewVerifier(stubChainClient{}, issuer)

		metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

		server := httpapi.NewServer(store, ledger, pipeline, catalog, analyzer, hub, verifier, issuer, metrics, persist)
		router := server.NewRouter()

		done := make(chan struct{})
		defer close(done)
		go runTickLoop(done, cfg.TickInterval, store, ledger, logger)

		logger.Info().Msg("worldsimd listening")
		return http.ListenAndServe(cfg.HTTPAddr, router)
	},
}

// runTickLoop drives the store's movement clock every tick and sweeps for
// stale sessions and due credit refills on a slower cadence, reusing the
// ticker-loop shape the training harness's reward-printer ran its own
// periodic background work with.
func runTickLoop(done <-chan struct{}, interval time.Duration, store *worldstore.Store, ledger *economy.Ledger, logger zerolog.Logger) {
	sweepTicker := channerics.NewTicker(done, refillSweepInterval)
	for range channerics.NewTicker(done, interval) {
		store.Tick(moveUnitsPerTick)

		select {
		case <-sweepTicker:
			sweepLiveAndRefill(store, ledger, logger)
		default:
		}
	}
}

func sweepLiveAndRefill(store *worldstore.Store, ledger *economy.Ledger, logger zerolog.Logger) {
	now := time.Now()
	for _, evicted := range store.SweepLiveness(now) {
		logger.Info().Str("agent", evicted).Msg("agent evicted for inactivity")
	}
	for _, agent := range store.AllAgents() {
		ledger.RefillIfDue(agent.ID, now)
	}
}
