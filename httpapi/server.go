package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weltgrid/action"
	"weltgrid/auth"
	"weltgrid/blueprint"
	"weltgrid/economy"
	"weltgrid/spatial"
	"weltgrid/sync"
	"weltgrid/telemetry"
	"weltgrid/worldstore"
)

// Server holds every collaborator a handler might need; handlers are methods
// on *Server rather than closures so each one's dependencies are visible in
// one struct instead of scattered across a dozen constructor closures.
type Server struct {
	store    *worldstore.Store
	ledger   *economy.Ledger
	pipeline *action.Pipeline
	catalog  *blueprint.Catalog
	analyzer *spatial.Analyzer
	hub      *sync.Hub
	verifier *auth.Verifier
	issuer   *auth.TokenIssuer
	metrics  *telemetry.Metrics
	registry AgentRegistry
}

func NewServer(
	store *worldstore.Store,
	ledger *economy.Ledger,
	pipeline *action.Pipeline,
	catalog *blueprint.Catalog,
	analyzer *spatial.Analyzer,
	hub *sync.Hub,
	verifier *auth.Verifier,
	issuer *auth.TokenIssuer,
	metrics *telemetry.Metrics,
	registry AgentRegistry,
) *Server {
	return &Server{
		store: store, ledger: ledger, pipeline: pipeline, catalog: catalog,
		analyzer: analyzer, hub: hub, verifier: verifier, issuer: issuer,
		metrics: metrics, registry: registry,
	}
}

func (s *Server) recordOutcome(actionName string, err *action.Error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.RecordAction(actionName, "ok")
		return
	}
	if err.Kind == action.KindThrottleRateLimited {
		s.metrics.RecordThrottled(actionName)
	}
	s.metrics.RecordAction(actionName, err.Kind)
}

// NewRouter wires every route: public entry + read surface + metrics,
// authenticated action surface and websocket sync.
func (s *Server) NewRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/entry", s.handleEntry).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/state-lite", s.handleStateLite).Methods(http.MethodGet)
	router.HandleFunc("/agents-lite", s.handleAgentsLite).Methods(http.MethodGet)
	router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	router.HandleFunc("/spatial-summary", s.handleSpatialSummary).Methods(http.MethodGet)
	router.HandleFunc("/primitives", s.handlePrimitives).Methods(http.MethodGet)
	router.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	router.HandleFunc("/agents/{id}", s.handleAgentByID).Methods(http.MethodGet)

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(AuthMiddleware(s.verifier, s.issuer, s.store))

	protected.HandleFunc("/actions/move", s.handleMove).Methods(http.MethodPost)
	protected.HandleFunc("/actions/chat", s.handleChat).Methods(http.MethodPost)
	protected.HandleFunc("/actions/build-primitive", s.handleBuildPrimitive).Methods(http.MethodPost)
	protected.HandleFunc("/actions/build-multi", s.handleBuildMulti).Methods(http.MethodPost)
	protected.HandleFunc("/actions/blueprint/start", s.handleBlueprintStart).Methods(http.MethodPost)
	protected.HandleFunc("/actions/blueprint/continue", s.handleBlueprintContinue).Methods(http.MethodPost)
	protected.HandleFunc("/actions/blueprint/cancel", s.handleBlueprintCancel).Methods(http.MethodPost)
	protected.HandleFunc("/actions/directive/create", s.handleDirectiveCreate).Methods(http.MethodPost)
	protected.HandleFunc("/actions/directive/vote", s.handleDirectiveVote).Methods(http.MethodPost)
	protected.HandleFunc("/actions/directive/complete", s.handleDirectiveComplete).Methods(http.MethodPost)
	protected.HandleFunc("/sync", s.handleSync).Methods(http.MethodGet)

	return router
}
