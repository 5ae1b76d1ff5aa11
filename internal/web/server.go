package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/keelswap/keel/internal/incentives"
	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/state"
	"github.com/keelswap/keel/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// PoolQuerier is the read-only surface every pool flavour exposes.
type PoolQuerier interface {
	Pair() types.PairInfo
	TotalShare() sdkmath.Int
	PoolState() pool.PoolResponse
	Config() pool.Config
	CumulativePrices(env ledger.Env) pool.CumulativePricesResponse
	ShareAssets(amount sdkmath.Int) ([2]types.Asset, error)
}

// Simulator is implemented by pools that can quote swaps.
type Simulator interface {
	Simulate(env ledger.Env, offerAsset types.Asset) (*pool.SimulationResponse, error)
	ReverseSimulate(env ledger.Env, askAsset types.Asset) (*pool.ReverseSimulationResponse, error)
}

// WebServer handles HTTP requests for pool and incentives queries.
type WebServer struct {
	router *mux.Router
	port   string

	pools  map[string]PoolQuerier
	engine *incentives.Engine
	envFn  func() ledger.Env
	useDB  bool
}

// NewWebServer creates a new web server instance. envFn supplies the
// current block env for queries that need a clock; useDB enables the
// history endpoints backed by the database.
func NewWebServer(port string, engine *incentives.Engine, envFn func() ledger.Env, useDB bool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		pools:  make(map[string]PoolQuerier),
		engine: engine,
		envFn:  envFn,
		useDB:  useDB,
	}

	server.setupRoutes()
	return server
}

// RegisterPool exposes a pool on the query API under its contract address.
func (ws *WebServer) RegisterPool(p PoolQuerier) {
	ws.pools[p.Pair().ContractAddr] = p
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleListPools).Methods("GET")
	api.HandleFunc("/pools/{addr}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{addr}/config", ws.handleGetPoolConfig).Methods("GET")
	api.HandleFunc("/pools/{addr}/cumulative-prices", ws.handleGetCumulativePrices).Methods("GET")
	api.HandleFunc("/pools/{addr}/share/{amount}", ws.handleGetShare).Methods("GET")
	api.HandleFunc("/pools/{addr}/simulate", ws.handleSimulate).Methods("GET")
	api.HandleFunc("/pools/{addr}/reverse-simulate", ws.handleReverseSimulate).Methods("GET")
	api.HandleFunc("/pools/{addr}/swaps", ws.handleGetSwaps).Methods("GET")
	api.HandleFunc("/pools/{addr}/volume", ws.handleGetVolume).Methods("GET")
	api.HandleFunc("/pools/{addr}/snapshot", ws.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/incentives/pools", ws.handleListActivePools).Methods("GET")
	api.HandleFunc("/incentives/{lp}/rewards", ws.handleGetPoolRewards).Methods("GET")
	api.HandleFunc("/incentives/{lp}/deposit/{user}", ws.handleGetDeposit).Methods("GET")
	api.HandleFunc("/incentives/{lp}/pending/{user}", ws.handleGetPending).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

func (ws *WebServer) pool(w http.ResponseWriter, r *http.Request) (PoolQuerier, bool) {
	addr := mux.Vars(r)["addr"]
	p, ok := ws.pools[addr]
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown pool address")
		return nil, false
	}
	return p, true
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if ws.useDB {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	env := ws.envFn()
	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "keel-amm",
			"version": "1.0.0",
		},
		"amm_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pool_count":       len(ws.pools),
			"block_height":     env.BlockHeight,
			"block_time":       env.BlockTime,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleListPools returns every registered pool and its pair.
func (ws *WebServer) handleListPools(w http.ResponseWriter, r *http.Request) {
	addrs := make([]string, 0, len(ws.pools))
	for addr := range ws.pools {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	pairs := make([]types.PairInfo, 0, len(addrs))
	for _, addr := range addrs {
		pairs = append(pairs, ws.pools[addr].Pair())
	}

	response := map[string]interface{}{
		"pools": pairs,
		"count": len(pairs),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns the live reserves and share supply of one pool.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	response := map[string]interface{}{
		"pair":  p.Pair(),
		"state": p.PoolState(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolConfig returns one pool's accumulator and fee-share config.
func (ws *WebServer) handleGetPoolConfig(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Config())
}

// handleGetCumulativePrices returns the TWAP accumulators projected to now.
func (ws *WebServer) handleGetCumulativePrices(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.CumulativePrices(ws.envFn()))
}

// handleGetShare returns the assets a given LP amount redeems for.
func (ws *WebServer) handleGetShare(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	amount, ok := sdkmath.NewIntFromString(mux.Vars(r)["amount"])
	if !ok || !amount.IsPositive() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid share amount")
		return
	}
	assets, err := p.ShareAssets(amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, assets)
}

func parseAssetQuery(r *http.Request) (types.Asset, bool) {
	denom := r.URL.Query().Get("denom")
	amount, ok := sdkmath.NewIntFromString(r.URL.Query().Get("amount"))
	if denom == "" || !ok || !amount.IsPositive() {
		return types.Asset{}, false
	}
	return types.NewAsset(types.NewNativeAsset(denom), amount), true
}

// handleSimulate quotes a swap without executing it.
func (ws *WebServer) handleSimulate(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	sim, ok := p.(Simulator)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Pool does not support simulation")
		return
	}
	offer, ok := parseAssetQuery(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "denom and amount query parameters are required")
		return
	}
	quote, err := sim.Simulate(ws.envFn(), offer)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

// handleReverseSimulate quotes the offer needed for a desired return.
func (ws *WebServer) handleReverseSimulate(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pool(w, r)
	if !ok {
		return
	}
	sim, ok := p.(Simulator)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Pool does not support simulation")
		return
	}
	ask, ok := parseAssetQuery(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "denom and amount query parameters are required")
		return
	}
	quote, err := sim.ReverseSimulate(ws.envFn(), ask)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

// handleGetSwaps returns recent recorded swaps on one pool.
func (ws *WebServer) handleGetSwaps(w http.ResponseWriter, r *http.Request) {
	if !ws.useDB {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "History recording is disabled")
		return
	}
	addr := mux.Vars(r)["addr"]

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	receipts, err := state.RecentSwapReceipts(addr, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get swap receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve swaps")
		return
	}

	response := map[string]interface{}{
		"swaps": receipts,
		"count": len(receipts),
		"limit": limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVolume returns aggregated offer-side volume on one pool.
func (ws *WebServer) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	if !ws.useDB {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "History recording is disabled")
		return
	}
	addr := mux.Vars(r)["addr"]

	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if parsedHours, err := strconv.Atoi(hoursStr); err == nil && parsedHours > 0 && parsedHours <= 720 {
			hours = parsedHours
		}
	}

	volume, err := state.PoolVolumeSince(addr, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get pool volume")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve volume")
		return
	}

	response := map[string]interface{}{
		"volume": volume,
		"hours":  hours,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshot returns the latest recorded snapshot of one pool.
func (ws *WebServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !ws.useDB {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "History recording is disabled")
		return
	}
	addr := mux.Vars(r)["addr"]

	snapshot, err := state.LatestPoolSnapshot(addr)
	if err != nil {
		webLogger.Error().Err(err).Str("pool", addr).Msg("Failed to get pool snapshot")
		ws.writeErrorResponse(w, http.StatusNotFound, "Snapshot not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleListActivePools returns the emission-receiving pools.
func (ws *WebServer) handleListActivePools(w http.ResponseWriter, r *http.Request) {
	pools := ws.engine.ActivePools()
	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolRewards returns the reward state on one LP token.
func (ws *WebServer) handleGetPoolRewards(w http.ResponseWriter, r *http.Request) {
	lp := mux.Vars(r)["lp"]
	response := map[string]interface{}{
		"lp_token":     lp,
		"total_staked": ws.engine.TotalStaked(lp),
		"rewards":      ws.engine.PoolRewards(ws.envFn(), lp),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetDeposit returns a user's staked amount on one LP token.
func (ws *WebServer) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	response := map[string]interface{}{
		"lp_token": vars["lp"],
		"user":     vars["user"],
		"deposit":  ws.engine.Deposited(vars["lp"], vars["user"]),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPending returns a user's claimable rewards on one LP token.
func (ws *WebServer) handleGetPending(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	response := map[string]interface{}{
		"lp_token": vars["lp"],
		"user":     vars["user"],
		"pending":  ws.engine.PendingRewards(ws.envFn(), vars["lp"], vars["user"]),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
