package api

import (
	"context"
	"io"
	"net/http"

	"bond-arena/internal/classify"
	"bond-arena/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the simulation methods used by the API.
// This interface enables mocking for tests without spinning up the game loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetState returns a consistent copy of the world
	GetState() game.GameSnapshot
	// GetSnapshot returns the latest lock-free immutable snapshot (preferred for polling)
	GetSnapshot() *game.GameSnapshot
	// Stats returns engine counters
	Stats() game.EngineStats

	PointerDown(x, y float64) bool
	PointerMove(x, y float64)
	PointerUp()
	Undo() bool
	Reset()

	StartSession(player string)
	StopSession() game.SessionResult
	Leaderboard() *game.Leaderboard
}

// Identifier is the classifier side of the API. Formed molecules are
// submitted from engine callbacks, finished records are drained by the
// broadcast loop and counters are served on /api/stats.
type Identifier interface {
	Submit(m game.Molecule, tick uint64) bool
	Drain(maxItems int) []classify.Record
	Stats() classify.DispatcherStats
}

// FrameEncoder renders a snapshot as PNG.
type FrameEncoder interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// ConnectionStats reports WebSocket usage for /api/stats.
type ConnectionStats interface {
	Stats() HubStats
}

// CueSource serves synthesized sound cues as WAV bytes and names the cue
// for a notice.
type CueSource interface {
	Cues() []string
	WAV(cue string) ([]byte, error)
	CueFor(kind game.NoticeKind) (string, bool)
}

// Narrator writes mission briefings and in-game hints.
type Narrator interface {
	Briefing(ctx context.Context, mission int) classify.Briefing
	Hint(snap *game.GameSnapshot) (classify.Hint, bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// Only Engine is required.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation (required)
	Engine EngineInterface

	// Molecules holds recent identifications. If nil, /api/molecules is empty.
	Molecules *MoleculeFeed

	// Identifier provides classifier counters for /api/stats. Optional.
	Identifier Identifier

	// Frames renders /api/frame.png. If nil the route answers 503.
	Frames FrameEncoder

	// Sounds serves /api/sfx/{cue}.wav. If nil the route answers 503.
	Sounds CueSource

	// Guide serves /api/briefing and /api/hint. If nil both answer 503.
	Guide Narrator

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// EventLog adds event log counters to /api/stats. Optional.
	EventLog *game.EventLog

	// Connections adds WebSocket counters to /api/stats. Optional.
	Connections ConnectionStats

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, any localhost port is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine     EngineInterface
	molecules  *MoleculeFeed
	identifier Identifier
	frames     FrameEncoder
	sounds     CueSource
	guide      Narrator
	limiter    *IPRateLimiter
	conns      ConnectionStats
	eventLog   *game.EventLog
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter opens no listeners. The only goroutine it may start is the
// cleanup loop of a rate limiter it creates itself; pass RateLimiter to
// control that lifetime.
//
// Example:
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:     cfg.Engine,
		molecules:  cfg.Molecules,
		identifier: cfg.Identifier,
		frames:     cfg.Frames,
		sounds:     cfg.Sounds,
		guide:      cfg.Guide,
		limiter:    rateLimiter,
		conns:      cfg.Connections,
		eventLog:   cfg.EventLog,
	}

	r.Route("/api", func(r chi.Router) {
		// World state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/elements", h.handleGetElements)
		r.Get("/molecules", h.handleGetMolecules)
		r.Get("/leaderboard", h.handleGetLeaderboard)

		// Sessions
		r.Post("/session/start", h.handleSessionStart)
		r.Post("/session/stop", h.handleSessionStop)
		r.Post("/reset", h.handleReset)

		// Pointer input
		r.Post("/pointer/down", h.handlePointerDown)
		r.Post("/pointer/move", h.handlePointerMove)
		r.Post("/pointer/up", h.handlePointerUp)
		r.Post("/undo", h.handleUndo)

		// Missions
		r.Get("/briefing", h.handleBriefing)
		r.Get("/hint", h.handleHint)

		// Presentation
		r.Get("/frame.png", h.handleFrame)
		r.Get("/sfx/{cue}", h.handleSound)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
