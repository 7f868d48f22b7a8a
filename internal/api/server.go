package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"bond-arena/internal/config"
	"bond-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// identificationsPerBroadcast bounds how many finished records one broadcast
// tick forwards.
const identificationsPerBroadcast = 32

// ServerOptions holds the server's collaborators. Only Engine is required.
type ServerOptions struct {
	Engine     EngineInterface
	Identifier Identifier
	Frames     FrameEncoder
	Sounds     CueSource
	Guide      Narrator
	EventLog   *game.EventLog // optional, published as metrics

	Server config.ServerConfig
	Limits config.LimitsConfig
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	identifier  Identifier
	sounds      CueSource
	eventLog    *game.EventLog
	molecules   *MoleculeFeed
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter

	broadcastInterval time.Duration
	httpServer        *http.Server
	stopOnce          sync.Once
	stopChan          chan struct{}
	wg                sync.WaitGroup
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(opts ServerOptions) *Server {
	interval := opts.Server.BroadcastInterval
	if interval <= 0 {
		interval = config.DefaultServer().BroadcastInterval
	}

	s := &Server{
		engine:            opts.Engine,
		identifier:        opts.Identifier,
		sounds:            opts.Sounds,
		eventLog:          opts.EventLog,
		molecules:         NewMoleculeFeed(opts.Limits.MaxRecentMolecules),
		broadcastInterval: interval,
		stopChan:          make(chan struct{}),
	}
	// Create rate limiter (we track it for cleanup)
	limitCfg := RateLimitConfigFrom(opts.Server)
	s.rateLimiter = NewIPRateLimiter(limitCfg)
	s.wsHub = NewWebSocketHub(opts.Limits.MaxWSClients, limitCfg.Proxies, s.applyCommand)

	s.router = NewRouter(RouterConfig{
		Engine:      opts.Engine,
		Molecules:   s.molecules,
		Identifier:  opts.Identifier,
		Frames:      opts.Frames,
		Sounds:      opts.Sounds,
		Guide:       opts.Guide,
		RateLimiter: s.rateLimiter,
		Connections: s.wsHub,
		EventLog:    opts.EventLog,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.setupWebSocketRoutes()

	return s
}

// setupWebSocketRoutes adds WebSocket-specific routes to the router.
// These routes need access to the wsHub instance, so they can't be
// part of the generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
}

// Callbacks returns the engine callbacks that feed the hub, the classifier
// and the metrics. Install them with Engine.SetCallbacks.
func (s *Server) Callbacks() game.Callbacks {
	return game.Callbacks{
		OnNotice: func(n game.Notice) {
			RecordNotice(n.Kind)
			if n.Kind == game.NoticeMoleculeFormed && n.Molecule != nil && s.identifier != nil {
				if !s.identifier.Submit(*n.Molecule, n.Tick) {
					log.Printf("⚠️ Identification queue full, %s not submitted", n.Molecule.Formula)
				}
			}
			s.wsHub.Broadcast(n.Kind.String(), n)
			if s.sounds != nil {
				if cue, ok := s.sounds.CueFor(n.Kind); ok {
					s.wsHub.Broadcast("sfx", soundCue{Cue: cue, URL: "/api/sfx/" + cue + ".wav"})
				}
			}
		},
		OnTick: RecordTick,
	}
}

// soundCue tells clients which cue to play for the notice just broadcast.
type soundCue struct {
	Cue string `json:"cue"`
	URL string `json:"url"`
}

// applyCommand forwards WebSocket input to the engine.
func (s *Server) applyCommand(ip string, cmd ClientCommand) {
	switch cmd.Type {
	case CommandPointerDown:
		s.engine.PointerDown(cmd.X, cmd.Y)
	case CommandPointerMove:
		s.engine.PointerMove(cmd.X, cmd.Y)
	case CommandPointerUp:
		s.engine.PointerUp()
	case CommandUndo:
		s.engine.Undo()
	}
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until Shutdown and returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.StartWorkers()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🧪 Arena frame: http://localhost%s/api/frame.png", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWorkers starts the hub and the broadcast loop without a listener,
// for use with httptest.
func (s *Server) StartWorkers() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.broadcastLoop()
	}()
}

// broadcastLoop forwards identifications and pushes state to clients.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.forwardIdentifications()
			return
		case <-ticker.C:
			s.forwardIdentifications()
			if s.eventLog != nil {
				UpdateEventLogStats(s.eventLog.GetTotalCount(), s.eventLog.GetDroppedCount())
			}
			if s.wsHub.ClientCount() == 0 {
				continue
			}
			s.wsHub.Broadcast("game:state", s.engine.GetSnapshot())
		}
	}
}

// forwardIdentifications moves finished records into the feed and out to
// clients. This is the only consumer of the classifier queue; metrics are
// recorded by the dispatcher's observer as records finish.
func (s *Server) forwardIdentifications() {
	if s.identifier == nil {
		return
	}
	for _, rec := range s.identifier.Drain(identificationsPerBroadcast) {
		s.molecules.Add(rec)
		s.wsHub.Broadcast("molecule:identified", rec)
	}
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Molecules returns the recent identification feed.
func (s *Server) Molecules() *MoleculeFeed {
	return s.molecules
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes WebSocket clients and waits
// for background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop performs graceful shutdown of background workers.
// Call this before process exit to ensure clean cleanup.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wsHub.Stop()
		s.rateLimiter.Stop()
	})
	s.wg.Wait()
}
