package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bond-arena/internal/api"
	"bond-arena/internal/classify"
	"bond-arena/internal/config"
	"bond-arena/internal/game"
	"bond-arena/internal/render"
	"bond-arena/internal/sfx"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🧪 ================================")
	log.Println("🧪  BOND ARENA")
	log.Println("🧪 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig, err := loadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d TPS, %.0fx%.0f arena, bond at %.0fpx, reject at %.0fpx",
		appConfig.Physics.TickRate, appConfig.Arena.Width, appConfig.Arena.Height,
		appConfig.Bonding.BondDistance, appConfig.Bonding.RejectDistance)

	engine := game.NewEngine(game.EngineConfigFrom(appConfig))
	log.Printf("🛡️ Resource limits: %d atoms, %d particles, %d texts",
		appConfig.Spawn.MaxAtoms, appConfig.Limits.MaxParticles, appConfig.Limits.MaxTexts)

	// Event log: in memory always, on disk when a path is set
	if serverCfg.EventLogPath != "" {
		if err := engine.StartEventLog(serverCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
		}
	}

	// Start debug server
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig(serverCfg.DebugPort)); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	// Molecule identification runs off the tick goroutine
	classifier := classify.New(appConfig.Classifier)
	if !classifier.Available() {
		log.Println("⚠️ ANTHROPIC_API_KEY not set - molecules are named from the built-in table")
	}
	dispatcher := classify.NewDispatcher(appConfig.Classifier, classifier)
	dispatcher.SetObserver(api.RecordIdentification)
	dispatcher.Start()

	server := api.NewServer(api.ServerOptions{
		Engine:     engine,
		Identifier: dispatcher,
		Frames:     render.New(appConfig.Arena),
		Sounds:     sfx.NewBank(getEnvFloat("SFX_VOLUME", 0.8)),
		Guide:      classify.NewGuide(appConfig.Classifier),
		EventLog:   engine.EventLog(),
		Server:     serverCfg,
		Limits:     appConfig.Limits,
	})
	engine.SetCallbacks(server.Callbacks())

	engine.Start()
	log.Println("✅ Game Engine started")

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Println("")
	log.Println("📋 To play:")
	log.Printf("   1. POST http://localhost:%d/api/session/start {\"player\":\"you\"}", serverCfg.Port)
	log.Printf("   2. Connect ws://localhost:%d/ws and send pointer commands", serverCfg.Port)
	log.Printf("   3. Watch http://localhost:%d/api/frame.png", serverCfg.Port)
	log.Println("")

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	// Accepted identifications finish; the last ones are only logged
	dispatcher.Stop()
	for _, rec := range dispatcher.Drain(64) {
		log.Printf("🔬 %s: %s", rec.Formula, rec.Name)
	}

	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}

// loadConfig reads the YAML file when given, otherwise defaults plus env.
func loadConfig(path string) (config.AppConfig, error) {
	if path == "" {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return cfg, err
	}
	log.Printf("✅ Loaded configuration from %s", path)
	return cfg, nil
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
