// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation, server and service settings.
//
// Values come from three layers, later layers winning:
// compiled defaults, an optional YAML file, environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the simulation bounds in world units (pixels).
// The renderer uses the same size for frames.
type ArenaConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DefaultArena returns the default arena size.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:  1280,
		Height: 720,
	}
}

// ArenaFromEnv applies environment overrides to cfg.
func ArenaFromEnv(cfg ArenaConfig) ArenaConfig {
	if w := getEnvFloat("ARENA_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("ARENA_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	return cfg
}

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsConfig holds the force integrator coefficients.
// All values are per tick; the integrator does not scale by wall time.
type PhysicsConfig struct {
	TickRate        int     `yaml:"tick_rate"`        // Ticks per second
	DragFollow      float64 `yaml:"drag_follow"`      // Fraction of pointer offset applied as velocity
	Friction        float64 `yaml:"friction"`         // Velocity multiplier, must be in (0,1)
	SpringK         float64 `yaml:"spring_k"`         // Bond spring stiffness
	RestDistance    float64 `yaml:"rest_distance"`    // Bond rest length
	Repulsion       float64 `yaml:"repulsion"`        // Penetration response for unbonded pairs
	RepulsionMargin float64 `yaml:"repulsion_margin"` // Extra gap kept between unbonded atoms
	GridCellSize    float64 `yaml:"grid_cell_size"`   // Broad phase cell size
}

// DefaultPhysics returns the default physics tuning.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		TickRate:        60,
		DragFollow:      0.25,
		Friction:        0.98,
		SpringK:         0.08,
		RestDistance:    55,
		Repulsion:       0.3,
		RepulsionMargin: 8,
		GridCellSize:    64,
	}
}

// PhysicsFromEnv applies environment overrides to cfg.
func PhysicsFromEnv(cfg PhysicsConfig) PhysicsConfig {
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if f := getEnvFloat("PHYSICS_FRICTION", 0); f > 0 {
		cfg.Friction = f
	}
	if k := getEnvFloat("PHYSICS_SPRING_K", 0); k > 0 {
		cfg.SpringK = k
	}
	if r := getEnvFloat("PHYSICS_REST_DISTANCE", 0); r > 0 {
		cfg.RestDistance = r
	}
	if r := getEnvFloat("PHYSICS_REPULSION", 0); r > 0 {
		cfg.Repulsion = r
	}
	return cfg
}

// =============================================================================
// BONDING CONFIGURATION
// =============================================================================

// BondingConfig holds the bond formation protocol thresholds.
type BondingConfig struct {
	BondDistance   float64 `yaml:"bond_distance"`   // Center distance below which a dragged atom bonds
	RejectDistance float64 `yaml:"reject_distance"` // Release check radius, must be >= BondDistance
	RejectImpulse  float64 `yaml:"reject_impulse"`  // Separating speed applied on rejection
	ReleaseNudge   float64 `yaml:"release_nudge"`   // Max random speed applied on a bonded release
	PointsPerAtom  int     `yaml:"points_per_atom"` // Score per atom of a stable molecule
}

// DefaultBonding returns the default bonding thresholds.
func DefaultBonding() BondingConfig {
	return BondingConfig{
		BondDistance:   50,
		RejectDistance: 65,
		RejectImpulse:  8,
		ReleaseNudge:   1.5,
		PointsPerAtom:  100,
	}
}

// BondingFromEnv applies environment overrides to cfg.
func BondingFromEnv(cfg BondingConfig) BondingConfig {
	if d := getEnvFloat("BOND_DISTANCE", 0); d > 0 {
		cfg.BondDistance = d
	}
	if d := getEnvFloat("BOND_REJECT_DISTANCE", 0); d > 0 {
		cfg.RejectDistance = d
	}
	if p := getEnvInt("POINTS_PER_ATOM", 0); p > 0 {
		cfg.PointsPerAtom = p
	}
	return cfg
}

// =============================================================================
// SPAWN & SESSION CONFIGURATION
// =============================================================================

// SpawnConfig controls the periodic spawner.
type SpawnConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAtoms    int           `yaml:"max_atoms"`    // Population cap
	EdgeOffset  float64       `yaml:"edge_offset"`  // Distance outside the edge where atoms appear
	InwardSpeed float64       `yaml:"inward_speed"` // Initial speed toward the arena interior
}

// DefaultSpawn returns the default spawner settings.
func DefaultSpawn() SpawnConfig {
	return SpawnConfig{
		Interval:    1500 * time.Millisecond,
		MaxAtoms:    30,
		EdgeOffset:  20,
		InwardSpeed: 1.5,
	}
}

// SpawnFromEnv applies environment overrides to cfg.
func SpawnFromEnv(cfg SpawnConfig) SpawnConfig {
	if d := getEnvDuration("SPAWN_INTERVAL", 0); d > 0 {
		cfg.Interval = d
	}
	if m := getEnvInt("MAX_ATOMS", 0); m > 0 {
		cfg.MaxAtoms = m
	}
	return cfg
}

// SessionConfig controls game sessions.
type SessionConfig struct {
	InitialAtoms int `yaml:"initial_atoms"` // Atoms seeded when a session starts
}

// DefaultSession returns the default session settings.
func DefaultSession() SessionConfig {
	return SessionConfig{InitialAtoms: 12}
}

// SessionFromEnv applies environment overrides to cfg.
func SessionFromEnv(cfg SessionConfig) SessionConfig {
	if n := getEnvInt("INITIAL_ATOMS", -1); n >= 0 {
		cfg.InitialAtoms = n
	}
	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig controls presentation buffers and queue sizes.
type LimitsConfig struct {
	MaxParticles       int `yaml:"max_particles"`        // Live burst particles
	MaxTexts           int `yaml:"max_texts"`            // Live floating texts
	MaxRecentMolecules int `yaml:"max_recent_molecules"` // Identification history kept for the API
	EventLogBuffer     int `yaml:"event_log_buffer"`     // In-memory event log entries
	MaxWSClients       int `yaml:"max_ws_clients"`
	MaxLeaderboard     int `yaml:"max_leaderboard"` // Players kept on the leaderboard
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxParticles:       200,
		MaxTexts:           30,
		MaxRecentMolecules: 50,
		EventLogBuffer:     10000,
		MaxWSClients:       100,
		MaxLeaderboard:     100,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	DebugPort         int           `yaml:"debug_port"`         // localhost pprof + metrics, 0 disables
	BroadcastInterval time.Duration `yaml:"broadcast_interval"` // WebSocket state push period
	RateLimit         float64       `yaml:"rate_limit"`         // Requests per second per IP
	RateBurst         int           `yaml:"rate_burst"`
	EventLogPath      string        `yaml:"event_log_path"`  // Empty keeps the log in memory only
	TrustedProxies    []string      `yaml:"trusted_proxies"` // CIDRs or addresses allowed to set X-Forwarded-For
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		DebugPort:         6060,
		BroadcastInterval: 50 * time.Millisecond,
		RateLimit:         50,
		RateBurst:         100,
	}
}

// ServerFromEnv applies environment overrides to cfg.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", -1); p >= 0 {
		cfg.DebugPort = p
	}
	if d := getEnvDuration("BROADCAST_INTERVAL", 0); d > 0 {
		cfg.BroadcastInterval = d
	}
	if path := os.Getenv("EVENT_LOG_PATH"); path != "" {
		cfg.EventLogPath = path
	}
	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		cfg.TrustedProxies = strings.Split(proxies, ",")
	}
	return cfg
}

// =============================================================================
// CLASSIFIER CONFIGURATION
// =============================================================================

// ClassifierConfig configures molecule identification.
type ClassifierConfig struct {
	Provider      string        `yaml:"provider"` // "anthropic" or "fallback"
	APIKey        string        `yaml:"-"`        // Never read from files
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// DefaultClassifier returns the default classifier settings.
func DefaultClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider:      "fallback",
		Model:         "claude-3-5-haiku-latest",
		BaseURL:       "https://api.anthropic.com",
		Timeout:       8 * time.Second,
		Workers:       2,
		QueueSize:     64,
		RatePerSecond: 1,
		CacheTTL:      time.Hour,
	}
}

// ClassifierFromEnv applies environment overrides to cfg.
// Setting ANTHROPIC_API_KEY switches the provider to anthropic unless
// CLASSIFIER_PROVIDER says otherwise.
func ClassifierFromEnv(cfg ClassifierConfig) ClassifierConfig {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.APIKey = key
		cfg.Provider = "anthropic"
	}
	if p := os.Getenv("CLASSIFIER_PROVIDER"); p != "" {
		cfg.Provider = p
	}
	if m := os.Getenv("CLASSIFIER_MODEL"); m != "" {
		cfg.Model = m
	}
	if d := getEnvDuration("CLASSIFIER_TIMEOUT", 0); d > 0 {
		cfg.Timeout = d
	}
	if w := getEnvInt("CLASSIFIER_WORKERS", 0); w > 0 {
		cfg.Workers = w
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena      ArenaConfig      `yaml:"arena"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Bonding    BondingConfig    `yaml:"bonding"`
	Spawn      SpawnConfig      `yaml:"spawn"`
	Session    SessionConfig    `yaml:"session"`
	Limits     LimitsConfig     `yaml:"limits"`
	Server     ServerConfig     `yaml:"server"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// Default returns the compiled-in configuration without env overrides.
func Default() AppConfig {
	return AppConfig{
		Arena:      DefaultArena(),
		Physics:    DefaultPhysics(),
		Bonding:    DefaultBonding(),
		Spawn:      DefaultSpawn(),
		Session:    DefaultSession(),
		Limits:     DefaultLimits(),
		Server:     DefaultServer(),
		Classifier: DefaultClassifier(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return applyEnv(Default())
}

// LoadFile overlays a YAML file on the defaults, then applies environment
// overrides. Keys missing from the file keep their default values.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg AppConfig) AppConfig {
	cfg.Arena = ArenaFromEnv(cfg.Arena)
	cfg.Physics = PhysicsFromEnv(cfg.Physics)
	cfg.Bonding = BondingFromEnv(cfg.Bonding)
	cfg.Spawn = SpawnFromEnv(cfg.Spawn)
	cfg.Session = SessionFromEnv(cfg.Session)
	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.Classifier = ClassifierFromEnv(cfg.Classifier)
	return cfg
}

// Validate reports every out-of-range setting at once.
func (c AppConfig) Validate() error {
	var errs []error

	if c.Arena.Width <= 0 || c.Arena.Height <= 0 {
		errs = append(errs, fmt.Errorf("arena size must be positive, got %gx%g", c.Arena.Width, c.Arena.Height))
	}
	if c.Physics.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be positive, got %d", c.Physics.TickRate))
	}
	if c.Physics.Friction <= 0 || c.Physics.Friction >= 1 {
		errs = append(errs, fmt.Errorf("friction must be in (0,1), got %g", c.Physics.Friction))
	}
	if c.Physics.DragFollow <= 0 || c.Physics.DragFollow > 1 {
		errs = append(errs, fmt.Errorf("drag_follow must be in (0,1], got %g", c.Physics.DragFollow))
	}
	if c.Physics.GridCellSize <= 0 {
		errs = append(errs, errors.New("grid_cell_size must be positive"))
	}
	if c.Bonding.BondDistance <= 0 {
		errs = append(errs, errors.New("bond_distance must be positive"))
	}
	if c.Bonding.RejectDistance < c.Bonding.BondDistance {
		errs = append(errs, fmt.Errorf("reject_distance (%g) must be >= bond_distance (%g)",
			c.Bonding.RejectDistance, c.Bonding.BondDistance))
	}
	if c.Spawn.MaxAtoms <= 0 {
		errs = append(errs, errors.New("max_atoms must be positive"))
	}
	if c.Spawn.Interval <= 0 {
		errs = append(errs, errors.New("spawn interval must be positive"))
	}
	if c.Session.InitialAtoms > c.Spawn.MaxAtoms {
		errs = append(errs, fmt.Errorf("initial_atoms (%d) exceeds max_atoms (%d)",
			c.Session.InitialAtoms, c.Spawn.MaxAtoms))
	}
	for _, p := range c.Server.TrustedProxies {
		p = strings.TrimSpace(p)
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an address or CIDR", p))
		}
	}
	switch c.Classifier.Provider {
	case "anthropic", "fallback":
	default:
		errs = append(errs, fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider))
	}

	return errors.Join(errs...)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
