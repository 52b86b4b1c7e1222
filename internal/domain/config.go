package domain

import "time"

// Config holds the complete Kestrel configuration. It is constructed
// once per process, treated as read-only, and passed explicitly to every
// component so the engine can be called concurrently with different
// configurations in tests.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices (sqlite/channel vs
	// postgres/redis/nats).
	Tier Tier `json:"tier"`

	// Engine configuration
	Detection DetectionConfig `json:"detection"`
	Scoring   ScoringConfig   `json:"scoring"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Alert routing
	AlertRoutes []AlertRouteConfig `json:"alertRoutes"`

	// Scheduled runs
	Scheduler SchedulerConfig `json:"scheduler"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// DetectionConfig holds every threshold the detector reads. Nothing in
// the detection rules is hardcoded; these values are the contract.
type DetectionConfig struct {
	// Rule 1: duplicate transactions
	DuplicateWindowDays   int     `json:"duplicateWindowDays"`
	DuplicateToleranceGBP float64 `json:"duplicateToleranceGbp"`

	// Rule 2: price variance (invoice > baseline x threshold)
	PriceVarianceThreshold float64 `json:"priceVarianceThreshold"`

	// Rule 3: SLA breach
	SLAGraceDays        int     `json:"slaGraceDays"`
	SLAPenaltyPerDayGBP float64 `json:"slaPenaltyPerDayGbp"`

	// Rule 4: volume spike
	VolumeSpikeSigma    float64 `json:"volumeSpikeSigma"`
	VolumeRollingWindow int     `json:"volumeRollingWindowDays"`

	// StrictValidation aborts the run on the first malformed record.
	// The default (false) skips bad records and reports them alongside
	// the findings.
	StrictValidation bool `json:"strictValidation"`
}

// FinancialBand maps a leakage range (GBP) to a score range. The score
// scales linearly with the position of the leakage inside the band.
type FinancialBand struct {
	LowGBP    float64 `json:"lowGbp"`
	HighGBP   float64 `json:"highGbp"`
	ScoreLow  float64 `json:"scoreLow"`
	ScoreHigh float64 `json:"scoreHigh"`
}

// SeverityCutoffs are the composite-score thresholds (inclusive lower
// bounds) for the severity bands. Anything below Medium is Low.
type SeverityCutoffs struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
}

// ScoringConfig holds every value the scorer reads.
type ScoringConfig struct {
	// RuleBaseScores maps each rule to its base score (0-70). A finding
	// whose rule is absent here is a fatal configuration error, never a
	// silent default.
	RuleBaseScores map[Rule]float64 `json:"ruleBaseScores"`

	FinancialBands  []FinancialBand     `json:"financialBands"`
	SeverityCutoffs SeverityCutoffs     `json:"severityBands"`
	Actions         map[Severity]string `json:"actions"`
}

// AlertRouteConfig declares one alert route: scored findings matching the
// CEL filter expression are published to the topic.
type AlertRouteConfig struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Topic      string `json:"topic"`
}

// SchedulerConfig controls the background pipeline scheduler.
type SchedulerConfig struct {
	Enabled    bool          `json:"enabled"`
	Interval   time.Duration `json:"interval"`
	RunOnStart bool          `json:"runOnStart"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the single-node tier: SQLite + in-process
	// channels + local LRU cache.
	TierCommunity Tier = "community"

	// TierPro is the multi-node tier: PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultDetection returns the stock detection thresholds.
func DefaultDetection() DetectionConfig {
	return DetectionConfig{
		DuplicateWindowDays:    1,
		DuplicateToleranceGBP:  1.0,
		PriceVarianceThreshold: 1.15,
		SLAGraceDays:           0,
		SLAPenaltyPerDayGBP:    150.0,
		VolumeSpikeSigma:       2.0,
		VolumeRollingWindow:    14,
	}
}

// DefaultScoring returns the stock scoring configuration.
// The top financial band is open-ended in policy (> GBP 10,000 scores
// 20-30); interpolation runs to GBP 100,000 and clamps at 30 above that.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		RuleBaseScores: map[Rule]float64{
			RuleDuplicate:     70,
			RulePriceVariance: 60,
			RuleSLABreach:     45,
			RuleVolumeSpike:   40,
		},
		FinancialBands: []FinancialBand{
			{LowGBP: 0, HighGBP: 500, ScoreLow: 0, ScoreHigh: 5},
			{LowGBP: 500, HighGBP: 2000, ScoreLow: 5, ScoreHigh: 10},
			{LowGBP: 2000, HighGBP: 10000, ScoreLow: 10, ScoreHigh: 20},
			{LowGBP: 10000, HighGBP: 100000, ScoreLow: 20, ScoreHigh: 30},
		},
		SeverityCutoffs: SeverityCutoffs{
			Critical: 80,
			High:     60,
			Medium:   35,
		},
		Actions: map[Severity]string{
			SeverityCritical: "IMMEDIATE: Escalate to Finance Director. Freeze supplier payments pending review.",
			SeverityHigh:     "TODAY: Assign to senior analyst for same-day investigation.",
			SeverityMedium:   "THIS WEEK: Add to weekly ops review. Request supplier clarification.",
			SeverityLow:      "MONITOR: Log for trend analysis. Review at end of month.",
		},
	}
}

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:      TierCommunity,
		Detection: DefaultDetection(),
		Scoring:   DefaultScoring(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		AlertRoutes: []AlertRouteConfig{
			{
				Name:       "critical-findings",
				Expression: "severity_rank >= 4",
				Topic:      TopicAlert,
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
