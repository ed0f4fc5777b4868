// Package config loads broadcaster configuration from defaults, an optional
// config file, a .env file and BROADCASTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BROADCASTER"

const (
	defaultServerPort         = 38707
	defaultServerHost         = "0.0.0.0"
	defaultReadTimeout        = 30 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultDatabasePath       = "./data/broadcaster.db"
	defaultDatabaseTimeout    = 5 * time.Second
	defaultDatabaseEnableWAL  = true
	defaultDatabaseMigrations = "./migrations"
	defaultLogLevel           = "info"
	defaultLogPretty          = false

	defaultSegmentDuration        = 10
	defaultWindowSize             = 20
	defaultMaxSegments            = 30
	defaultSafetyBuffer           = 2
	defaultDripPerTick            = 1
	defaultPendingRefillThreshold = 10
	defaultFeedInterval           = 5 * time.Second
	defaultSlideInterval          = 10 * time.Second
	defaultSweepHighWater         = 30
	defaultSweepLowWater          = 20
	defaultRegularCapacity        = 2
	defaultSaturationThreshold    = 2
	defaultSaturationCooldown     = 2 * time.Minute
	defaultHistorySize            = 3
	defaultStarvationCooldown     = 20 * time.Second
	defaultRefillFailureThreshold = 3
	defaultRefillResetTimeout     = time.Minute
	defaultSelfManagingInterval   = 100 * time.Second
	defaultSelfManagingDelay      = 30 * time.Second
	defaultSelfManagingTrigger    = 2
	defaultBitrate                = 128000
	defaultWorkers                = 8
	defaultMemorySize             = 50

	defaultFFmpegPath       = "ffmpeg"
	defaultFFprobePath      = "ffprobe"
	defaultSegmenterOutDir  = "./data/segments"
	defaultSegmenterTimeout = 5 * time.Minute

	defaultInactivityInterval     = 60 * time.Second
	defaultWaitingForCurator      = 5 * time.Minute
	defaultIdleThreshold          = 480 * time.Minute
	defaultIdleToOffline          = 120 * time.Minute
	defaultRemovalDelay           = time.Minute
	defaultEventsChannelPrefix    = "broadcaster.events"
	defaultEventsRedisDialTimeout = 5 * time.Second
)

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Broadcast  BroadcastConfig
	Segmenter  SegmenterConfig
	Inactivity InactivityConfig
	Events     EventsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// BroadcastConfig tunes the per-station live window and fragment scheduling.
type BroadcastConfig struct {
	// SegmentDuration is the advertised EXT-X-TARGETDURATION in seconds.
	SegmentDuration int
	// WindowSize is the number of segments listed in a manifest.
	WindowSize int
	// MaxSegments is the retained-segment count above which insert-time trimming runs.
	MaxSegments int
	// SafetyBuffer is how many segments ending at the last requested one survive a trim.
	SafetyBuffer int
	DripPerTick  int
	// PendingRefillThreshold triggers a fragment pull when pending drops below it.
	PendingRefillThreshold int
	FeedInterval           time.Duration
	SlideInterval          time.Duration
	SweepHighWater         int
	SweepLowWater          int
	RegularCapacity        int
	SaturationThreshold    int
	SaturationCooldown     time.Duration
	HistorySize            int
	StarvationCooldown     time.Duration
	RefillFailureThreshold int
	RefillResetTimeout     time.Duration
	SelfManagingInterval   time.Duration
	SelfManagingDelay      time.Duration
	SelfManagingTrigger    int
	Bitrate                int
	Workers                int
	MemorySize             int
}

// SegmenterConfig configures the ffmpeg HLS slicer.
type SegmenterConfig struct {
	FFmpegPath  string
	FFprobePath string
	OutputDir   string
	Timeout     time.Duration
}

// InactivityConfig holds the listener-inactivity thresholds.
type InactivityConfig struct {
	Interval          time.Duration
	WaitingForCurator time.Duration
	Idle              time.Duration
	IdleToOffline     time.Duration
	RemovalDelay      time.Duration
}

// EventsConfig selects the event bus. An empty RedisAddr keeps events in process.
type EventsConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
	ChannelPrefix string
}

// Load reads configuration. configFile may be empty to use the search path.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load() // nolint:errcheck // .env is optional

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/broadcaster")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)
	v.SetDefault("server.shutdowntimeout", defaultShutdownTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultDatabaseMigrations)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	for key, val := range Defaults().broadcastKeys() {
		v.SetDefault("broadcast."+key, val)
	}

	v.SetDefault("segmenter.ffmpegpath", defaultFFmpegPath)
	v.SetDefault("segmenter.ffprobepath", defaultFFprobePath)
	v.SetDefault("segmenter.outputdir", defaultSegmenterOutDir)
	v.SetDefault("segmenter.timeout", defaultSegmenterTimeout)

	v.SetDefault("inactivity.interval", defaultInactivityInterval)
	v.SetDefault("inactivity.waitingforcurator", defaultWaitingForCurator)
	v.SetDefault("inactivity.idle", defaultIdleThreshold)
	v.SetDefault("inactivity.idletooffline", defaultIdleToOffline)
	v.SetDefault("inactivity.removaldelay", defaultRemovalDelay)

	v.SetDefault("events.redisaddr", "")
	v.SetDefault("events.redispassword", "")
	v.SetDefault("events.redisdb", 0)
	v.SetDefault("events.dialtimeout", defaultEventsRedisDialTimeout)
	v.SetDefault("events.channelprefix", defaultEventsChannelPrefix)
}

// Defaults returns the broadcast tuning used when nothing overrides it.
func Defaults() BroadcastConfig {
	return BroadcastConfig{
		SegmentDuration:        defaultSegmentDuration,
		WindowSize:             defaultWindowSize,
		MaxSegments:            defaultMaxSegments,
		SafetyBuffer:           defaultSafetyBuffer,
		DripPerTick:            defaultDripPerTick,
		PendingRefillThreshold: defaultPendingRefillThreshold,
		FeedInterval:           defaultFeedInterval,
		SlideInterval:          defaultSlideInterval,
		SweepHighWater:         defaultSweepHighWater,
		SweepLowWater:          defaultSweepLowWater,
		RegularCapacity:        defaultRegularCapacity,
		SaturationThreshold:    defaultSaturationThreshold,
		SaturationCooldown:     defaultSaturationCooldown,
		HistorySize:            defaultHistorySize,
		StarvationCooldown:     defaultStarvationCooldown,
		RefillFailureThreshold: defaultRefillFailureThreshold,
		RefillResetTimeout:     defaultRefillResetTimeout,
		SelfManagingInterval:   defaultSelfManagingInterval,
		SelfManagingDelay:      defaultSelfManagingDelay,
		SelfManagingTrigger:    defaultSelfManagingTrigger,
		Bitrate:                defaultBitrate,
		Workers:                defaultWorkers,
		MemorySize:             defaultMemorySize,
	}
}

func (b BroadcastConfig) broadcastKeys() map[string]any {
	return map[string]any{
		"segmentduration":        b.SegmentDuration,
		"windowsize":             b.WindowSize,
		"maxsegments":            b.MaxSegments,
		"safetybuffer":           b.SafetyBuffer,
		"drippertick":            b.DripPerTick,
		"pendingrefillthreshold": b.PendingRefillThreshold,
		"feedinterval":           b.FeedInterval,
		"slideinterval":          b.SlideInterval,
		"sweephighwater":         b.SweepHighWater,
		"sweeplowwater":          b.SweepLowWater,
		"regularcapacity":        b.RegularCapacity,
		"saturationthreshold":    b.SaturationThreshold,
		"saturationcooldown":     b.SaturationCooldown,
		"historysize":            b.HistorySize,
		"starvationcooldown":     b.StarvationCooldown,
		"refillfailurethreshold": b.RefillFailureThreshold,
		"refillresettimeout":     b.RefillResetTimeout,
		"selfmanaginginterval":   b.SelfManagingInterval,
		"selfmanagingdelay":      b.SelfManagingDelay,
		"selfmanagingtrigger":    b.SelfManagingTrigger,
		"bitrate":                b.Bitrate,
		"workers":                b.Workers,
		"memorysize":             b.MemorySize,
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid server timeouts: read=%v write=%v (must be > 0)", c.Server.ReadTimeout, c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	if c.Inactivity.Interval <= 0 {
		return fmt.Errorf("invalid inactivity interval: %v (must be > 0)", c.Inactivity.Interval)
	}
	if c.Inactivity.WaitingForCurator >= c.Inactivity.Idle {
		return fmt.Errorf("waiting-for-curator threshold %v must be shorter than idle threshold %v",
			c.Inactivity.WaitingForCurator, c.Inactivity.Idle)
	}

	return nil
}

// Validate checks the broadcast tuning for internally consistent values.
func (b BroadcastConfig) Validate() error {
	positive := map[string]int{
		"segment duration":         b.SegmentDuration,
		"window size":              b.WindowSize,
		"max segments":             b.MaxSegments,
		"drip per tick":            b.DripPerTick,
		"pending refill threshold": b.PendingRefillThreshold,
		"regular capacity":         b.RegularCapacity,
		"saturation threshold":     b.SaturationThreshold,
		"history size":             b.HistorySize,
		"refill failure threshold": b.RefillFailureThreshold,
		"bitrate":                  b.Bitrate,
		"workers":                  b.Workers,
	}
	for name, val := range positive {
		if val <= 0 {
			return fmt.Errorf("invalid %s: %d (must be > 0)", name, val)
		}
	}

	if b.SafetyBuffer < 2 {
		return fmt.Errorf("invalid safety buffer: %d (must be >= 2)", b.SafetyBuffer)
	}
	if b.SweepLowWater < b.WindowSize {
		return fmt.Errorf("sweep low water %d is below window size %d", b.SweepLowWater, b.WindowSize)
	}
	if b.SweepHighWater < b.SweepLowWater {
		return fmt.Errorf("sweep high water %d is below low water %d", b.SweepHighWater, b.SweepLowWater)
	}
	if b.FeedInterval <= 0 || b.SlideInterval <= 0 {
		return fmt.Errorf("tick intervals must be > 0 (feed=%v slide=%v)", b.FeedInterval, b.SlideInterval)
	}

	return nil
}
