package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Storage StorageConfig `mapstructure:"storage"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// HTTPConfig contains HTTP server settings.
// Respects Go stdlib net/http defaults where appropriate.
type HTTPConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds, default 30
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds, default 30
	IdleTimeout     int `mapstructure:"idle_timeout"`     // seconds, default 120
	MaxHeaderBytes  int `mapstructure:"max_header_bytes"` // bytes, stdlib default 1MB
	MaxBodyBytes    int `mapstructure:"max_body_bytes"`   // bytes, NO stdlib default!
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds, default 10
}

// GRPCConfig contains gRPC server settings.
// Configures vendor limits explicitly (gRPC has dangerous unlimited defaults).
type GRPCConfig struct {
	Port                 int `mapstructure:"port"`
	MaxRecvMsgSize       int `mapstructure:"max_recv_msg_size"`      // bytes, gRPC default 4MB
	MaxSendMsgSize       int `mapstructure:"max_send_msg_size"`      // bytes, gRPC default unlimited!
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams"` // gRPC default unlimited!
	ConnectionTimeout    int `mapstructure:"connection_timeout"`     // seconds, gRPC default none!
	KeepaliveTime        int `mapstructure:"keepalive_time"`         // seconds, default 120
	KeepaliveTimeout     int `mapstructure:"keepalive_timeout"`      // seconds, default 20
}

// StorageConfig contains Grove/Catalog persistence limits.
type StorageConfig struct {
	MaxGroveTrees int `mapstructure:"max_grove_trees"` // Maximum RuleTree descriptors held in a Grove
	MaxAttributes int `mapstructure:"max_attributes"`  // Maximum attributes the Catalog will hold
}

// LimitsConfig contains application-level limits. Load fills them in;
// nothing else in this repository reads them, so they are not applied to
// trees or gates (the gate's own cap is gate.MaxOwners).
type LimitsConfig struct {
	RuleTree RuleTreeLimits `mapstructure:"ruletree"`
	Gate     GateLimits     `mapstructure:"gate"`
}

// RuleTreeLimits bound the shape of a RuleTree accepted by the engine.
type RuleTreeLimits struct {
	MaxRuleSetDepth      int `mapstructure:"max_ruleset_depth"`      // Nesting depth of RuleSet.Children
	MaxRulesPerSet       int `mapstructure:"max_rules_per_set"`      // Rules per RuleSet
	MaxChildrenPerSet    int `mapstructure:"max_children_per_set"`   // Children per RuleSet
	MaxArithExprLength   int `mapstructure:"max_arith_expr_length"`  // Bytes, arithmetic-assignment source text
	EvaluationTimeoutMS  int `mapstructure:"evaluation_timeout_ms"`  // Milliseconds, caller-imposed on retrieval callbacks
}

// GateLimits bound the Transaction-State Gate.
type GateLimits struct {
	MaxOwners int `mapstructure:"max_owners"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override everything: RULETREE_HTTP_PORT,
	// RULETREE_LIMITS_GATE_MAX_OWNERS, etc.
	v.SetEnvPrefix("RULETREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values; explicit about vendor defaults vs.
// our additions.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 13011)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.idle_timeout", 120)
	v.SetDefault("http.max_header_bytes", 32768)
	v.SetDefault("http.max_body_bytes", 10485760) // 10MB - stdlib has NO limit!
	v.SetDefault("http.shutdown_timeout", 10)

	v.SetDefault("grpc.port", 13012)
	v.SetDefault("grpc.max_recv_msg_size", 4194304)
	v.SetDefault("grpc.max_send_msg_size", 4194304)
	v.SetDefault("grpc.max_concurrent_streams", 1000)
	v.SetDefault("grpc.connection_timeout", 120)
	v.SetDefault("grpc.keepalive_time", 120)
	v.SetDefault("grpc.keepalive_timeout", 20)

	v.SetDefault("storage.max_grove_trees", 10000)
	v.SetDefault("storage.max_attributes", 100000)

	v.SetDefault("limits.ruletree.max_ruleset_depth", 32)
	v.SetDefault("limits.ruletree.max_rules_per_set", 256)
	v.SetDefault("limits.ruletree.max_children_per_set", 256)
	v.SetDefault("limits.ruletree.max_arith_expr_length", 4096)
	v.SetDefault("limits.ruletree.evaluation_timeout_ms", 5000)

	v.SetDefault("limits.gate.max_owners", 250)
}
