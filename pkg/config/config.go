package config

// Package config provides a reusable loader for hive node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// GovernanceMode selects how much autonomy the settlement/management
// flows have before requiring operator sign-off.
type GovernanceMode string

const (
	GovernanceSupervised GovernanceMode = "supervised"
	GovernanceFailsafe   GovernanceMode = "failsafe"
	// GovernanceAutonomous is a deprecated alias that MUST be normalized
	// to GovernanceFailsafe at load time.
	GovernanceAutonomous GovernanceMode = "autonomous"
)

// VPNMode controls whether peer connections are required to traverse a
// VPN overlay.
type VPNMode string

const (
	VPNAny       VPNMode = "any"
	VPNPreferred VPNMode = "vpn-preferred"
	VPNOnly      VPNMode = "vpn-only"
)

// IdentityMode selects the signing adapter implementation.
type IdentityMode string

const (
	IdentityLocal  IdentityMode = "local"
	IdentityRemote IdentityMode = "remote"
)

// Config represents the unified configuration for a hive node. It mirrors
// the structure of the YAML files shipped under cmd/hived/config.
type Config struct {
	Node struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
	} `mapstructure:"node" json:"node"`

	Governance struct {
		Mode GovernanceMode `mapstructure:"mode" json:"mode"`
	} `mapstructure:"governance" json:"governance"`

	VPN struct {
		Mode    VPNMode  `mapstructure:"mode" json:"mode"`
		Subnets []string `mapstructure:"subnets" json:"subnets"`
	} `mapstructure:"vpn" json:"vpn"`

	Protocol struct {
		RequiredMessages     []string `mapstructure:"required_messages" json:"required_messages"`
		RelayTTLDefault      int      `mapstructure:"relay_ttl_default" json:"relay_ttl_default"`
		FeerateGateThreshold int      `mapstructure:"feerate_gate_threshold_sat_per_vb" json:"feerate_gate_threshold_sat_per_vb"`
	} `mapstructure:"protocol" json:"protocol"`

	Settlement struct {
		Enabled     bool `mapstructure:"enabled" json:"enabled"`
		PeriodWeeks int  `mapstructure:"period_weeks" json:"period_weeks"`
	} `mapstructure:"settlement" json:"settlement"`

	Identity struct {
		Mode IdentityMode `mapstructure:"mode" json:"mode"`
	} `mapstructure:"identity" json:"identity"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/hived/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s config: %w", env, err)
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	normalize(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the HIVE_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(envOrDefault("HIVE_ENV", ""))
}

// envOrDefault returns the named environment variable, or fallback when
// it is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setDefaults() {
	viper.SetDefault("governance.mode", string(GovernanceSupervised))
	viper.SetDefault("vpn.mode", string(VPNAny))
	viper.SetDefault("protocol.relay_ttl_default", 2)
	viper.SetDefault("protocol.feerate_gate_threshold_sat_per_vb", 10)
	viper.SetDefault("settlement.enabled", true)
	viper.SetDefault("settlement.period_weeks", 1)
	viper.SetDefault("identity.mode", string(IdentityLocal))
	viper.SetDefault("logging.level", "info")
}

// normalize applies the documented alias mapping: governance_mode =
// "autonomous" MUST be treated identically to "failsafe".
func normalize(c *Config) {
	if c.Governance.Mode == GovernanceAutonomous {
		c.Governance.Mode = GovernanceFailsafe
	}
}
