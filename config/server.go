// Package config loads worldsimd's server configuration from YAML, following
// reinforcement.FromYaml's viper-then-yaml.v3 pattern: viper reads and parses
// the file, and the file's bytes are then decoded by yaml.v3 into a strongly
// typed struct so every config.yaml in the module shares one serialization
// library. Environment variables are not consulted.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"weltgrid/geom"
)

// PolicyOverrides lets an operator tune the named constants in geom.Policy
// without a rebuild; any field left at its zero value falls back to
// geom.DefaultPolicy()'s value (ApplyTo skips zero fields).
type PolicyOverrides struct {
	PrimitiveCost       int     `yaml:"primitiveCost"`
	MinOriginExclusion  float64 `yaml:"minOriginExclusion"`
	MinBuildRange       float64 `yaml:"minBuildRange"`
	MaxBuildRange       float64 `yaml:"maxBuildRange"`
	SettlementThreshold int     `yaml:"settlementThreshold"`
	SettlementMax       float64 `yaml:"settlementMax"`
	FrontierMin         float64 `yaml:"frontierMin"`
	FrontierMax         float64 `yaml:"frontierMax"`
	NodeExpansionGate   int     `yaml:"nodeExpansionGate"`
}

// ApplyTo folds non-zero overrides onto base, returning the effective
// policy; base is normally geom.DefaultPolicy().
func (o PolicyOverrides) ApplyTo(base geom.Policy) geom.Policy {
	if o.PrimitiveCost != 0 {
		base.PrimitiveCost = o.PrimitiveCost
	}
	if o.MinOriginExclusion != 0 {
		base.MinOriginExclusion = o.MinOriginExclusion
	}
	if o.MinBuildRange != 0 {
		base.MinBuildRange = o.MinBuildRange
	}
	if o.MaxBuildRange != 0 {
		base.MaxBuildRange = o.MaxBuildRange
	}
	if o.SettlementThreshold != 0 {
		base.SettlementThreshold = o.SettlementThreshold
	}
	if o.SettlementMax != 0 {
		base.SettlementMax = o.SettlementMax
	}
	if o.FrontierMin != 0 {
		base.FrontierMin = o.FrontierMin
	}
	if o.FrontierMax != 0 {
		base.FrontierMax = o.FrontierMax
	}
	if o.NodeExpansionGate != 0 {
		base.NodeExpansionGate = o.NodeExpansionGate
	}
	return base
}

// ServerConfig is the top-level shape of worldsimd's config.yaml.
type ServerConfig struct {
	HTTPAddr        string          `yaml:"httpAddr"`
	DatabasePath    string          `yaml:"databasePath"`
	BlueprintDir    string          `yaml:"blueprintDir"`
	JWTSecret       string          `yaml:"jwtSecret"`
	AgentLiveness   time.Duration   `yaml:"agentLiveness"`
	TickInterval    time.Duration   `yaml:"tickInterval"`
	SoloRefill      int             `yaml:"soloRefill"`
	GuildRefill     int             `yaml:"guildRefill"`
	RefillPeriod    time.Duration   `yaml:"refillPeriod"`
	Policy          PolicyOverrides `yaml:"policy"`
}

// Default returns the configuration worldsimd runs with when no config.yaml
// is supplied: an on-disk sqlite database in the working directory, and the
// unmodified policy constants.
func Default() ServerConfig {
	return ServerConfig{
		HTTPAddr:      ":8080",
		DatabasePath:  "./worldsim.db",
		BlueprintDir:  "./config/blueprints",
		AgentLiveness: 2 * time.Minute,
		TickInterval:  time.Second,
		SoloRefill:    500,
		GuildRefill:   750,
		RefillPeriod:  24 * time.Hour,
	}
}

// FromYaml reads path the same way reinforcement.FromYaml reads a training
// config: one viper instance per file, config type fixed to yaml. The file is
// then decoded into ServerConfig by yaml.v3 directly, because viper lowercases
// every key and the camelCase yaml tags would no longer match. Missing fields
// keep Default()'s values.
func FromYaml(path string) (ServerConfig, error) {
	cfg := Default()

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return ServerConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	spec, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(spec, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
