package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/bayplan/app"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
	"github.com/kilianp07/bayplan/core/solver"
)

// EnvPrefix prefixes environment overrides. Nested keys use "__", so
// BAY_OBJECTIVE_WEIGHTS__CONFLICT sets objective_weights.conflict.
const EnvPrefix = "BAY_"

// DefaultSolverTimeLimitSeconds bounds a solve when nothing is configured.
const DefaultSolverTimeLimitSeconds = 30.0

type Config struct {
	// BufferMinutes is the default dwell margin. Nil means five minutes; an
	// explicit zero disables buffering.
	BufferMinutes           *float64           `json:"buffer_minutes" validate:"omitempty,gte=0"`
	PerRouteBufferOverrides map[string]float64 `json:"per_route_buffer_overrides" validate:"dive,gte=0"`
	// LayoverMinutes keeps a bus on its bay between consecutive block trips
	// up to this gap. Zero disables layovers.
	LayoverMinutes   float64       `json:"layover_minutes" validate:"gte=0"`
	ObjectiveWeights WeightsConfig `json:"objective_weights"`
	// SolverTimeLimitSeconds of zero returns the greedy warm start.
	SolverTimeLimitSeconds *float64       `json:"solver_time_limit_seconds" validate:"omitempty,gte=0"`
	SolverMaxNodes         int            `json:"solver_max_nodes" validate:"gte=0"`
	SolverBackend          string         `json:"solver_backend"`
	SolverOptions          map[string]any `json:"solver_options"`
	// BlockContinuityMode is off, same-bay or max-distance(<metres>).
	BlockContinuityMode string            `json:"block_continuity_mode"`
	AllowUnassigned     *bool             `json:"allow_unassigned"`
	Reassign            string            `json:"reassign" validate:"omitempty,oneof=none pending all"`
	WhatIfConcurrency   int               `json:"whatif_concurrency" validate:"gte=0"`
	ClusterLint         ClusterLintConfig `json:"cluster_lint"`
	Inputs              InputsConfig      `json:"inputs"`
	Store               StoreConfig       `json:"store"`
	Logging             LoggingConfig     `json:"logging"`
}

// WeightsConfig holds the primary objective penalties. Zero keeps the
// optimizer default.
type WeightsConfig struct {
	Conflict   float64 `json:"conflict" validate:"gte=0"`
	Unassigned float64 `json:"unassigned" validate:"gte=0"`
}

// ClusterLintConfig tunes the cluster geometry lint. Negative values
// disable a check.
type ClusterLintConfig struct {
	DistantMetres float64 `json:"distant_metres"`
	NearbyMetres  float64 `json:"nearby_metres"`
}

var validate = validator.New()

// Load reads the configuration file, yaml or json by extension, then applies
// BAY_ environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every unset key.
func (c *Config) SetDefaults() {
	if c.BufferMinutes == nil {
		v := float64(model.DefaultBufferMinutes)
		c.BufferMinutes = &v
	}
	if c.SolverTimeLimitSeconds == nil {
		v := DefaultSolverTimeLimitSeconds
		c.SolverTimeLimitSeconds = &v
	}
	if c.SolverBackend == "" {
		c.SolverBackend = solver.BackendBranchAndBound
	}
	if c.AllowUnassigned == nil {
		v := true
		c.AllowUnassigned = &v
	}
	if c.Reassign == "" {
		c.Reassign = string(app.ReassignPending)
	}
	if c.BlockContinuityMode == "" {
		c.BlockContinuityMode = "off"
	}
	c.ClusterLint.SetDefaults()
	c.Store.SetDefaults()
	c.Logging.SetDefaults()
}

// SetDefaults applies the lint thresholds of the cluster review checklist.
func (c *ClusterLintConfig) SetDefaults() {
	def := clusterLintDefaults()
	if c.DistantMetres == 0 {
		c.DistantMetres = def.DistantMetres
	}
	if c.NearbyMetres == 0 {
		c.NearbyMetres = def.NearbyMetres
	}
}

// Validate checks struct tags and every value that needs parsing.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s failed %q check", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if _, err := optimizer.ParseContinuity(c.BlockContinuityMode); err != nil {
		return fmt.Errorf("config: block_continuity_mode: %w", err)
	}
	if _, err := app.ParseReassign(c.Reassign); err != nil {
		return fmt.Errorf("config: reassign: %w", err)
	}
	if !slices.Contains(solver.NewRegistry().Names(), c.SolverBackend) {
		return fmt.Errorf("config: unknown solver_backend %q", c.SolverBackend)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("config: store: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	return nil
}
