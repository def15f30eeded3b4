// Package config holds the process configuration surface: environment
// variables for runtime knobs and an optional YAML intent table.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/router"
	"github.com/petparlor/triage/synthesis"
)

// Config is the full environment-derived configuration.
type Config struct {
	// ModelDeployment is the model deployment identifier used for every
	// agent. Required; the process must not start without it.
	ModelDeployment string `env:"MODEL_DEPLOYMENT_NAME"`

	// Provider selects the runtime adapter ("openai" or "anthropic").
	Provider string `env:"RUNTIME_PROVIDER" envDefault:"openai"`

	// TurnTimeout bounds the full route-invoke-synthesize pipeline per turn.
	TurnTimeout time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`

	// EchoPrefixSlack is the echo-detection prefix slack in characters.
	EchoPrefixSlack int `env:"ECHO_PREFIX_SLACK" envDefault:"20"`

	// IntentTablePath points to a YAML intent table; empty uses built-ins.
	IntentTablePath string `env:"INTENT_TABLE_PATH"`

	// OpenAPIDir is the root of the per-resource API documents.
	OpenAPIDir string `env:"OPENAPI_DIR" envDefault:"openapi"`

	// ListenAddr is the websocket transport bind address.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment. A missing model deployment identifier is a
// fatal configuration fault.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	if cfg.ModelDeployment == "" {
		return Config{}, fmt.Errorf("%w: MODEL_DEPLOYMENT_NAME is not set", core.ErrConfiguration)
	}
	if cfg.EchoPrefixSlack < 0 {
		return Config{}, fmt.Errorf("%w: ECHO_PREFIX_SLACK must not be negative", core.ErrConfiguration)
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: TURN_TIMEOUT must be positive", core.ErrConfiguration)
	}
	return cfg, nil
}

// intentFile is the YAML shape of the intent table.
type intentFile struct {
	Intents        []router.Intent `yaml:"intents"`
	Clarifications []string        `yaml:"clarification_patterns"`
}

// LoadIntentTable reads the YAML intent table at path. The clarification
// pattern list is optional; nil keeps the synthesizer defaults.
func LoadIntentTable(path string) ([]router.Intent, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: intent table: %v", core.ErrConfiguration, err)
	}
	var f intentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: intent table %s: %v", core.ErrConfiguration, path, err)
	}
	if len(f.Intents) == 0 {
		return nil, nil, fmt.Errorf("%w: intent table %s declares no intents", core.ErrConfiguration, path)
	}
	for _, in := range f.Intents {
		if in.Agent == "" || len(in.Keywords) == 0 {
			return nil, nil, fmt.Errorf("%w: intent table %s: every intent needs an agent and keywords", core.ErrConfiguration, path)
		}
	}
	return f.Intents, f.Clarifications, nil
}

// SynthesizerOptions maps the config onto synthesizer options.
func (c Config) SynthesizerOptions(patterns []string) func(o *synthesis.Options) {
	return func(o *synthesis.Options) {
		o.PrefixSlack = c.EchoPrefixSlack
		if patterns != nil {
			o.ClarificationPatterns = patterns
		}
	}
}
