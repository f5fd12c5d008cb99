// Package config loads experiment files and turns them into the graph,
// agents and collaborators of a simulation run.
//
// Experiments may be written in YAML, TOML or JSON; the format is chosen by
// file extension. String values of the backend and output sections support
// ${VAR} environment expansion.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// Format names an experiment file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// validate is shared by every experiment.
var validate = validator.New()

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Experiment is the root of an experiment file.
type Experiment struct {
	Name   string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Agents int    `json:"agents" yaml:"agents" toml:"agents" validate:"gte=1"`
	Seed   uint64 `json:"seed" yaml:"seed" toml:"seed"`
	Rounds int    `json:"rounds" yaml:"rounds" toml:"rounds" validate:"gte=1"`

	Topology core.TopologySpec `json:"topology" yaml:"topology" toml:"topology"`
	Engine   EngineConfig      `json:"engine" yaml:"engine" toml:"engine"`

	// Priors lists each agent's round-0 choice. When empty, policies supply
	// priors.
	Priors []string `json:"priors,omitempty" yaml:"priors,omitempty" toml:"priors,omitempty" validate:"omitempty,dive,required"`

	// Truth is the correct choice, enabling ground-truth statistics.
	Truth string `json:"truth,omitempty" yaml:"truth,omitempty" toml:"truth,omitempty"`
	// Source is seeded with Truth as its prior.
	Source *int `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty" validate:"omitempty,gte=0"`
	// RandomSource draws the source from the experiment seed instead.
	RandomSource bool `json:"random_source,omitempty" yaml:"random_source,omitempty" toml:"random_source,omitempty"`

	// Params are free-form values handed to every policy and prompt
	// template, such as the question under debate.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`

	Policies []PolicyConfig `json:"policies" yaml:"policies" toml:"policies" validate:"required,min=1,dive"`
	Shock    *ShockConfig   `json:"shock,omitempty" yaml:"shock,omitempty" toml:"shock,omitempty"`
	Payoff   *PayoffConfig  `json:"payoff,omitempty" yaml:"payoff,omitempty" toml:"payoff,omitempty"`
	Sweep    *SweepConfig   `json:"sweep,omitempty" yaml:"sweep,omitempty" toml:"sweep,omitempty"`
	Backend  BackendConfig  `json:"backend" yaml:"backend" toml:"backend"`
	Output   OutputConfig   `json:"output" yaml:"output" toml:"output"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" toml:"logging"`
}

// EngineConfig mirrors engine.Config.
type EngineConfig struct {
	Workers              int      `json:"workers" yaml:"workers" toml:"workers" validate:"gte=0"`
	FaultThreshold       float64  `json:"fault_threshold" yaml:"fault_threshold" toml:"fault_threshold" validate:"gt=0,lte=1"`
	DecisionTimeout      Duration `json:"decision_timeout" yaml:"decision_timeout" toml:"decision_timeout" validate:"gte=0"`
	StopOnConvergence    bool     `json:"stop_on_convergence" yaml:"stop_on_convergence" toml:"stop_on_convergence"`
	ConvergenceTolerance float64  `json:"convergence_tolerance" yaml:"convergence_tolerance" toml:"convergence_tolerance" validate:"gte=0,lt=1"`
}

// PolicyConfig assigns a policy kind to a set of agents. An empty Agents
// list selects every agent; later entries override earlier ones.
type PolicyConfig struct {
	Agents []int          `json:"agents,omitempty" yaml:"agents,omitempty" toml:"agents,omitempty" validate:"omitempty,dive,gte=0"`
	Kind   string         `json:"kind" yaml:"kind" toml:"kind" validate:"required,oneof=majority stubborn constant sequence voter delegate"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
}

// ShockConfig injects a fixed piece of information from Round on.
type ShockConfig struct {
	Round         int    `json:"round" yaml:"round" toml:"round" validate:"gte=1"`
	Agents        []int  `json:"agents,omitempty" yaml:"agents,omitempty" toml:"agents,omitempty" validate:"omitempty,dive,gte=0"`
	Choice        string `json:"choice" yaml:"choice" toml:"choice" validate:"required"`
	Justification string `json:"justification,omitempty" yaml:"justification,omitempty" toml:"justification,omitempty"`
}

// PayoffConfig selects the payoff scoring decisions.
type PayoffConfig struct {
	Kind        string  `json:"kind" yaml:"kind" toml:"kind" validate:"required,oneof=technology"`
	HQChance    float64 `json:"hq_chance" yaml:"hq_chance" toml:"hq_chance" validate:"gte=0,lte=1"`
	TrueQuality string  `json:"true_quality" yaml:"true_quality" toml:"true_quality" validate:"omitempty,oneof=high low"`
}

// SweepConfig repeats an experiment over every combination of seeds and
// topology seeds. Empty lists keep the experiment's own seed.
type SweepConfig struct {
	Repeats       int      `json:"repeats" yaml:"repeats" toml:"repeats" validate:"gte=0"`
	Seeds         []uint64 `json:"seeds,omitempty" yaml:"seeds,omitempty" toml:"seeds,omitempty"`
	TopologySeeds []uint64 `json:"topology_seeds,omitempty" yaml:"topology_seeds,omitempty" toml:"topology_seeds,omitempty"`
}

// BackendConfig selects and tunes the language model behind delegate
// policies.
type BackendConfig struct {
	Provider          string   `json:"provider" yaml:"provider" toml:"provider" validate:"omitempty,oneof=openai anthropic mock"`
	Model             string   `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	APIKey            string   `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	BaseURL           string   `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens         int64    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty" validate:"gte=0"`
	RequestsPerSecond float64  `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty" toml:"requests_per_second,omitempty" validate:"gte=0"`
	Burst             int      `json:"burst,omitempty" yaml:"burst,omitempty" toml:"burst,omitempty" validate:"gte=0"`
	MaxCalls          int      `json:"max_calls,omitempty" yaml:"max_calls,omitempty" toml:"max_calls,omitempty" validate:"gte=0"`

	// Token prices per 1000 tokens, used for the run's usage cost.
	PromptCostPer1K     float64 `json:"prompt_cost_per_1k,omitempty" yaml:"prompt_cost_per_1k,omitempty" toml:"prompt_cost_per_1k,omitempty" validate:"gte=0"`
	CompletionCostPer1K float64 `json:"completion_cost_per_1k,omitempty" yaml:"completion_cost_per_1k,omitempty" toml:"completion_cost_per_1k,omitempty" validate:"gte=0"`

	Instructions      string   `json:"instructions,omitempty" yaml:"instructions,omitempty" toml:"instructions,omitempty"`
	Template          string   `json:"template,omitempty" yaml:"template,omitempty" toml:"template,omitempty"`

	// Reply is the canned answer of the mock provider.
	Reply string `json:"reply,omitempty" yaml:"reply,omitempty" toml:"reply,omitempty"`
}

// OutputConfig names where sealed runs are written. Both are optional.
type OutputConfig struct {
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	SQLite string `json:"sqlite,omitempty" yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// LoggingConfig configures the run logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" toml:"format" validate:"omitempty,oneof=json text"`
}

// Default returns an experiment holding every default value. Loaded files
// are decoded on top of it.
func Default() *Experiment {
	return &Experiment{
		Rounds:   10,
		Topology: core.TopologySpec{Family: core.FamilyRing},
		Engine: EngineConfig{
			Workers:         8,
			FaultThreshold:  0.5,
			DecisionTimeout: Duration(2 * time.Minute),
		},
		Backend: BackendConfig{Provider: "mock"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

// Load reads, expands and validates the experiment file at path.
func Load(path string) (*Experiment, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes data on top of Default, expands environment variables,
// fills derived defaults and validates the result.
func Parse(data []byte, format Format) (*Experiment, error) {
	exp := Default()
	if err := decode(data, format, exp); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	exp.expandEnv()
	exp.fill()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func decode(data []byte, format Format, exp *Experiment) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(exp)
	case FormatTOML:
		md, err := toml.Decode(string(data), exp)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys: %v", undecoded)
		}
		return nil
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(exp)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// expandEnv expands ${VAR} patterns in backend and output strings.
func (e *Experiment) expandEnv() {
	for _, s := range []*string{
		&e.Backend.APIKey,
		&e.Backend.BaseURL,
		&e.Backend.Model,
		&e.Output.Dir,
		&e.Output.SQLite,
	} {
		*s = expandEnvVars(*s)
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// fill derives defaults that depend on other fields.
func (e *Experiment) fill() {
	if e.Topology.Size == 0 {
		e.Topology.Size = e.Agents
	}
	if e.Topology.Seed == 0 {
		e.Topology.Seed = e.Seed
	}
}

// Validate checks struct tags and the constraints spanning fields.
func (e *Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid experiment: %w", err)
	}

	if e.Topology.Size != e.Agents {
		return fmt.Errorf("invalid experiment: topology size %d does not match %d agents", e.Topology.Size, e.Agents)
	}
	if n := len(e.Priors); n != 0 && n != e.Agents {
		return fmt.Errorf("invalid experiment: %d priors for %d agents", n, e.Agents)
	}
	if e.Source != nil && *e.Source >= e.Agents {
		return fmt.Errorf("invalid experiment: source %d out of range", *e.Source)
	}
	if e.Source != nil && e.RandomSource {
		return fmt.Errorf("invalid experiment: source and random_source are exclusive")
	}
	if (e.Source != nil || e.RandomSource) && e.Truth == "" && e.Payoff == nil {
		return fmt.Errorf("invalid experiment: source needs a truth")
	}
	for i, p := range e.Policies {
		if err := e.checkAgents(p.Agents); err != nil {
			return fmt.Errorf("invalid experiment: policies[%d]: %w", i, err)
		}
		if p.Kind == "delegate" && e.Backend.Provider == "" {
			return fmt.Errorf("invalid experiment: policies[%d]: delegate needs a backend provider", i)
		}
	}
	if e.Shock != nil {
		if err := e.checkAgents(e.Shock.Agents); err != nil {
			return fmt.Errorf("invalid experiment: shock: %w", err)
		}
	}
	return nil
}

func (e *Experiment) checkAgents(ids []int) error {
	for _, id := range ids {
		if id >= e.Agents {
			return fmt.Errorf("agent %d out of range [0,%d)", id, e.Agents)
		}
	}
	return nil
}

// AsMap returns the experiment as a generic map for run metadata. The API
// key is redacted.
func (e *Experiment) AsMap() (map[string]any, error) {
	redacted := *e
	if redacted.Backend.APIKey != "" {
		redacted.Backend.APIKey = "REDACTED"
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encoding experiment: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoding experiment: %w", err)
	}
	return out, nil
}
