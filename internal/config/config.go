// Package config loads the agent configuration from an optional YAML file,
// expanding ${VAR} placeholders against the process environment before
// parsing. An unset variable referenced by the file is an error: the
// session must never be created from a half-resolved config.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config filename looked up in the working
// directory when no --config flag is given.
const DefaultPath = "agent_config.yaml"

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrMissingEnv wraps unresolved ${VAR} references.
var ErrMissingEnv = errors.New("config: unset environment variable")

// ToolgroupRef names a capability bundle attached to the agent session.
// In YAML it is either a bare string or a {name, args} mapping.
type ToolgroupRef struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

func (t *ToolgroupRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		t.Name = value.Value
		return nil
	case yaml.MappingNode:
		type plain ToolgroupRef
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		*t = ToolgroupRef(p)
		if t.Name == "" {
			return errors.New("toolgroup mapping requires a name")
		}
		return nil
	default:
		return fmt.Errorf("toolgroup must be a string or a mapping, got %v", value.Kind)
	}
}

// Strategy selects how the backend samples tokens.
type Strategy struct {
	Type        string  `yaml:"type"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

// SamplingParams nests the strategy the way the agent backend expects it.
type SamplingParams struct {
	Strategy Strategy `yaml:"strategy"`
}

// Speech holds the recognition and synthesis settings.
type Speech struct {
	STTModel string `yaml:"stt_model"`
	Language string `yaml:"language"`
	TTSModel string `yaml:"tts_model"`
	Voice    string `yaml:"voice"`
	Format   string `yaml:"format"`
}

// AgentConfig is resolved once at startup and immutable for the session.
type AgentConfig struct {
	Model          string         `yaml:"model"`
	Instructions   string         `yaml:"instructions"`
	BaseURL        string         `yaml:"base_url"`
	Toolgroups     []ToolgroupRef `yaml:"toolgroups"`
	SamplingParams SamplingParams `yaml:"sampling_params"`
	Speech         Speech         `yaml:"speech"`
}

type file struct {
	AgentConfig AgentConfig `yaml:"agent_config"`
}

// Default returns the built-in configuration used when no file is present.
func Default() AgentConfig {
	return AgentConfig{
		Model:        "gemini/gemini-2.5-flash",
		Instructions: "You are a speaking assistant. Keep answers short and conversational.",
		BaseURL:      "http://localhost:8321/v1/openai/v1",
		SamplingParams: SamplingParams{
			Strategy: Strategy{Type: "top_p", Temperature: 0.7, TopP: 0.95},
		},
		Speech: Speech{
			STTModel: "whisper-1",
			Language: "en",
			TTSModel: "tts-1",
			Voice:    "alloy",
			Format:   "mp3",
		},
	}
}

// Load reads the config at path, expands placeholders, default-merges and
// validates. A missing file is fine when path is DefaultPath; an explicit
// path that does not exist is an error. Loading is a pure function of the
// file content and the environment.
func Load(path string) (AgentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return Default(), nil
		}
		return AgentConfig{}, fmt.Errorf("read config: %w", err)
	}

	expanded, err := expand(string(raw))
	if err != nil {
		return AgentConfig{}, err
	}

	var f file
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return AgentConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := merge(f.AgentConfig)
	if err := cfg.validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

// expand substitutes every ${VAR} with its environment value. All misses
// are collected so the operator sees the full list at once.
func expand(raw string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(raw, func(tok string) string {
		name := placeholderRe.FindStringSubmatch(tok)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return tok
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

func merge(cfg AgentConfig) AgentConfig {
	def := Default()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Instructions == "" {
		cfg.Instructions = def.Instructions
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.SamplingParams.Strategy.Type == "" {
		cfg.SamplingParams.Strategy = def.SamplingParams.Strategy
	}
	if cfg.Speech.STTModel == "" {
		cfg.Speech.STTModel = def.Speech.STTModel
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = def.Speech.Language
	}
	if cfg.Speech.TTSModel == "" {
		cfg.Speech.TTSModel = def.Speech.TTSModel
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = def.Speech.Voice
	}
	if cfg.Speech.Format == "" {
		cfg.Speech.Format = def.Speech.Format
	}
	return cfg
}

func (c AgentConfig) validate() error {
	if c.Model == "" {
		return errors.New("config: model is required")
	}
	s := c.SamplingParams.Strategy
	switch s.Type {
	case "greedy", "top_p":
	default:
		return fmt.Errorf("config: unknown sampling strategy %q", s.Type)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("config: temperature %v out of range [0, 2]", s.Temperature)
	}
	if s.Type == "top_p" && (s.TopP <= 0 || s.TopP > 1) {
		return fmt.Errorf("config: top_p %v out of range (0, 1]", s.TopP)
	}
	for _, tg := range c.Toolgroups {
		if tg.Name == "" {
			return errors.New("config: toolgroup with empty name")
		}
	}
	switch c.Speech.Format {
	case "mp3", "wav", "opus":
	default:
		return fmt.Errorf("config: unsupported speech format %q", c.Speech.Format)
	}
	return nil
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
