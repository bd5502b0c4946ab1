package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Error is a configuration load or validation failure. The host treats it as
// a declined initialisation: the screening feature stays unavailable, but the
// process is free to carry on without it.
type Error struct {
	// Path is the config file involved, when known.
	Path string

	// Err is the underlying parse or validation failure.
	Err error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %q: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads the YAML configuration file at path and returns a validated
// [Config]. All failures are reported as a [*Error].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset server fields with their shipping values.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8077"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	p := cfg.Detection.Params()
	// These six derive the per-frame wait bound; zero would stall the frame
	// clock, so they must be positive.
	for name, v := range map[string]int{
		"initial_silence":        p.InitialSilence,
		"greeting":               p.Greeting,
		"after_greeting_silence": p.AfterGreetingSilence,
		"total_analysis_time":    p.TotalAnalysisTime,
		"min_word_length":        p.MinimumWordLength,
		"between_words_silence":  p.BetweenWordsSilence,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("detection.%s must be positive, got %d", name, v))
		}
	}
	for name, v := range map[string]int{
		"maximum_number_of_words": p.MaximumNumberOfWords,
		"maximum_word_length":     p.MaximumWordLength,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("detection.%s must not be negative, got %d", name, v))
		}
	}
	if p.SilenceThreshold < 0 || p.SilenceThreshold > 32767 {
		errs = append(errs, fmt.Errorf("detection.silence_threshold %d is out of range [0, 32767]", p.SilenceThreshold))
	}

	return errors.Join(errs...)
}
