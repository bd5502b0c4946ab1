// Package config provides the configuration schema, loader, and hot-reload
// watcher for the dialsift call-screening server.
package config

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/dialsift/dialsift/internal/classify"
)

// LogLevel controls log verbosity for the dialsift server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the slog level scale. Unrecognised levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for dialsift.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detection DetectionConfig `yaml:"detection"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds network and logging settings for the dialsift server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8077").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled exposes /metrics when true.
	Enabled bool `yaml:"enabled"`
}

// detectionKeys maps the recognised detection keys (the legacy snake_case
// names) to setters on classify.Overrides.
var detectionKeys = map[string]func(*classify.Overrides, *int){
	"initial_silence":         func(o *classify.Overrides, v *int) { o.InitialSilence = v },
	"greeting":                func(o *classify.Overrides, v *int) { o.Greeting = v },
	"after_greeting_silence":  func(o *classify.Overrides, v *int) { o.AfterGreetingSilence = v },
	"total_analysis_time":     func(o *classify.Overrides, v *int) { o.TotalAnalysisTime = v },
	"min_word_length":         func(o *classify.Overrides, v *int) { o.MinimumWordLength = v },
	"between_words_silence":   func(o *classify.Overrides, v *int) { o.BetweenWordsSilence = v },
	"maximum_number_of_words": func(o *classify.Overrides, v *int) { o.MaximumNumberOfWords = v },
	"silence_threshold":       func(o *classify.Overrides, v *int) { o.SilenceThreshold = v },
	"maximum_word_length":     func(o *classify.Overrides, v *int) { o.MaximumWordLength = v },
}

// DetectionConfig holds the detection parameter overrides from the config
// file. Keys absent from the file keep their shipping defaults. Unknown keys
// are warned about and ignored rather than rejected, so a config written for
// a newer release still loads.
type DetectionConfig struct {
	overrides classify.Overrides
}

// UnmarshalYAML decodes the detection mapping key by key, warning on keys it
// does not recognise. A value that is not an integer is a load failure.
func (d *DetectionConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("detection must be a mapping, got %s", value.Tag)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		set, ok := detectionKeys[keyNode.Value]
		if !ok {
			slog.Warn("unknown detection keyword ignored",
				"key", keyNode.Value,
				"line", keyNode.Line,
			)
			continue
		}
		var n int
		if err := valNode.Decode(&n); err != nil {
			return fmt.Errorf("detection.%s: %w", keyNode.Value, err)
		}
		v := n
		set(&d.overrides, &v)
	}
	return nil
}

// Params resolves the file's detection overrides against the shipping
// defaults into a full parameter set.
func (d DetectionConfig) Params() classify.Params {
	return classify.Resolve(classify.Defaults(), d.overrides)
}
