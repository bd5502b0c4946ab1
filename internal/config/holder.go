package config

import (
	"sync/atomic"

	"github.com/dialsift/dialsift/internal/classify"
)

// Holder is the process-wide slot for the current configuration. Reloads
// replace the whole Config atomically; in-flight calls keep the parameter
// copy they took at call start and are never affected mid-call.
type Holder struct {
	v atomic.Pointer[Config]
}

// NewHolder returns a holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.v.Store(cfg)
	return h
}

// Current returns the most recently stored configuration. The returned value
// must be treated as read-only.
func (h *Holder) Current() *Config {
	return h.v.Load()
}

// Params returns a copy of the current default detection parameters. Each
// call's analysis takes one such copy at call start.
func (h *Holder) Params() classify.Params {
	return h.Current().Detection.Params()
}

// Replace swaps in a new configuration. Only future calls observe it.
func (h *Holder) Replace(cfg *Config) {
	h.v.Store(cfg)
}
