// Package cli holds the ambient environment-variable configuration for the
// nat binary: the handful of debug knobs (GC stress mode, GC logging, exec
// tracing) that are equally sensible as environment variables or flags,
// mirroring how github.com/mna/mainer's own Parser supports resolving
// flags from a process's environment.
package cli

import "github.com/caarlos0/env/v6"

// Config holds the environment-sourced overrides for the nat tool. It is
// parsed independently of maincmd.Cmd's flag struct so the same knobs can
// be read by code that never goes through the mainer.Parser path (tests,
// embedders driving internal/vm directly).
type Config struct {
	GCStress  bool `env:"NAT_GC_STRESS"`
	GCLog     bool `env:"NAT_GC_LOG"`
	TraceExec bool `env:"NAT_TRACE_EXEC"`
}

// Load reads Config from the process environment, leaving every field at
// its zero value when the corresponding variable is unset.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
