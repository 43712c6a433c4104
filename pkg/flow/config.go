package flow

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineOptions tunes the domain-stack pieces that sit around the Flow
// core (the bundled worker pool and the controller's CAS backoff curve).
// The core itself — Blueprint, Runner, Controller, the aggregators — never
// requires an EngineOptions value; spec.md's "no built-in scheduler, no
// timers" Non-goal is honored by keeping these knobs opt-in and outside the
// core types' constructors.
//
// Grounded on kbukum-gokit's config-struct-plus-defaults pattern.
type EngineOptions struct {
	// WorkerPoolSize bounds the default executorpool.Pool's concurrency.
	WorkerPoolSize int
	// ControllerMaxBackoff caps the Controller's CAS-retry backoff delay.
	ControllerMaxBackoff time.Duration
}

// ApplyDefaults fills zero-valued fields with sane defaults.
func (o *EngineOptions) ApplyDefaults() {
	if o.WorkerPoolSize <= 0 {
		o.WorkerPoolSize = 8
	}
	if o.ControllerMaxBackoff <= 0 {
		o.ControllerMaxBackoff = 2 * time.Millisecond
	}
}

var defaultEngineOptions = func() EngineOptions {
	o := EngineOptions{}
	o.ApplyDefaults()
	return o
}()

// SetDefaultEngineOptions overrides the package-wide defaults used by the
// Controller backoff curve. executorpool.NewDefault does not read them; it
// sizes its pool from ApplyDefaults alone. Intended to be called once at
// process startup.
func SetDefaultEngineOptions(o EngineOptions) {
	o.ApplyDefaults()
	defaultEngineOptions = o
}

// LoadEngineOptionsFromViper reads an EngineOptions from the given viper
// instance under the "flow" key prefix (flow.worker_pool_size,
// flow.controller_max_backoff), falling back to defaults for anything
// unset. Grounded on kbukum-gokit's viper-backed config loading.
func LoadEngineOptionsFromViper(v *viper.Viper) EngineOptions {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("flow.worker_pool_size", 8)
	v.SetDefault("flow.controller_max_backoff", "2ms")

	opts := EngineOptions{
		WorkerPoolSize:       v.GetInt("flow.worker_pool_size"),
		ControllerMaxBackoff: v.GetDuration("flow.controller_max_backoff"),
	}
	opts.ApplyDefaults()
	return opts
}
