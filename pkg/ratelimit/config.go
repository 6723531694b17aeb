package ratelimit

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultOperation is the mandatory fallback bucket for unrecognized
// operation names.
const DefaultOperation = "default"

// Config is the static per-operation policy.
type Config struct {
	Requests int   `json:"requests" mapstructure:"requests"`
	WindowMs int64 `json:"window_ms" mapstructure:"window_ms"`
}

// DefaultLimits is the closed operation table shipped with the gateway.
// Deployments may override it through configuration, but the default bucket
// must always exist.
func DefaultLimits() map[string]Config {
	return map[string]Config{
		"api-call":        {Requests: 100, WindowMs: 60_000},
		"login-attempt":   {Requests: 5, WindowMs: 300_000},
		"admin-action":    {Requests: 30, WindowMs: 60_000},
		"form-submission": {Requests: 20, WindowMs: 60_000},
		DefaultOperation:  {Requests: 60, WindowMs: 60_000},
	}
}

// Table resolves operation names to their policy.
type Table struct {
	limits map[string]Config
	logger *logrus.Logger
}

func NewTable(limits map[string]Config, logger *logrus.Logger) (*Table, error) {
	if len(limits) == 0 {
		limits = DefaultLimits()
	}
	if _, ok := limits[DefaultOperation]; !ok {
		return nil, fmt.Errorf("rate limit table requires a %q entry", DefaultOperation)
	}
	for operation, cfg := range limits {
		if cfg.Requests <= 0 {
			return nil, fmt.Errorf("rate limit for %q requires a positive 'requests' value", operation)
		}
		if cfg.WindowMs <= 0 {
			return nil, fmt.Errorf("rate limit for %q requires a positive 'window_ms' value", operation)
		}
	}
	copied := make(map[string]Config, len(limits))
	for operation, cfg := range limits {
		copied[operation] = cfg
	}
	return &Table{limits: copied, logger: logger}, nil
}

// Resolve returns the policy for operation, falling back to the default
// bucket with a warning when the name is unrecognized.
func (t *Table) Resolve(operation string) Config {
	if cfg, ok := t.limits[operation]; ok {
		return cfg
	}
	if t.logger != nil {
		t.logger.WithField("operation", operation).
			Warn("unknown rate limit operation, using default bucket")
	}
	return t.limits[DefaultOperation]
}

// Operations lists the configured bucket names.
func (t *Table) Operations() []string {
	names := make([]string, 0, len(t.limits))
	for name := range t.limits {
		names = append(names, name)
	}
	return names
}
