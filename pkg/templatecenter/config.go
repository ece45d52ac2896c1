package templatecenter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the startup configuration for the template center subsystem.
// The enable flag is threaded in here rather than read from process
// environment at call time, so the core stays independently testable.
type Config struct {
	// Enabled globally enables or disables the subsystem. A disabled
	// subsystem serves 503 on every route.
	Enabled bool `yaml:"enabled"`

	// DefaultGateDocStates are the document statuses that satisfy a gate
	// requirement when the template's gate omits requiredDocStates.
	DefaultGateDocStates []DocumentStatus `yaml:"defaultGateDocStates"`

	// AuditRetentionDays bounds how long audit events are kept. <= 0
	// disables the retention sweep.
	AuditRetentionDays int `yaml:"auditRetentionDays"`
}

// DefaultConfig returns the default template center configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              true,
		DefaultGateDocStates: []DocumentStatus{StatusApproved, StatusCompleted},
		AuditRetentionDays:   90,
	}
}

// LoadConfig loads configuration from a YAML file. If the file does not
// exist, default configuration is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read template center config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse template center config: %w", err)
	}
	return cfg, nil
}
