package config

import "fmt"

// StoreConfig locates the report history.
type StoreConfig struct {
	// Path is the JSONL file every report is appended to.
	Path string `json:"path"`
	// Disabled skips persistence.
	Disabled bool `json:"disabled"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "bayplan-reports.jsonl"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if !c.Disabled && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
