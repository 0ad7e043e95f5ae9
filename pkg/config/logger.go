// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "fmt"

// LoggerConfig configures logging behavior.
//
// The section is decoded, defaulted (enabled, info level, text format,
// stderr) and validated with the rest of Config. cmd/ant-router sets up its
// logger before the config file is loaded and does not apply this section:
// its level is debug when DEBUG=1, -v/--verbose or -t/--tool-verbose is
// given and info otherwise, and it writes to stderr in the simple format.
//
// Example:
//
//	log:
//	  enabled: true
//	  path: ant-router.log
//	  level: info
//	  format: text
type LoggerConfig struct {
	// Enabled controls whether logging is active at all. Default: true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Path is the log file path. Empty means stderr.
	Path string `yaml:"path,omitempty"`

	// Level specifies the log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format specifies the log format: "text" or "json".
	// Default: text
	Format string `yaml:"format,omitempty"`
}

// IsEnabled returns true unless logging was explicitly disabled.
func (c *LoggerConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// SetDefaults applies default values to LoggerConfig.
func (c *LoggerConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	// Path defaults to empty (stderr) - no need to set
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" {
		validLevels := map[string]bool{
			"debug":   true,
			"info":    true,
			"warn":    true,
			"warning": true,
			"error":   true,
		}
		if !validLevels[c.Level] {
			return fmt.Errorf("invalid log.level %q (valid: debug, info, warn, error)", c.Level)
		}
	}

	if c.Format != "" && c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log.format %q (valid: text, json)", c.Format)
	}

	return nil
}
