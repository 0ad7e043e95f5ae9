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

import (
	"fmt"

	"github.com/kir-gadjello/ant-router/pkg/httpclient"
	"github.com/kir-gadjello/ant-router/pkg/observability"
)

// Config is the root of the proxy's configuration, as decoded from YAML by
// Loader. It is loaded once at startup and then treated as immutable,
// shared read-only across every concurrent request handler.
type Config struct {
	// Server is the HTTP bind address.
	Server ServerConfig `yaml:"server,omitempty"`

	// Upstream is the default provider the proxy talks to when a model
	// doesn't resolve to one of Providers.
	Upstream UpstreamConfig `yaml:"upstream,omitempty"`

	// CurrentProfile names the profile used when a request does not select
	// one via the OVERRIDE- hatch. Precedence: env (PROFILE) > CLI > this
	// field > built-in default "default".
	CurrentProfile string `yaml:"current_profile,omitempty"`

	// Profiles maps profile name to its rule set and middleware settings.
	Profiles map[string]*ProfileConfig `yaml:"profiles,omitempty"`

	// Providers maps provider name to its connection details.
	Providers map[string]*ProviderConfig `yaml:"providers,omitempty"`

	// Models maps logical model ID to its resolved configuration.
	Models map[string]*ModelConfig `yaml:"models,omitempty"`

	// Log configures structured logging (C11).
	Log *LoggerConfig `yaml:"log,omitempty"`

	// Record, when true, appends every completed interaction to
	// recorded_logs.jsonl (C13).
	Record bool `yaml:"record,omitempty"`

	// TraceFile, when set, appends line-delimited pipeline trace events (C13).
	TraceFile string `yaml:"trace_file,omitempty"`

	// RateLimiting configures the optional upstream rate limiter (C14).
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty"`

	// Observability configures OpenTelemetry tracing and Prometheus metrics (C12).
	Observability *observability.Config `yaml:"observability,omitempty"`

	// NoAnt, when true, rejects requests whose resolved wire model contains
	// "anthropic" (case-insensitive) before dispatch - the router's safety filter.
	NoAnt bool `yaml:"no_ant,omitempty"`
}

// ServerConfig is the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// UpstreamConfig is the default upstream the proxy dispatches translated
// requests to.
type UpstreamConfig struct {
	// BaseURL is the provider's API root, e.g. "https://openrouter.ai/api".
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnvVar names the environment variable carrying the bearer token.
	APIKeyEnvVar string `yaml:"api_key_env_var,omitempty"`
}

// ProfileConfig is a named grouping of routing rules plus optional
// per-profile middleware and rate-limit overrides.
type ProfileConfig struct {
	// Rules are evaluated in declaration order; first match wins.
	Rules []RuleConfig `yaml:"rules,omitempty"`

	// Preprocess merges onto the matched model's Preprocess (profile wins
	// per field) during routing.
	Preprocess *PreprocessConfig `yaml:"preprocess,omitempty"`

	// Middleware lists the middleware chain applied to requests resolved
	// through this profile (C7), e.g. "tool_filter", "system_prompt_patcher",
	// "exit_tool_enforcer".
	Middleware []MiddlewareConfig `yaml:"middleware,omitempty"`

	// RateLimit overrides the global rate limiter for this profile.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RuleConfig matches an inbound request's model alias and feature set to a
// logical model ID.
type RuleConfig struct {
	// Pattern is a glob (translated to an anchored, case-insensitive regex)
	// matched against the request's model alias.
	Pattern string `yaml:"pattern"`

	// MatchFeatures, if non-empty, restricts the rule to requests carrying
	// at least one of these feature tags ("vision", "reasoning"). Empty
	// means catch-all.
	MatchFeatures []string `yaml:"match_features,omitempty"`

	// Target is the logical model ID used when the rule matches.
	Target string `yaml:"target"`

	// ReasoningTarget, if set, is used instead of Target when "reasoning"
	// is in the request's feature set.
	ReasoningTarget string `yaml:"reasoning_target,omitempty"`
}

// MiddlewareConfig names and configures one middleware in a profile's chain.
type MiddlewareConfig struct {
	// Name identifies the middleware: "tool_filter", "system_prompt_patcher",
	// or "exit_tool_enforcer".
	Name string `yaml:"name"`

	// ToolFilter configures the tool_filter middleware.
	ToolFilter *ToolFilterConfig `yaml:"tool_filter,omitempty"`

	// SystemPromptPatcher configures the system_prompt_patcher middleware.
	SystemPromptPatcher *SystemPromptPatcherConfig `yaml:"system_prompt_patcher,omitempty"`
}

// ToolFilterConfig configures which tools survive the tool_filter middleware.
type ToolFilterConfig struct {
	// Allow, if set, retains only tools matching at least one pattern.
	Allow []string `yaml:"allow,omitempty"`
	// Deny removes any tool matching a pattern, evaluated before Allow.
	Deny []string `yaml:"deny,omitempty"`
}

// SystemPromptPatcherConfig configures the system_prompt_patcher middleware.
type SystemPromptPatcherConfig struct {
	Rules []SystemPromptRuleConfig `yaml:"rules,omitempty"`
}

// SystemPromptRuleConfig matches the current system prompt and, on match,
// applies a sequence of actions to it.
type SystemPromptRuleConfig struct {
	// Match entries are tried as "ALL", a substring regex, or an anchored
	// glob; every entry must match for the rule to fire.
	Match []string `yaml:"match,omitempty"`

	// Actions are applied sequentially: "replace", "prepend", "append",
	// "move_to_user", "delete".
	Actions []SystemPromptActionConfig `yaml:"actions,omitempty"`
}

// SystemPromptActionConfig is one step of a SystemPromptRuleConfig.
type SystemPromptActionConfig struct {
	Type string `yaml:"type"`

	// Pattern/With are used by "replace".
	Pattern string `yaml:"pattern,omitempty"`
	With    string `yaml:"with,omitempty"`

	// Value is used by "prepend"/"append".
	Value string `yaml:"value,omitempty"`

	// ForcedSystemPrompt/Prefix/Suffix are used by "move_to_user".
	ForcedSystemPrompt string `yaml:"forced_system_prompt,omitempty"`
	Prefix             string `yaml:"prefix,omitempty"`
	Suffix             string `yaml:"suffix,omitempty"`
}

// ProviderConfig describes one upstream LLM provider.
type ProviderConfig struct {
	// BaseURL is the provider's API root.
	BaseURL string `yaml:"base_url"`

	// AuthHeader names the HTTP header carrying the credential, e.g.
	// "Authorization". Default: "Authorization".
	AuthHeader string `yaml:"auth_header,omitempty"`

	// AuthPrefix is prepended to the credential value in AuthHeader, e.g.
	// "Bearer ". Default: "Bearer ".
	AuthPrefix string `yaml:"auth_prefix,omitempty"`

	// APIKeyEnvVar names the environment variable carrying the credential.
	APIKeyEnvVar string `yaml:"api_key_env_var,omitempty"`

	// Headers are default headers sent with every request to this provider.
	Headers map[string]string `yaml:"headers,omitempty"`

	// TLS configures custom certificate handling for this provider's
	// connections (a private CA for a self-hosted gateway, or - dev/test
	// only - skipping verification entirely). nil uses the process's
	// default TLS behavior.
	TLS *httpclient.TLSConfig `yaml:"tls,omitempty"`
}

// ModelConfig is a logical model's resolved configuration. It may extend a
// parent model, in which case Resolve deep-merges parent fields under child
// ones (see resolver.go).
type ModelConfig struct {
	// Extends names a parent logical model ID whose fields this model
	// inherits and may override.
	Extends string `yaml:"extends,omitempty"`

	// Provider names an entry in Config.Providers.
	Provider string `yaml:"provider,omitempty"`

	// APIModelID is the wire identifier sent to the provider.
	APIModelID string `yaml:"api_model_id,omitempty"`

	// Aliases are additional model-alias strings this entry also answers to.
	// Inheritance concatenates parent ++ child.
	Aliases []string `yaml:"aliases,omitempty"`

	// Context describes context-window capability (tokens in, tokens out).
	Context *ModelContext `yaml:"context,omitempty"`

	// Capabilities lists free-form capability tags (e.g. "vision", "reasoning").
	Capabilities []string `yaml:"capabilities,omitempty"`

	// APIParams configures the upstream call for this model.
	APIParams *APIParamsConfig `yaml:"api_params,omitempty"`

	// Preprocess controls request-translation behavior (C4).
	Preprocess *PreprocessConfig `yaml:"preprocess,omitempty"`

	// MaxTokens, if set, overrides the inbound request's max_tokens.
	MaxTokens *int `yaml:"max_tokens,omitempty"`

	// MinReasoning is the minimum reasoning directive applied when the
	// inbound request carries none. Its shape is polymorphic per §4.3: a
	// bool, a string effort level ("low"/"medium"/"high"), or an integer
	// token budget. Interpretation is left to pkg/translate.
	MinReasoning interface{} `yaml:"min_reasoning,omitempty"`

	// ForceReasoning, if set, replaces any inbound reasoning directive.
	// Same polymorphic shape as MinReasoning.
	ForceReasoning interface{} `yaml:"force_reasoning,omitempty"`
}

// ModelContext describes a model's context-window capability.
type ModelContext struct {
	MaxInputTokens  int `yaml:"max_input_tokens,omitempty"`
	MaxOutputTokens int `yaml:"max_output_tokens,omitempty"`
}

// APIParamsConfig configures the upstream HTTP call made for a model.
type APIParamsConfig struct {
	// Timeout bounds the upstream call, e.g. "60s".
	Timeout string `yaml:"timeout,omitempty"`

	// Headers are merged onto the provider's default headers, this model wins.
	Headers map[string]string `yaml:"headers,omitempty"`

	// ExtraBody is deep-merged into the outgoing JSON body after translation.
	ExtraBody map[string]interface{} `yaml:"extra_body,omitempty"`

	// Retry configures C8's retry policy for this model.
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig configures the upstream executor's retry behavior (C8).
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries,omitempty"`
	BackoffMs  int `yaml:"backoff_ms,omitempty"`
}

// PreprocessConfig controls request-translation behavior (C4).
type PreprocessConfig struct {
	// MergeSystemMessages concatenates an array-form system prompt into a
	// single string before translation.
	MergeSystemMessages bool `yaml:"merge_system_messages,omitempty"`

	// SanitizeToolHistory drops tool_use blocks with empty names and any
	// tool_result referencing them.
	SanitizeToolHistory bool `yaml:"sanitize_tool_history,omitempty"`

	// MaxOutputTokens is "auto" (clear max_tokens) or a numeric string
	// (set max_tokens to that value).
	MaxOutputTokens string `yaml:"max_output_tokens,omitempty"`

	// MaxOutputCap clamps max_tokens if it exceeds this value.
	MaxOutputCap *int `yaml:"max_output_cap,omitempty"`

	// JSONRepair enables lenient JSON parsing of tool_call arguments when
	// strict parsing fails (C5).
	JSONRepair bool `yaml:"json_repair,omitempty"`
}

// BoolPtr returns a pointer to b, for optional boolean config fields.
func BoolPtr(b bool) *bool { return &b }

// GetDatabase is intentionally absent: the proxy has no database-backed
// components. pkg/ratelimit's "sql" backend was dropped during adaptation
// (see DESIGN.md) in favor of "memory"/"redis", neither of which needs it.

// SetDefaults applies defaults across the whole configuration tree.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://openrouter.ai/api"
	}
	if c.Upstream.APIKeyEnvVar == "" {
		c.Upstream.APIKeyEnvVar = "OPENROUTER_API_KEY"
	}
	if c.CurrentProfile == "" {
		c.CurrentProfile = "default"
	}

	if c.Log == nil {
		c.Log = &LoggerConfig{}
	}
	c.Log.SetDefaults()

	if c.RateLimiting == nil {
		c.RateLimiting = &RateLimitConfig{}
	}
	c.RateLimiting.SetDefaults()

	if c.Observability == nil {
		c.Observability = &observability.Config{}
	}
	c.Observability.SetDefaults()

	for _, p := range c.Providers {
		p.SetDefaults()
	}
	for _, p := range c.Profiles {
		if p.RateLimit != nil {
			p.RateLimit.SetDefaults()
		}
	}
}

// SetDefaults applies provider-level defaults.
func (p *ProviderConfig) SetDefaults() {
	if p.AuthHeader == "" {
		p.AuthHeader = "Authorization"
	}
	if p.AuthPrefix == "" {
		p.AuthPrefix = "Bearer "
	}
}

// Validate checks the configuration for internal consistency. Routing
// validation (every rule target naming an existing model) is performed by
// Resolve in resolver.go, since it requires the extends chains to be walked
// first.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Log != nil {
		if err := c.Log.Validate(); err != nil {
			return err
		}
	}

	if c.RateLimiting != nil {
		if err := c.RateLimiting.Validate(); err != nil {
			return err
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return err
		}
	}

	for name, p := range c.Profiles {
		if p.RateLimit != nil {
			if err := p.RateLimit.Validate(); err != nil {
				return fmt.Errorf("profiles[%s].rate_limit: %w", name, err)
			}
		}
	}

	for name, prov := range c.Providers {
		if prov.BaseURL == "" {
			return fmt.Errorf("providers[%s].base_url is required", name)
		}
	}

	return Resolve(c)
}
