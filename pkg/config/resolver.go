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
	"errors"
	"fmt"
)

// ErrConfigCyclic is returned when a model's extends chain revisits a model
// already on the current resolution path.
var ErrConfigCyclic = errors.New("config: cyclic extends chain")

// ErrConfigUnknownTarget is returned when a rule's target or reasoning_target
// names a model that doesn't exist in Config.Models.
var ErrConfigUnknownTarget = errors.New("config: rule targets unknown model")

// Resolve walks every model's extends chain (depth-first, with a visited set
// to catch cycles), merging parent fields under child overrides, then
// validates that every rule's target and reasoning_target name an existing
// model. It mutates c.Models in place, replacing each entry with its fully
// merged form.
//
// Called from Config.Validate, after SetDefaults, so resolution always sees
// a config with defaults already applied.
func Resolve(c *Config) error {
	resolved := make(map[string]*ModelConfig, len(c.Models))

	for id := range c.Models {
		merged, err := resolveModel(c.Models, id, resolved, map[string]bool{})
		if err != nil {
			return err
		}
		resolved[id] = merged
	}

	for id, m := range resolved {
		c.Models[id] = m
	}

	for profileName, profile := range c.Profiles {
		for i, rule := range profile.Rules {
			if rule.Target != "" {
				if _, ok := c.Models[rule.Target]; !ok {
					return fmt.Errorf("%w: profiles[%s].rules[%d].target %q", ErrConfigUnknownTarget, profileName, i, rule.Target)
				}
			}
			if rule.ReasoningTarget != "" {
				if _, ok := c.Models[rule.ReasoningTarget]; !ok {
					return fmt.Errorf("%w: profiles[%s].rules[%d].reasoning_target %q", ErrConfigUnknownTarget, profileName, i, rule.ReasoningTarget)
				}
			}
		}
	}

	return nil
}

// resolveModel returns the fully merged ModelConfig for id, memoizing into
// resolved so a model shared by multiple children's extends chains is only
// merged once. visiting tracks the current DFS path for cycle detection.
func resolveModel(models map[string]*ModelConfig, id string, resolved map[string]*ModelConfig, visiting map[string]bool) (*ModelConfig, error) {
	if m, ok := resolved[id]; ok {
		return m, nil
	}

	m, ok := models[id]
	if !ok {
		return nil, fmt.Errorf("config: model %q referenced by extends does not exist", id)
	}

	if m.Extends == "" {
		resolved[id] = m
		return m, nil
	}

	if visiting[id] {
		return nil, fmt.Errorf("%w: %s", ErrConfigCyclic, id)
	}
	visiting[id] = true

	parent, err := resolveModel(models, m.Extends, resolved, visiting)
	if err != nil {
		return nil, err
	}

	delete(visiting, id)

	merged := mergeModel(parent, m)
	resolved[id] = merged
	return merged, nil
}

// mergeModel merges parent fields under child overrides: scalars are
// child-wins-if-set, aliases concatenate parent++child, headers union with
// child winning conflicts, extra_body deep-merges, and preprocess/context/
// capabilities are child-or-parent as a whole.
func mergeModel(parent, child *ModelConfig) *ModelConfig {
	merged := &ModelConfig{
		Provider:     firstNonEmpty(child.Provider, parent.Provider),
		APIModelID:   firstNonEmpty(child.APIModelID, parent.APIModelID),
		Aliases:      append(append([]string{}, parent.Aliases...), child.Aliases...),
		Context:      child.Context,
		Capabilities: child.Capabilities,
		Preprocess:     child.Preprocess,
		MaxTokens:      child.MaxTokens,
		MinReasoning:   firstNonNil(child.MinReasoning, parent.MinReasoning),
		ForceReasoning: firstNonNil(child.ForceReasoning, parent.ForceReasoning),
	}

	if merged.Context == nil {
		merged.Context = parent.Context
	}
	if merged.Capabilities == nil {
		merged.Capabilities = parent.Capabilities
	}
	if merged.Preprocess == nil {
		merged.Preprocess = parent.Preprocess
	}
	if merged.MaxTokens == nil {
		merged.MaxTokens = parent.MaxTokens
	}

	merged.APIParams = mergeAPIParams(parent.APIParams, child.APIParams)

	return merged
}

func mergeAPIParams(parent, child *APIParamsConfig) *APIParamsConfig {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}

	merged := &APIParamsConfig{
		Timeout: firstNonEmpty(child.Timeout, parent.Timeout),
		Headers: mergeStringMaps(parent.Headers, child.Headers),
		Retry:   child.Retry,
	}
	if merged.Retry == nil {
		merged.Retry = parent.Retry
	}
	merged.ExtraBody = deepMergeJSON(parent.ExtraBody, child.ExtraBody)

	return merged
}

func mergeStringMaps(parent, child map[string]string) map[string]string {
	if parent == nil && child == nil {
		return nil
	}
	merged := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range child {
		merged[k] = v
	}
	return merged
}

// deepMergeJSON recursively merges two JSON-object-shaped maps: nested
// objects merge key-wise, every other value type is replaced by child's.
func deepMergeJSON(parent, child map[string]interface{}) map[string]interface{} {
	if parent == nil && child == nil {
		return nil
	}

	merged := make(map[string]interface{}, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}

	for k, childVal := range child {
		parentVal, exists := merged[k]
		if !exists {
			merged[k] = childVal
			continue
		}

		parentObj, parentIsObj := parentVal.(map[string]interface{})
		childObj, childIsObj := childVal.(map[string]interface{})
		if parentIsObj && childIsObj {
			merged[k] = deepMergeJSON(parentObj, childObj)
		} else {
			merged[k] = childVal
		}
	}

	return merged
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonNil(a, b interface{}) interface{} {
	if a != nil {
		return a
	}
	return b
}
