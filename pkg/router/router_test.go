package router

import (
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		CurrentProfile: "default",
		Profiles: map[string]*config.ProfileConfig{
			"default": {
				Rules: []config.RuleConfig{
					{Pattern: "reasoning*", MatchFeatures: []string{"reasoning"}, ReasoningTarget: "o1"},
					{Pattern: "claude*", Target: "gpt4"},
				},
			},
		},
		Models: map[string]*config.ModelConfig{
			"gpt4": {APIModelID: "openai/gpt-4o"},
			"o1":   {APIModelID: "openai/o1"},
		},
	}
}

func TestGlobRouting(t *testing.T) {
	cfg := testConfig()
	res, err := Route(cfg, "default", "claude-3-5-sonnet", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.WireModel != "openai/gpt-4o" {
		t.Fatalf("wire model = %s, want openai/gpt-4o", res.WireModel)
	}
}

func TestReasoningTargetRouting(t *testing.T) {
	cfg := testConfig()
	res, err := Route(cfg, "default", "reasoning-x", FeatureSet{FeatureReasoning: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.WireModel != "openai/o1" {
		t.Fatalf("wire model = %s, want openai/o1", res.WireModel)
	}
}

func TestReasoningTargetIgnoredWithoutFeature(t *testing.T) {
	cfg := testConfig()
	// "reasoning-x" matches the first rule's pattern but lacks the reasoning
	// feature, so it falls through to the catch-all... which requires
	// "claude*"; neither matches, so the alias passes through unchanged.
	res, err := Route(cfg, "default", "reasoning-x", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.WireModel != "reasoning-x" {
		t.Fatalf("wire model = %s, want pass-through reasoning-x", res.WireModel)
	}
}

func TestNoRuleMatchPassesThrough(t *testing.T) {
	cfg := testConfig()
	res, err := Route(cfg, "default", "gemini-pro", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.WireModel != "gemini-pro" {
		t.Fatalf("wire model = %s, want pass-through gemini-pro", res.WireModel)
	}
}

func TestOverrideModelHatchSkipsRules(t *testing.T) {
	cfg := testConfig()
	res, err := Route(cfg, "default", "OVERRIDE-MODEL-o1", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.LogicalModelID != "o1" || res.WireModel != "openai/o1" {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestOverrideProfileHatchSelectsProfile(t *testing.T) {
	cfg := testConfig()
	cfg.Profiles["alt"] = &config.ProfileConfig{
		Rules: []config.RuleConfig{{Pattern: "*", Target: "gpt4"}},
	}
	res, err := Route(cfg, "default", "OVERRIDE-alt", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Profile != "alt" || res.WireModel != "openai/gpt-4o" {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestUnknownModelFallsBackToLogicalID(t *testing.T) {
	cfg := testConfig()
	cfg.Profiles["default"].Rules = append(cfg.Profiles["default"].Rules, config.RuleConfig{Pattern: "ghost", Target: "nonexistent"})
	res, err := Route(cfg, "default", "ghost", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if res.WireModel != "nonexistent" {
		t.Fatalf("wire model = %s, want nonexistent", res.WireModel)
	}
}

func TestNoAntSafetyFilter(t *testing.T) {
	cfg := testConfig()
	cfg.NoAnt = true
	cfg.Models["claude-direct"] = &config.ModelConfig{APIModelID: "anthropic/claude-3-5-sonnet"}
	cfg.Profiles["default"].Rules = append([]config.RuleConfig{{Pattern: "direct", Target: "claude-direct"}}, cfg.Profiles["default"].Rules...)
	_, err := Route(cfg, "default", "direct", FeatureSet{})
	if err != ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestPreprocessProfileWinsOverModel(t *testing.T) {
	cfg := testConfig()
	cfg.Models["gpt4"].Preprocess = &config.PreprocessConfig{MergeSystemMessages: true}
	cfg.Profiles["default"].Preprocess = &config.PreprocessConfig{SanitizeToolHistory: true}
	res, err := Route(cfg, "default", "claude-3-5-sonnet", FeatureSet{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Preprocess.SanitizeToolHistory || res.Preprocess.MergeSystemMessages {
		t.Fatalf("preprocess = %+v, want profile's value to win wholesale", res.Preprocess)
	}
}
