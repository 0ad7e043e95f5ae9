package router

import "github.com/kir-gadjello/ant-router/pkg/dialect"

// Feature is a derived property of an inbound request used to select among
// rules sharing a pattern (SPEC_FULL.md §4.2, Glossary).
type Feature string

const (
	FeatureVision    Feature = "vision"
	FeatureReasoning Feature = "reasoning"
)

// FeatureSet is the set of features an inbound request exhibits.
type FeatureSet map[Feature]bool

// Has reports whether f is present in the set.
func (fs FeatureSet) Has(f Feature) bool { return fs[f] }

// MatchesAny reports whether fs contains at least one of names (§9: rules
// match on "any of" their listed match_features, not "all of").
func (fs FeatureSet) MatchesAny(names []string) bool {
	for _, n := range names {
		if fs[Feature(n)] {
			return true
		}
	}
	return false
}

// DeriveFeatures computes the feature set of an inbound request: vision iff
// any message content contains an image block, reasoning iff a thinking
// capability was requested.
func DeriveFeatures(req *dialect.AnthropicRequest) FeatureSet {
	fs := FeatureSet{}
	if req.Thinking != nil {
		fs[FeatureReasoning] = true
	}
	for _, m := range req.Messages {
		if !m.Content.IsBlocks {
			continue
		}
		for _, b := range m.Content.Blocks {
			if _, ok := b.(dialect.ImageBlock); ok {
				fs[FeatureVision] = true
			}
		}
	}
	return fs
}
