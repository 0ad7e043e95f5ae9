package upstream

import (
	"encoding/json"
	"regexp"
)

// contextLengthPattern matches an OpenRouter-style context-overflow error
// body across newlines, capturing the model's max context, the total tokens
// requested, and the tokens requested for the completion. Ported verbatim
// from original_source/src/handlers.rs's regex.
var contextLengthPattern = regexp.MustCompile(`(?s)maximum context length is (\d+).*?requested about (\d+).*?(\d+) in the output`)

// adaptMaxTokens inspects a 400 error body for the context-length-overflow
// pattern and, if found, returns a copy of body with "max_tokens" lowered to
// fit, per §4.7: input tokens are M-K (total requested minus output
// requested), and the new budget is N-(M-K)-100 (safety margin). Reports ok
// = false when the pattern doesn't match or the resulting budget isn't
// positive, in which case the 400 should surface unchanged.
func adaptMaxTokens(errorBody []byte, requestBody []byte) (adapted []byte, ok bool) {
	caps := contextLengthPattern.FindSubmatch(errorBody)
	if caps == nil {
		return nil, false
	}

	maxCtx, totalReq, outputReq := atoiOrZero(caps[1]), atoiOrZero(caps[2]), atoiOrZero(caps[3])
	inputTokens := totalReq - outputReq
	if inputTokens < 0 {
		inputTokens = 0
	}
	available := maxCtx - inputTokens - 100
	if available <= 0 {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal(requestBody, &parsed); err != nil {
		return nil, false
	}
	parsed["max_tokens"] = available

	out, err := json.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return out, true
}

func atoiOrZero(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
