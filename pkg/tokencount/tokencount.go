package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

// Estimate returns an approximate token count for text under wireModel's
// encoding, falling back to cl100k_base when the model isn't recognized by
// tiktoken-go (true for most non-OpenAI wire model names this proxy sees).
// Never returns an error: an encoding failure degrades to a whitespace word
// count rather than aborting the caller's metric/trace recording.
func Estimate(wireModel, text string) int {
	enc, ok := encodingFor(wireModel)
	if !ok {
		return len(wordsOf(text))
	}
	return len(enc.Encode(text, nil, nil))
}

func encodingFor(model string) (*tiktoken.Tiktoken, bool) {
	cacheMu.RLock()
	enc, cached := encodingCache[model]
	cacheMu.RUnlock()
	if cached {
		return enc, enc != nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}

	cacheMu.Lock()
	encodingCache[model] = enc // cache the nil too, on total failure, to skip retrying
	cacheMu.Unlock()

	return enc, err == nil
}

func wordsOf(text string) []string {
	var words []string
	inWord := false
	start := 0
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			start = i
			inWord = true
		} else if isSpace && inWord {
			words = append(words, text[start:i])
			inWord = false
		}
	}
	if inWord {
		words = append(words, text[start:])
	}
	return words
}
