package lexical

import (
	"bytes"
	"strings"

	"github.com/blevesearch/segment"
)

// stopWords mirrors the teacher's code-aware stop list: common
// keywords across the supported languages that add noise to lexical
// matching without adding discriminative signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "of": true,
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "if": true, "else": true, "for": true, "while": true,
}

// tokenize splits text into lowercase word tokens using blevesearch's
// Unicode word segmenter (UAX #29), the same segmentation library
// bleve itself uses internally, dropping punctuation/whitespace
// segments and stop words.
func tokenize(text string) []string {
	seg := segment.NewWordSegmenter(bytes.NewReader([]byte(text)))
	var tokens []string
	for seg.Segment() {
		if seg.Type() != segment.Ident && seg.Type() != segment.Number {
			continue
		}
		word := strings.ToLower(string(seg.Bytes()))
		if word == "" || stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// termFrequencies counts token occurrences.
func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}
