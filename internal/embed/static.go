package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticDimensions is the embedding width produced by StaticEmbedder.
const StaticDimensions = 256

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

var stopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// StaticEmbedder is a deterministic, network-free hash embedder: the
// fallback adapter used when no Ollama daemon is reachable (spec.md
// §4.F). Semantic quality is much lower than a real model, but results
// are stable and every operation stays local.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder builds a StaticEmbedder with the default dimension.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

func (e *StaticEmbedder) Dimensions() int   { return e.dims }
func (e *StaticEmbedder) ModelID() string   { return "static-256" }
func (e *StaticEmbedder) Close() error      { return nil }
func (e *StaticEmbedder) Available(context.Context) bool { return true }

func (e *StaticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dims)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return v
	}

	tokens := filterStop(tokenRegex.FindAllString(strings.ToLower(trimmed), -1))
	for _, tok := range tokens {
		v[hashIndex(tok, e.dims)] += tokenWeight
	}
	for _, tok := range tokens {
		for i := 0; i+ngramSize <= len(tok); i++ {
			v[hashIndex(tok[i:i+ngramSize], e.dims)] += ngramWeight
		}
	}
	return normalize(v)
}

func filterStop(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if !stopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

func hashIndex(s string, dims int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
