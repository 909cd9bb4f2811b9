package graph

import (
	"strings"

	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/model"
)

// Default boost coefficients.
const (
	DefaultLexicalBoost    = 0.2
	DefaultStructuralBoost = 0.15
)

// TokenSet is a set of lowercase variable-name tokens.
type TokenSet map[string]struct{}

// Tokenize splits a variable name on underscores into a lowercase token set.
// Empty tokens are dropped.
func Tokenize(name string) TokenSet {
	set := make(TokenSet)

	for _, tok := range strings.Split(strings.ToLower(name), "_") {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}

	return set
}

// Jaccard calculates the Jaccard similarity between two token sets.
// Returns 0 if either set is empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}

// Structural returns 1 if both value formats are present and equal, else 0.
func Structural(a, b string) float64 {
	if a == "" || b == "" || a != b {
		return 0
	}

	return 1
}

// Semantic returns the clamped inner product of two unit vectors.
func Semantic(a, b []float32) float64 {
	return max(0, float64(distance.Dot(a, b)))
}

// Scorer computes composite edge weights. It is safe for concurrent use.
type Scorer struct {
	LexicalBoost    float64
	StructuralBoost float64
}

// Weight combines the three similarity signals:
//
//	semantic * (1 + lexicalBoost*lexical + structuralBoost*structural)
func (s Scorer) Weight(semantic, lexical, structural float64) float64 {
	return semantic * (1 + s.LexicalBoost*lexical + s.StructuralBoost*structural)
}

// features holds the per-item inputs of the scorer, indexed by input position.
type features struct {
	vectors [][]float32 // unit vectors
	tokens  []TokenSet
	formats []string
}

func newFeatures(items []model.Item, vectors [][]float32) *features {
	f := &features{
		vectors: vectors,
		tokens:  make([]TokenSet, len(items)),
		formats: make([]string, len(items)),
	}

	for i, it := range items {
		f.tokens[i] = Tokenize(it.VariableName)
		f.formats[i] = it.ValueFormat
	}

	return f
}

// pairWeight scores the pair (i, j) in canonical order so that the result is
// bit-identical regardless of which endpoint discovered the other.
func (f *features) pairWeight(s Scorer, i, j int) float64 {
	if i > j {
		i, j = j, i
	}

	return s.Weight(
		Semantic(f.vectors[i], f.vectors[j]),
		Jaccard(f.tokens[i], f.tokens[j]),
		Structural(f.formats[i], f.formats[j]),
	)
}
