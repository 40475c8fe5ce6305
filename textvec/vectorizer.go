// Package textvec turns free text into TF-IDF weighted sparse vectors.
package textvec

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// ErrNotFitted is returned by Transform before Fit has been called.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// Vector is a sparse vector. Indices are sorted ascending.
type Vector struct {
	Indices []int
	Values  []float64
}

// Norm returns the euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Vectorizer computes term frequency times smoothed inverse document frequency,
// idf(t) = ln((1+n)/(1+df(t))) + 1, with L2 normalised rows.
type Vectorizer struct {
	StopWords map[string]struct{}

	vocabulary map[string]int
	idf        []float64
}

// NewVectorizer returns a vectorizer using the English stop-word list.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{StopWords: EnglishStopWords}
}

// Tokenize lowercases text and splits it into tokens, dropping stop words.
func (v *Vectorizer) Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := v.StopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Fit learns the vocabulary and idf weights from docs. Vocabulary indices follow
// the sorted order of terms.
func (v *Vectorizer) Fit(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range v.Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// Transform vectorizes docs with the fitted vocabulary. Unknown terms are ignored.
func (v *Vectorizer) Transform(docs []string) ([]Vector, error) {
	if v.vocabulary == nil {
		return nil, ErrNotFitted
	}
	out := make([]Vector, len(docs))
	for i, doc := range docs {
		out[i] = v.vectorize(doc)
	}
	return out, nil
}

// FitTransform fits on docs and returns their vectors.
func (v *Vectorizer) FitTransform(docs []string) []Vector {
	v.Fit(docs)
	vecs, _ := v.Transform(docs)
	return vecs
}

// VocabularySize is the number of distinct terms learned by Fit.
func (v *Vectorizer) VocabularySize() int {
	return len(v.vocabulary)
}

func (v *Vectorizer) vectorize(doc string) Vector {
	counts := make(map[int]float64)
	for _, tok := range v.Tokenize(doc) {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
		}
	}

	vec := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)
	for _, idx := range vec.Indices {
		vec.Values = append(vec.Values, counts[idx]*v.idf[idx])
	}

	if norm := vec.Norm(); norm > 0 {
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}
