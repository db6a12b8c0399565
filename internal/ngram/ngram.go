// Package ngram implements a character n-gram TF-IDF vector space.
//
// Text is lowercased and runs of two or more whitespace characters are
// collapsed into a single space before every rune n-gram with length in
// [Min, Max] is counted. Terms are weighted with raw counts times the
// smoothed inverse document frequency ln((1+N)/(1+df))+1 and each row is
// L2-normalised, so the dot product of two vectors is their cosine similarity.
package ngram

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/recall/internal/domain"
)

// ErrEmptyVocabulary is returned by Fit when no document yields an n-gram.
var ErrEmptyVocabulary = domain.ErrEmptyVocabulary

// Vectorizer holds the n-gram range. The zero value is not usable; use New.
type Vectorizer struct {
	Min int
	Max int
}

// New returns a vectorizer for n-grams of length min..max inclusive.
func New(minN, maxN int) Vectorizer {
	if minN < 1 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}
	return Vectorizer{Min: minN, Max: maxN}
}

// Vector is a sparse row with strictly increasing Indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// Dot returns the inner product of two sparse vectors.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int { return len(v.Indices) }

// Model is a fitted vocabulary with idf weights and the transformed training rows.
type Model struct {
	vec   Vectorizer
	vocab map[string]int
	terms []string
	idf   []float64
	rows  []Vector
}

// Fit learns the vocabulary and idf weights from docs and returns the
// weighted matrix rows, one per document, in input order.
func (v Vectorizer) Fit(docs []string) (*Model, error) {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		c := v.count(d)
		counts[i] = c
		for term := range c {
			df[term]++
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	m := &Model{
		vec:   v,
		vocab: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		m.vocab[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	m.rows = make([]Vector, len(docs))
	for i, c := range counts {
		m.rows[i] = m.weigh(c)
	}
	return m, nil
}

// Transform maps text into the fitted space. Unknown n-grams are ignored.
func (m *Model) Transform(text string) Vector {
	return m.weigh(m.vec.count(text))
}

// Row returns the i-th training row.
func (m *Model) Row(i int) Vector { return m.rows[i] }

// Rows returns all training rows. The slice must not be modified.
func (m *Model) Rows() []Vector { return m.rows }

// Shape returns the matrix dimensions (documents, vocabulary size).
func (m *Model) Shape() (rows, cols int) { return len(m.rows), len(m.terms) }

// Terms returns the sorted vocabulary. The slice must not be modified.
func (m *Model) Terms() []string { return m.terms }

func (m *Model) weigh(counts map[string]int) Vector {
	idx := make([]int, 0, len(counts))
	for term := range counts {
		if k, ok := m.vocab[term]; ok {
			idx = append(idx, k)
		}
	}
	if len(idx) == 0 {
		return Vector{}
	}
	sort.Ints(idx)

	vals := make([]float64, len(idx))
	var norm float64
	for k, col := range idx {
		w := float64(counts[m.terms[col]]) * m.idf[col]
		vals[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for k := range vals {
			vals[k] /= norm
		}
	}
	return Vector{Indices: idx, Values: vals}
}

func (v Vectorizer) count(text string) map[string]int {
	runes := []rune(Normalize(text))
	out := make(map[string]int)
	for n := v.Min; n <= v.Max && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			out[string(runes[i:i+n])]++
		}
	}
	return out
}

// Normalize lowercases text and collapses every run of two or more
// whitespace characters into a single space. A lone whitespace character is kept as is.
func Normalize(text string) string {
	text = strings.ToLower(text)
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j-i >= 2 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}
