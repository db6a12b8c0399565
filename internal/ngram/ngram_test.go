package ngram

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello world"},
		{"a  b", "a b"},
		{"a\n\n\tb", "a b"},
		{"a\nb", "a\nb"},
		{"  lead", " lead"},
		{"ÄÖÜ", "äöü"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestFit_Vocabulary(t *testing.T) {
	m, err := New(3, 5).Fit([]string{"abcd"})
	require.NoError(t, err)

	// 3-grams: abc bcd; 4-grams: abcd; no 5-grams
	assert.Equal(t, []string{"abc", "abcd", "bcd"}, m.Terms())
	rows, cols := m.Shape()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 3, cols)
}

func TestFit_EmptyVocabulary(t *testing.T) {
	_, err := New(3, 5).Fit([]string{"ab", "", "x"})
	assert.True(t, errors.Is(err, ErrEmptyVocabulary))

	_, err = New(3, 5).Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestFit_RowsNormalised(t *testing.T) {
	m, err := New(3, 5).Fit([]string{
		"the quick brown fox",
		"jumps over the lazy dog",
		"ab",
	})
	require.NoError(t, err)

	for i, r := range m.Rows()[:2] {
		assert.InDelta(t, 1.0, r.Dot(r), 1e-9, "row %d", i)
	}
	// a document shorter than Min has an empty row
	assert.Equal(t, 0, m.Row(2).Len())
}

func TestFit_SmoothedIDF(t *testing.T) {
	// "abc" appears in both docs, "xyz" only in the second.
	m, err := New(3, 3).Fit([]string{"abc", "abcxyz"})
	require.NoError(t, err)

	idfShared := math.Log(3.0/3.0) + 1
	idfRare := math.Log(3.0/2.0) + 1

	col := func(term string) int {
		for i, term2 := range m.Terms() {
			if term2 == term {
				return i
			}
		}
		return -1
	}
	assert.InDelta(t, idfShared, m.idf[col("abc")], 1e-12)
	assert.InDelta(t, idfRare, m.idf[col("xyz")], 1e-12)
}

func TestTransform_Similarity(t *testing.T) {
	docs := []string{
		"Paris is the capital of France.",
		"Bananas are yellow fruit rich in potassium.",
	}
	m, err := New(3, 5).Fit(docs)
	require.NoError(t, err)

	q := m.Transform("What is the capital of France?")
	s0 := q.Dot(m.Row(0))
	s1 := q.Dot(m.Row(1))
	assert.Greater(t, s0, s1)
	assert.LessOrEqual(t, s0, 1.0+1e-9)
}

func TestTransform_Identity(t *testing.T) {
	m, err := New(3, 5).Fit([]string{"hello world", "other text"})
	require.NoError(t, err)

	q := m.Transform("HELLO   world")
	assert.InDelta(t, 1.0, q.Dot(m.Row(0)), 1e-9)
}

func TestTransform_UnknownTerms(t *testing.T) {
	m, err := New(3, 5).Fit([]string{"abcdef"})
	require.NoError(t, err)

	q := m.Transform("zzzzzz")
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0.0, q.Dot(m.Row(0)))
}

func TestVector_Dot(t *testing.T) {
	a := Vector{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := Vector{Indices: []int{2, 3, 5}, Values: []float64{4, 9, 1}}
	assert.InDelta(t, 11.0, a.Dot(b), 1e-12)
	assert.InDelta(t, 0.0, a.Dot(Vector{}), 1e-12)
}

func TestNew_ClampsRange(t *testing.T) {
	v := New(0, -1)
	assert.Equal(t, 1, v.Min)
	assert.Equal(t, 1, v.Max)
}
