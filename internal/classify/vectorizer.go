package classify

import (
	"fmt"
	"math"
	"sort"
)

// FeatureVector is a sparse TF-IDF row. Indices are strictly ascending.
type FeatureVector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of non-zero entries.
func (f FeatureVector) Len() int {
	return len(f.Indices)
}

// Vectorizer turns documents into L2-normalised TF-IDF vectors over a vocabulary
// learned by Fit.
type Vectorizer struct {
	terms []string
	index map[string]int
	idf   []float64
}

// NewVectorizer returns an unfitted vectorizer.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{}
}

// Fit builds the vocabulary and smoothed inverse document frequencies from docs.
// Terms are indexed in sorted order so the same corpus always yields the same features.
func (v *Vectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return fmt.Errorf("%w: no tokens in %d documents", ErrEmptyCorpus, len(docs))
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	index := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		index[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	v.terms = terms
	v.index = index
	v.idf = idf
	return nil
}

// Transform maps each document onto the fitted vocabulary. Tokens outside the
// vocabulary are ignored, so a document of only unknown words yields an empty vector.
func (v *Vectorizer) Transform(docs []string) ([]FeatureVector, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([]FeatureVector, len(docs))
	for i, doc := range docs {
		out[i] = v.transformOne(doc)
	}
	return out, nil
}

func (v *Vectorizer) transformOne(doc string) FeatureVector {
	counts := make(map[int]float64)
	for _, tok := range Tokenize(doc) {
		if idx, ok := v.index[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return FeatureVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for i, idx := range indices {
		w := counts[idx] * v.idf[idx]
		values[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] /= norm
	}
	return FeatureVector{Indices: indices, Values: values}
}

// Fitted reports whether Fit has completed successfully.
func (v *Vectorizer) Fitted() bool {
	return v != nil && len(v.terms) > 0
}

// Dim returns the vocabulary size.
func (v *Vectorizer) Dim() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Vocabulary returns a copy of the fitted terms in feature-index order.
func (v *Vectorizer) Vocabulary() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.terms...)
}

// IDF returns the inverse document frequency for term and whether it is in the vocabulary.
func (v *Vectorizer) IDF(term string) (float64, bool) {
	if !v.Fitted() {
		return 0, false
	}
	idx, ok := v.index[term]
	if !ok {
		return 0, false
	}
	return v.idf[idx], true
}

func restoreVectorizer(terms []string, idf []float64) (*Vectorizer, error) {
	if len(terms) == 0 || len(terms) != len(idf) {
		return nil, fmt.Errorf("%w: vocabulary has %d terms and %d idf weights", ErrCorruptArtifact, len(terms), len(idf))
	}
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		if i > 0 && terms[i-1] >= term {
			return nil, fmt.Errorf("%w: vocabulary not strictly sorted at %q", ErrCorruptArtifact, term)
		}
		index[term] = i
	}
	return &Vectorizer{
		terms: append([]string(nil), terms...),
		index: index,
		idf:   append([]float64(nil), idf...),
	}, nil
}
