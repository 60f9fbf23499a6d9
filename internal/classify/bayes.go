package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// DefaultAlpha is the additive smoothing constant used when none is configured.
const DefaultAlpha = 1.0

// NaiveBayes is a multinomial naive Bayes classifier over TF-IDF weights.
type NaiveBayes struct {
	Alpha float64

	classes        []string
	classLogPrior  []float64
	featureLogProb [][]float64
}

// NewNaiveBayes returns an unfitted classifier. Non-positive alpha falls back to DefaultAlpha.
func NewNaiveBayes(alpha float64) *NaiveBayes {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	return &NaiveBayes{Alpha: alpha}
}

// Fit estimates class priors and smoothed per-feature likelihoods. The label set is
// closed at this point: classes are the distinct labels in sorted order.
func (nb *NaiveBayes) Fit(features []FeatureVector, labels []string, dim int) error {
	if len(features) != len(labels) {
		return fmt.Errorf("fit naive bayes: %d feature rows for %d labels", len(features), len(labels))
	}
	if dim <= 0 {
		return fmt.Errorf("%w: feature dimension %d", ErrEmptyCorpus, dim)
	}

	classes := lo.Uniq(labels)
	sort.Strings(classes)
	if len(classes) < 2 {
		return fmt.Errorf("%w: %d distinct labels, need at least 2", ErrInsufficientData, len(classes))
	}
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	classCount := make([]float64, len(classes))
	featureCount := make([][]float64, len(classes))
	for i := range featureCount {
		featureCount[i] = make([]float64, dim)
	}
	for row, fv := range features {
		ci := classIdx[labels[row]]
		classCount[ci]++
		for k, idx := range fv.Indices {
			if idx < 0 || idx >= dim {
				return fmt.Errorf("fit naive bayes: feature index %d outside dimension %d", idx, dim)
			}
			featureCount[ci][idx] += fv.Values[k]
		}
	}

	total := float64(len(labels))
	logPrior := make([]float64, len(classes))
	logProb := make([][]float64, len(classes))
	for ci := range classes {
		logPrior[ci] = math.Log(classCount[ci]) - math.Log(total)

		var mass float64
		for _, c := range featureCount[ci] {
			mass += c + nb.Alpha
		}
		logMass := math.Log(mass)
		row := make([]float64, dim)
		for j, c := range featureCount[ci] {
			row[j] = math.Log(c+nb.Alpha) - logMass
		}
		logProb[ci] = row
	}

	nb.classes = classes
	nb.classLogPrior = logPrior
	nb.featureLogProb = logProb
	return nil
}

// Predict returns the maximum a posteriori label for every row. Ties resolve to the
// class that sorts first.
func (nb *NaiveBayes) Predict(features []FeatureVector) ([]string, error) {
	if !nb.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([]string, len(features))
	for i, fv := range features {
		jll := nb.jointLogLikelihood(fv)
		best := 0
		for ci := 1; ci < len(jll); ci++ {
			if jll[ci] > jll[best] {
				best = ci
			}
		}
		out[i] = nb.classes[best]
	}
	return out, nil
}

// PredictProba returns normalised posterior probabilities, one slice per row, aligned with Classes.
func (nb *NaiveBayes) PredictProba(features []FeatureVector) ([][]float64, error) {
	if !nb.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(features))
	for i, fv := range features {
		jll := nb.jointLogLikelihood(fv)
		maxLL := jll[0]
		for _, ll := range jll[1:] {
			if ll > maxLL {
				maxLL = ll
			}
		}
		var sum float64
		for _, ll := range jll {
			sum += math.Exp(ll - maxLL)
		}
		logNorm := maxLL + math.Log(sum)
		probs := make([]float64, len(jll))
		for ci, ll := range jll {
			probs[ci] = math.Exp(ll - logNorm)
		}
		out[i] = probs
	}
	return out, nil
}

func (nb *NaiveBayes) jointLogLikelihood(fv FeatureVector) []float64 {
	jll := make([]float64, len(nb.classes))
	for ci := range nb.classes {
		score := nb.classLogPrior[ci]
		row := nb.featureLogProb[ci]
		for k, idx := range fv.Indices {
			if idx < 0 || idx >= len(row) {
				continue
			}
			score += fv.Values[k] * row[idx]
		}
		jll[ci] = score
	}
	return jll
}

// Fitted reports whether Fit has completed successfully.
func (nb *NaiveBayes) Fitted() bool {
	return nb != nil && len(nb.classes) > 0
}

// Classes returns a copy of the fit-time label set in tie-break order.
func (nb *NaiveBayes) Classes() []string {
	if nb == nil {
		return nil
	}
	return append([]string(nil), nb.classes...)
}

// Dim returns the number of features the classifier was fit on.
func (nb *NaiveBayes) Dim() int {
	if !nb.Fitted() {
		return 0
	}
	return len(nb.featureLogProb[0])
}

func restoreNaiveBayes(alpha float64, classes []string, logPrior []float64, logProb [][]float64, dim int) (*NaiveBayes, error) {
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %d classes", ErrCorruptArtifact, len(classes))
	}
	if len(logPrior) != len(classes) || len(logProb) != len(classes) {
		return nil, fmt.Errorf("%w: %d classes, %d priors, %d likelihood rows", ErrCorruptArtifact, len(classes), len(logPrior), len(logProb))
	}
	for i, row := range logProb {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: likelihood row %d has %d features, vocabulary has %d", ErrCorruptArtifact, i, len(row), dim)
		}
	}
	for i := 1; i < len(classes); i++ {
		if classes[i-1] >= classes[i] {
			return nil, fmt.Errorf("%w: classes not strictly sorted at %q", ErrCorruptArtifact, classes[i])
		}
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	rows := make([][]float64, len(logProb))
	for i, row := range logProb {
		rows[i] = append([]float64(nil), row...)
	}
	return &NaiveBayes{
		Alpha:          alpha,
		classes:        append([]string(nil), classes...),
		classLogPrior:  append([]float64(nil), logPrior...),
		featureLogProb: rows,
	}, nil
}
