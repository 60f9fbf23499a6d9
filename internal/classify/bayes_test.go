package classify

import (
	"errors"
	"math"
	"testing"
)

func TestNaiveBayesInsufficientData(t *testing.T) {
	features := []FeatureVector{{Indices: []int{0}, Values: []float64{1}}, {Indices: []int{1}, Values: []float64{1}}}
	err := NewNaiveBayes(1).Fit(features, []string{"Plumbing", "Plumbing"}, 2)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData got %v", err)
	}
}

func TestNaiveBayesLengthMismatch(t *testing.T) {
	err := NewNaiveBayes(1).Fit([]FeatureVector{{}}, []string{"a", "b"}, 1)
	if err == nil {
		t.Fatalf("expected error for mismatched lengths")
	}
}

func TestNaiveBayesNotFitted(t *testing.T) {
	nb := NewNaiveBayes(0)
	if nb.Alpha != DefaultAlpha {
		t.Fatalf("expected default alpha got %v", nb.Alpha)
	}
	if _, err := nb.Predict([]FeatureVector{{}}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted got %v", err)
	}
	if _, err := nb.PredictProba([]FeatureVector{{}}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted got %v", err)
	}
}

func TestNaiveBayesPredict(t *testing.T) {
	features := []FeatureVector{
		{Indices: []int{0}, Values: []float64{1}},
		{Indices: []int{0, 1}, Values: []float64{0.8, 0.6}},
		{Indices: []int{2}, Values: []float64{1}},
	}
	labels := []string{"Electrical", "Electrical", "Plumbing"}
	nb := NewNaiveBayes(1)
	if err := nb.Fit(features, labels, 3); err != nil {
		t.Fatalf("fit: %v", err)
	}

	got, err := nb.Predict([]FeatureVector{
		{Indices: []int{0}, Values: []float64{1}},
		{Indices: []int{2}, Values: []float64{1}},
		{},
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	expected := []string{"Electrical", "Plumbing", "Electrical"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("row %d: expected %s got %s", i, expected[i], got[i])
		}
	}

	probs, err := nb.PredictProba([]FeatureVector{{Indices: []int{2}, Values: []float64{1}}})
	if err != nil {
		t.Fatalf("predict proba: %v", err)
	}
	var sum float64
	for _, p := range probs[0] {
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("probabilities should sum to 1, got %v", sum)
	}
	if probs[0][1] <= probs[0][0] {
		t.Fatalf("expected Plumbing to dominate, got %v", probs[0])
	}
}

func TestNaiveBayesTieBreaksOnClassOrder(t *testing.T) {
	features := []FeatureVector{
		{Indices: []int{0}, Values: []float64{1}},
		{Indices: []int{1}, Values: []float64{1}},
		{Indices: []int{2}, Values: []float64{1}},
	}
	nb := NewNaiveBayes(1)
	if err := nb.Fit(features, []string{"Medium", "Low", "High"}, 3); err != nil {
		t.Fatalf("fit: %v", err)
	}
	classes := nb.Classes()
	if classes[0] != "High" || classes[1] != "Low" || classes[2] != "Medium" {
		t.Fatalf("expected sorted classes got %v", classes)
	}
	got, err := nb.Predict([]FeatureVector{{}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got[0] != "High" {
		t.Fatalf("expected tie to resolve to first class, got %s", got[0])
	}
}
