package classify

import "errors"

var (
	// ErrEmptyCorpus is returned when fitting on zero documents or on documents without tokens.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrInsufficientData is returned when a classifier sees fewer than two distinct labels.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrNotFitted is returned when a vectorizer, classifier or pipeline is used before Fit.
	ErrNotFitted = errors.New("model not fitted")
	// ErrIncompatibleArtifact is returned when an artifact was written with an unknown format or version.
	ErrIncompatibleArtifact = errors.New("incompatible artifact")
	// ErrCorruptArtifact is returned when an artifact decodes but its parameters are inconsistent.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)
