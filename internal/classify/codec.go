package classify

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	artifactFormat = "fault-triage/pipeline"
	// ArtifactVersion is bumped whenever the encoded layout changes incompatibly.
	ArtifactVersion = 1
)

type artifact struct {
	Format     string             `json:"format"`
	Version    int                `json:"version"`
	Target     string             `json:"target"`
	TrainedAt  time.Time          `json:"trained_at"`
	Vectorizer vectorizerArtifact `json:"vectorizer"`
	Classifier classifierArtifact `json:"classifier"`
}

type vectorizerArtifact struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

type classifierArtifact struct {
	Alpha          float64     `json:"alpha"`
	Classes        []string    `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

// Encode writes the fitted pipeline as a single JSON document. Float64 parameters are
// written in shortest round-trip form so Decode reproduces them exactly.
func (p *Pipeline) Encode(w io.Writer) error {
	if !p.Fitted() {
		return ErrNotFitted
	}
	doc := artifact{
		Format:    artifactFormat,
		Version:   ArtifactVersion,
		Target:    p.target,
		TrainedAt: time.Now().UTC(),
		Vectorizer: vectorizerArtifact{
			Terms: p.vectorizer.terms,
			IDF:   p.vectorizer.idf,
		},
		Classifier: classifierArtifact{
			Alpha:          p.classifier.Alpha,
			Classes:        p.classifier.classes,
			ClassLogPrior:  p.classifier.classLogPrior,
			FeatureLogProb: p.classifier.featureLogProb,
		},
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode %s pipeline: %w", p.target, err)
	}
	return nil
}

// Decode reads a pipeline written by Encode.
func Decode(r io.Reader) (*Pipeline, error) {
	var doc artifact
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if doc.Format != artifactFormat {
		return nil, fmt.Errorf("%w: format %q", ErrIncompatibleArtifact, doc.Format)
	}
	if doc.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: version %d, supported %d", ErrIncompatibleArtifact, doc.Version, ArtifactVersion)
	}

	vectorizer, err := restoreVectorizer(doc.Vectorizer.Terms, doc.Vectorizer.IDF)
	if err != nil {
		return nil, err
	}
	classifier, err := restoreNaiveBayes(
		doc.Classifier.Alpha,
		doc.Classifier.Classes,
		doc.Classifier.ClassLogPrior,
		doc.Classifier.FeatureLogProb,
		vectorizer.Dim(),
	)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		target:     doc.Target,
		vectorizer: vectorizer,
		classifier: classifier,
	}, nil
}
