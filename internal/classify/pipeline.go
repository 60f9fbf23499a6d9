package classify

import "fmt"

// Pipeline binds a Vectorizer to the NaiveBayes fit on its output. Callers can only
// predict through the pair.
type Pipeline struct {
	target     string
	vectorizer *Vectorizer
	classifier *NaiveBayes
}

// NewPipeline returns an unfitted pipeline for the named target column.
func NewPipeline(target string, alpha float64) *Pipeline {
	return &Pipeline{
		target:     target,
		vectorizer: NewVectorizer(),
		classifier: NewNaiveBayes(alpha),
	}
}

// Fit fits the vectorizer on docs, transforms docs, then fits the classifier on the result.
func (p *Pipeline) Fit(docs, labels []string) error {
	if len(docs) != len(labels) {
		return fmt.Errorf("fit %s pipeline: %d documents for %d labels", p.target, len(docs), len(labels))
	}
	vectorizer := NewVectorizer()
	if err := vectorizer.Fit(docs); err != nil {
		return fmt.Errorf("fit %s vectorizer: %w", p.target, err)
	}
	features, err := vectorizer.Transform(docs)
	if err != nil {
		return fmt.Errorf("transform %s corpus: %w", p.target, err)
	}
	classifier := NewNaiveBayes(p.classifier.Alpha)
	if err := classifier.Fit(features, labels, vectorizer.Dim()); err != nil {
		return fmt.Errorf("fit %s classifier: %w", p.target, err)
	}
	p.vectorizer = vectorizer
	p.classifier = classifier
	return nil
}

// Predict returns one label per document, in input order.
func (p *Pipeline) Predict(docs []string) ([]string, error) {
	features, err := p.transform(docs)
	if err != nil {
		return nil, err
	}
	return p.classifier.Predict(features)
}

// PredictProba returns posterior probabilities per document, aligned with Labels.
func (p *Pipeline) PredictProba(docs []string) ([][]float64, error) {
	features, err := p.transform(docs)
	if err != nil {
		return nil, err
	}
	return p.classifier.PredictProba(features)
}

func (p *Pipeline) transform(docs []string) ([]FeatureVector, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	return p.vectorizer.Transform(docs)
}

// Fitted reports whether both stages are fitted.
func (p *Pipeline) Fitted() bool {
	return p != nil && p.vectorizer.Fitted() && p.classifier.Fitted()
}

// Target is the label column this pipeline predicts.
func (p *Pipeline) Target() string {
	return p.target
}

// Labels returns the closed label set the pipeline can emit.
func (p *Pipeline) Labels() []string {
	return p.classifier.Classes()
}

// VocabularySize returns the number of features learned by the vectorizer.
func (p *Pipeline) VocabularySize() int {
	return p.vectorizer.Dim()
}
