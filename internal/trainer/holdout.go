package trainer

import (
	"math"

	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/classify"
)

// splitHoldout deterministically picks an evenly spaced test slice of the given fraction.
// At least one row lands on each side when n >= 2.
func splitHoldout(n int, fraction float64) (train, test []int) {
	if n < 2 {
		return nil, nil
	}
	nTest := int(math.Round(float64(n) * fraction))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	isTest := make([]bool, n)
	for j := 0; j < nTest; j++ {
		isTest[j*n/nTest] = true
	}
	for i := 0; i < n; i++ {
		if isTest[i] {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	return train, test
}

// holdoutAccuracy fits a throwaway pipeline on the training slice and scores the test slice.
// It returns nil when the training slice cannot produce a classifier.
func holdoutAccuracy(target string, docs, labels []string, fraction, alpha float64) *float64 {
	train, test := splitHoldout(len(docs), fraction)
	if len(train) == 0 || len(test) == 0 {
		return nil
	}

	p := classify.NewPipeline(target, alpha)
	if err := p.Fit(pick(docs, train), pick(labels, train)); err != nil {
		logrus.WithError(err).WithField("target", target).Warn("holdout evaluation skipped")
		return nil
	}
	predicted, err := p.Predict(pick(docs, test))
	if err != nil {
		logrus.WithError(err).WithField("target", target).Warn("holdout evaluation failed")
		return nil
	}

	want := pick(labels, test)
	correct := 0
	for i := range predicted {
		if predicted[i] == want[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(test))
	logrus.WithFields(logrus.Fields{
		"target":   target,
		"train":    len(train),
		"test":     len(test),
		"accuracy": accuracy,
	}).Info("holdout evaluation complete")
	return &accuracy
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
