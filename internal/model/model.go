package model

import (
	"context"
	"strings"
)

// Label is the fixed sentiment label set.
type Label string

const (
	Negative Label = "negative"
	Neutral  Label = "neutral"
	Positive Label = "positive"
)

// Result is one classification: a label from the fixed set and the model's
// confidence in [0,1].
type Result struct {
	Label Label
	Score float64
}

// Classifier runs a pre-trained sentiment model against one text snippet.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Flagged reports whether a result should trigger an alert: negative label
// with confidence at or above the threshold.
func Flagged(r Result, minNegativeScore float64) bool {
	return r.Label == Negative && r.Score >= minNegativeScore
}

// normalizeLabel maps raw model labels onto the fixed set. Pre-trained
// checkpoints disagree on naming: SST-2 style models emit NEGATIVE/POSITIVE,
// three-class models emit LABEL_0/LABEL_1/LABEL_2.
func normalizeLabel(raw string) Label {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "neg"), lower == "label_0":
		return Negative
	case strings.Contains(lower, "pos"), lower == "label_2":
		return Positive
	default:
		return Neutral
	}
}
