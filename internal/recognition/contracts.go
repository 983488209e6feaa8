package recognition

import "context"

// Service is the external optical/cloud recognition collaborator. The engine
// treats nonresponse and error identically to "no improvement".
type Service interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// Result carries recognized text plus per-block confidences in [0,1].
type Result struct {
	Text             string
	BlockConfidences []float64
}

// MeanConfidence returns the mean block confidence, or 0 when no blocks were
// reported.
func (r Result) MeanConfidence() float64 {
	if len(r.BlockConfidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range r.BlockConfidences {
		sum += c
	}
	return sum / float64(len(r.BlockConfidences))
}
