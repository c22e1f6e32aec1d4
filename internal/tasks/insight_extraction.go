package tasks

import (
	"encoding/json"
	"fmt"
)

type insightExtractionOutput struct {
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

func parseInsightExtraction(data []byte) (Result, error) {
	var out insightExtractionOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedOutput, err)
	}

	if !confidenceInRange(out.Confidence) {
		return Result{}, fmt.Errorf("%w: top-level confidence out of range", ErrMalformedOutput)
	}
	for i, insight := range out.Insights {
		if insight == "" {
			return Result{}, fmt.Errorf("%w: insights[%d] empty", ErrMalformedOutput, i)
		}
	}

	canonical, err := json.Marshal(out)
	if err != nil {
		return Result{}, fmt.Errorf("%w: re-encode: %v", ErrMalformedOutput, err)
	}
	return Result{Tag: InsightExtraction, JSON: canonical}, nil
}
