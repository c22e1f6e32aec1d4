package tasks

import (
	"encoding/json"
	"fmt"
)

type taggingOutput struct {
	Tags []struct {
		Tag        string  `json:"tag"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	Confidence float64 `json:"confidence"`
}

func parseTagging(data []byte) (Result, error) {
	var out taggingOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedOutput, err)
	}

	if !confidenceInRange(out.Confidence) {
		return Result{}, fmt.Errorf("%w: top-level confidence out of range", ErrMalformedOutput)
	}
	for i, t := range out.Tags {
		if t.Tag == "" {
			return Result{}, fmt.Errorf("%w: tags[%d].tag empty", ErrMalformedOutput, i)
		}
		if !confidenceInRange(t.Confidence) {
			return Result{}, fmt.Errorf("%w: tags[%d].confidence out of range", ErrMalformedOutput, i)
		}
	}

	canonical, err := json.Marshal(out)
	if err != nil {
		return Result{}, fmt.Errorf("%w: re-encode: %v", ErrMalformedOutput, err)
	}
	return Result{Tag: Tagging, JSON: canonical}, nil
}
