package tasks

import (
	"encoding/json"
	"fmt"
)

// MemoryKind enumerates the five allowed memory classifications. Values are
// case-sensitive and must match exactly.
type MemoryKind string

const (
	MemoryCommitment MemoryKind = "commitment"
	MemoryFact       MemoryKind = "fact"
	MemoryInsight    MemoryKind = "insight"
	MemoryPattern    MemoryKind = "pattern"
	MemoryPreference MemoryKind = "preference"
)

func isValidMemoryKind(k string) bool {
	switch MemoryKind(k) {
	case MemoryCommitment, MemoryFact, MemoryInsight, MemoryPattern, MemoryPreference:
		return true
	default:
		return false
	}
}

type memoryDistillationOutput struct {
	Memories []struct {
		Kind       string  `json:"kind"`
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
	} `json:"memories"`
	Confidence float64 `json:"confidence"`
}

func parseMemoryDistillation(data []byte) (Result, error) {
	var out memoryDistillationOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedOutput, err)
	}

	if !confidenceInRange(out.Confidence) {
		return Result{}, fmt.Errorf("%w: top-level confidence out of range", ErrMalformedOutput)
	}
	for i, m := range out.Memories {
		if !isValidMemoryKind(m.Kind) {
			return Result{}, fmt.Errorf("%w: memories[%d].kind invalid: %q", ErrMalformedOutput, i, m.Kind)
		}
		if m.Content == "" {
			return Result{}, fmt.Errorf("%w: memories[%d].content empty", ErrMalformedOutput, i)
		}
		if !confidenceInRange(m.Confidence) {
			return Result{}, fmt.Errorf("%w: memories[%d].confidence out of range", ErrMalformedOutput, i)
		}
	}

	canonical, err := json.Marshal(out)
	if err != nil {
		return Result{}, fmt.Errorf("%w: re-encode: %v", ErrMalformedOutput, err)
	}
	return Result{Tag: MemoryDistillation, JSON: canonical}, nil
}
