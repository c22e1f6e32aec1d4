// Package tasks statically defines the gateway's supported analyses: their
// prompt templates, their output schemas, and the hand-rolled validation
// that keeps prompt engineering out of the core pipeline.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tag identifies a registered task.
type Tag string

const (
	MemoryDistillation Tag = "memory_distillation"
	Tagging            Tag = "tagging"
	InsightExtraction  Tag = "insight_extraction"
)

// ErrUnknownTask is returned by Lookup for an unregistered tag.
var ErrUnknownTask = errors.New("tasks: unknown task")

// ErrMalformedOutput is returned by Parse when the model's output fails
// fence-stripping, JSON decoding, or schema validation.
var ErrMalformedOutput = errors.New("tasks: malformed output")

// Descriptor is a static task definition: its prompt templates and the
// parser that validates the model's structured output.
type Descriptor struct {
	Tag           Tag
	SystemMessage string
	userTemplate  string
	parse         func(data []byte) (Result, error)
}

// Result is the task's validated structured output, ready to be re-sealed
// and returned to the client.
type Result struct {
	Tag  Tag
	JSON json.RawMessage
}

// registry is the static, process-wide table of supported tasks.
var registry = map[Tag]*Descriptor{
	MemoryDistillation: {
		Tag:           MemoryDistillation,
		SystemMessage: memoryDistillationSystemPrompt,
		userTemplate:  genericUserTemplate,
		parse:         parseMemoryDistillation,
	},
	Tagging: {
		Tag:           Tagging,
		SystemMessage: taggingSystemPrompt,
		userTemplate:  genericUserTemplate,
		parse:         parseTagging,
	},
	InsightExtraction: {
		Tag:           InsightExtraction,
		SystemMessage: insightExtractionSystemPrompt,
		userTemplate:  genericUserTemplate,
		parse:         parseInsightExtraction,
	},
}

// Lookup resolves a tag to its descriptor, or ErrUnknownTask.
func Lookup(tag Tag) (*Descriptor, error) {
	d, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, tag)
	}
	return d, nil
}

const genericUserTemplate = "%s"

// Format fills the user template with the verbatim plaintext. The plaintext
// is inserted as-is, with no escaping: the model receives it as the raw
// message body.
func (d *Descriptor) Format(plaintext string) (systemMessage, userMessage string) {
	return d.SystemMessage, fmt.Sprintf(d.userTemplate, plaintext)
}

// Parse strips an optional triple-backtick fence around modelOutput,
// JSON-decodes it, and validates it against the descriptor's schema.
func (d *Descriptor) Parse(modelOutput string) (Result, error) {
	stripped := stripFence(modelOutput)
	return d.parse([]byte(stripped))
}

// stripFence removes a surrounding ```json ... ``` or ``` ... ``` fence, if
// present. Models routinely wrap JSON output in markdown fences even when
// told not to.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func confidenceInRange(c float64) bool {
	return c >= 0 && c <= 1
}
