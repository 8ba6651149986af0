package agent

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/pipeline"
)

var (
	// ErrMissingTopic is returned when a payload carries no request topic.
	ErrMissingTopic = errors.New("no content request found in payload")

	// ErrMissingDraft is returned by the editor when nothing was written.
	ErrMissingDraft = errors.New("no draft content found in payload")
)

// base holds what every agent needs to talk to the model.
type base struct {
	llm    client.Completer
	system string
}

// useMock reports whether the agent should answer without calling the model.
func (b base) useMock() bool {
	return b.llm == nil || !b.llm.IsConfigured()
}

func (b base) complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.llm.ChatCompletion(ctx, b.system, prompt)
	if err != nil {
		return "", errors.Wrap(err, "AI generation failed")
	}
	return out, nil
}

// Steps wires the four generation agents onto llm. A nil or unconfigured
// client makes every agent produce deterministic mock output.
func Steps(llm client.Completer) pipeline.Steps {
	return pipeline.Steps{
		Researcher: NewResearcher(llm),
		Planner:    NewPlanner(llm),
		Writer:     NewWriter(llm),
		Editor:     NewEditor(llm),
	}
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// bulletItem returns the text of a list line, or false if line is not one.
func bulletItem(line string) (string, bool) {
	if strings.HasPrefix(line, "**") {
		return "", false
	}
	for _, marker := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimLeft(line, "-•* ")), true
		}
	}
	return "", false
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
