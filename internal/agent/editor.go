package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/model"
)

const editorSystemPrompt = `You are a meticulous editor. Improve clarity, flow and grammar,
keep the author's voice and the requested tone, and return only the edited content.`

// Editor polishes the draft into the final content.
type Editor struct {
	base
}

// NewEditor creates an editing agent.
func NewEditor(llm client.Completer) *Editor {
	return &Editor{base{llm: llm, system: editorSystemPrompt}}
}

// Process fills payload.Content. It fails when there is no draft to edit.
func (a *Editor) Process(ctx context.Context, payload model.Payload) (model.Payload, error) {
	req := payload.Request
	if strings.TrimSpace(req.Topic) == "" {
		return payload, ErrMissingTopic
	}
	if strings.TrimSpace(payload.DraftContent) == "" {
		return payload, ErrMissingDraft
	}

	if a.useMock() {
		payload.Content = strings.TrimSpace(payload.DraftContent) + "\n"
		return payload, nil
	}

	out, err := a.complete(ctx, buildEditingPrompt(req, payload.DraftContent))
	if err != nil {
		return payload, err
	}

	payload.Content = out
	return payload, nil
}

func buildEditingPrompt(req model.ContentRequest, draft string) string {
	return fmt.Sprintf(`Please edit and polish the following content.

ORIGINAL REQUIREMENTS:
- Topic: %s
- Tone: %s
- Target audience: %s
- Target word count: %d words

CONTENT TO EDIT:
%s

--- EDITING INSTRUCTIONS ---
1. Improve clarity and readability
2. Strengthen the opening hook
3. Ensure smooth transitions between sections
4. Fix any grammatical errors
5. Remove redundant phrases
6. Verify the tone is consistent with %q
7. Ensure the conclusion has a strong call-to-action
8. Keep approximately the same length

Please provide the fully edited content.`,
		req.Topic, req.Tone, orDefault(req.TargetAudience, "General"), req.WordCount, draft, req.Tone)
}
