package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/model"
)

const writerSystemPrompt = `You are an expert content writer who produces engaging, well-structured long-form text.
Follow the outline, weave in the research, respect the requested tone and length,
and format the result as Markdown with ## headers.`

// Writer produces the first draft from the outline and research.
type Writer struct {
	base
}

// NewWriter creates a writing agent.
func NewWriter(llm client.Completer) *Writer {
	return &Writer{base{llm: llm, system: writerSystemPrompt}}
}

// Process fills payload.DraftContent.
func (a *Writer) Process(ctx context.Context, payload model.Payload) (model.Payload, error) {
	req := payload.Request
	if strings.TrimSpace(req.Topic) == "" {
		return payload, ErrMissingTopic
	}

	if a.useMock() {
		payload.DraftContent = mockDraft(req, payload.Outline)
		return payload, nil
	}

	out, err := a.complete(ctx, buildWritingPrompt(req, payload.Research, payload.Outline))
	if err != nil {
		return payload, err
	}

	payload.DraftContent = out
	return payload, nil
}

func buildWritingPrompt(req model.ContentRequest, research *model.ResearchResult, outline *model.ContentOutline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please write a %s about: %s\n", req.ContentType, req.Topic)
	fmt.Fprintf(&b, "\nTARGET LENGTH: Approximately %d words\n", req.WordCount)
	fmt.Fprintf(&b, "TONE: %s\n", req.Tone)
	fmt.Fprintf(&b, "LANGUAGE: %s\n", req.Language)
	if req.TargetAudience != "" {
		fmt.Fprintf(&b, "TARGET AUDIENCE: %s\n", req.TargetAudience)
	}
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "KEYWORDS TO INCLUDE: %s\n", strings.Join(req.Keywords, ", "))
	}

	if !research.IsEmpty() {
		b.WriteString("\n--- RESEARCH FINDINGS ---\n")
		writeList(&b, "Key Facts:", research.KeyFacts, 5)
		writeList(&b, "Statistics:", research.Statistics, 3)
	}

	if outline != nil {
		b.WriteString("\n--- CONTENT OUTLINE ---\n")
		fmt.Fprintf(&b, "Title: %s\n", outline.Title)
		fmt.Fprintf(&b, "Hook: %s\n", outline.Hook)
		b.WriteString("Sections:\n")
		for _, section := range outline.Sections {
			fmt.Fprintf(&b, "  - %s\n", section.Header)
			for _, point := range section.Points {
				fmt.Fprintf(&b, "    * %s\n", point)
			}
		}
	}

	if req.AdditionalInstructions != "" {
		fmt.Fprintf(&b, "\nADDITIONAL INSTRUCTIONS: %s\n", req.AdditionalInstructions)
	}

	b.WriteString("\n--- OUTPUT ---\n")
	b.WriteString("Write the complete content now. Use ## headers and bullet points where appropriate.")
	return b.String()
}

func mockDraft(req model.ContentRequest, outline *model.ContentOutline) string {
	if outline == nil {
		outline = mockOutline(req)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", outline.Title, outline.Hook)
	for _, section := range outline.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", section.Header)
		for _, point := range section.Points {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	if outline.CTA != "" {
		fmt.Fprintf(&b, "\n%s\n", outline.CTA)
	}
	return b.String()
}
