package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/model"
)

const plannerSystemPrompt = `You are an expert content strategist who structures compelling content.
Create a clear, logical outline with an engaging hook, 3-5 main sections of 3-5 points each,
and a conclusion with a call to action.

You must respond with a valid JSON object in this exact format:
{
    "title": "Your compelling title here",
    "hook": "Opening hook that grabs attention...",
    "sections": [
        {"header": "Section 1 Header", "purpose": "What this section accomplishes", "points": ["Point 1", "Point 2"]}
    ],
    "conclusion_points": ["Key takeaway 1", "Key takeaway 2"],
    "cta": "Clear call to action for the reader"
}`

// Planner turns research into a content outline.
type Planner struct {
	base
}

// NewPlanner creates a planning agent.
func NewPlanner(llm client.Completer) *Planner {
	return &Planner{base{llm: llm, system: plannerSystemPrompt}}
}

// Process fills payload.Outline.
func (a *Planner) Process(ctx context.Context, payload model.Payload) (model.Payload, error) {
	req := payload.Request
	if strings.TrimSpace(req.Topic) == "" {
		return payload, ErrMissingTopic
	}

	if a.useMock() {
		payload.Outline = mockOutline(req)
		return payload, nil
	}

	out, err := a.complete(ctx, buildPlanningPrompt(req, payload.Research))
	if err != nil {
		return payload, err
	}

	payload.Outline = parseOutline(out)
	return payload, nil
}

func buildPlanningPrompt(req model.ContentRequest, research *model.ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed content outline for: %s\n", req.Topic)
	fmt.Fprintf(&b, "\nCONTENT TYPE: %s\n", req.ContentType)
	fmt.Fprintf(&b, "TARGET WORD COUNT: %d words\n", req.WordCount)
	fmt.Fprintf(&b, "TONE: %s\n", req.Tone)
	fmt.Fprintf(&b, "LANGUAGE: %s\n", req.Language)
	if req.TargetAudience != "" {
		fmt.Fprintf(&b, "TARGET AUDIENCE: %s\n", req.TargetAudience)
	}
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "KEYWORDS TO INCORPORATE: %s\n", strings.Join(req.Keywords, ", "))
	}

	if !research.IsEmpty() {
		b.WriteString("\n--- RESEARCH FINDINGS ---\n")
		writeList(&b, "Key Facts discovered:", research.KeyFacts, 7)
		writeList(&b, "Relevant Statistics:", research.Statistics, 5)
		writeList(&b, "Expert Quotes available:", research.Quotes, 3)
		writeList(&b, "Competitor Insights:", research.CompetitorInsights, 3)
	}

	if req.AdditionalInstructions != "" {
		fmt.Fprintf(&b, "\nADDITIONAL REQUIREMENTS: %s\n", req.AdditionalInstructions)
	}

	b.WriteString("\n--- INSTRUCTIONS ---\n")
	b.WriteString("Based on the above information, create a comprehensive content outline.\n")
	b.WriteString("Respond ONLY with a valid JSON object in the specified format.")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for i, item := range items {
		if i == limit {
			break
		}
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// parseOutline decodes the model's JSON outline, falling back to reading
// markdown headings and bullets when the answer is not JSON.
func parseOutline(content string) *model.ContentOutline {
	var outline model.ContentOutline
	if err := json.Unmarshal([]byte(extractJSON(content)), &outline); err != nil {
		return fallbackOutline(content)
	}

	outline.Title = orDefault(outline.Title, "Untitled")
	if outline.Sections == nil {
		outline.Sections = []model.OutlineSection{}
	}
	if outline.ConclusionPoints == nil {
		outline.ConclusionPoints = []string{}
	}
	return &outline
}

func fallbackOutline(content string) *model.ContentOutline {
	title := "Content Outline"
	hook := ""
	var sections []model.OutlineSection
	var current *model.OutlineSection

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "title:"):
			title = strings.Trim(strings.TrimSpace(line[len("title:"):]), `"`)
		case strings.Contains(lower, "hook:"):
			hook = strings.Trim(strings.TrimSpace(line[strings.Index(line, ":")+1:]), `"`)
		case strings.HasPrefix(line, "#"):
			if current != nil {
				sections = append(sections, *current)
			}
			current = &model.OutlineSection{Header: strings.TrimSpace(strings.TrimLeft(line, "#")), Points: []string{}}
		default:
			if point, ok := bulletItem(line); ok && current != nil {
				current.Points = append(current.Points, point)
			}
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	if len(sections) == 0 {
		sections = []model.OutlineSection{
			{Header: "Introduction", Purpose: "Set the context", Points: []string{"Introduce the topic", "Establish relevance"}},
			{Header: "Main Content", Purpose: "Core information", Points: []string{"Key point 1", "Key point 2", "Key point 3"}},
			{Header: "Conclusion", Purpose: "Wrap up", Points: []string{"Summary", "Call to action"}},
		}
	}

	return &model.ContentOutline{
		Title:            title,
		Hook:             orDefault(hook, "Engaging opening to capture reader attention."),
		Sections:         sections,
		ConclusionPoints: []string{"Key takeaway from the content"},
		CTA:              "Take the next step based on what you learned.",
	}
}

func mockOutline(req model.ContentRequest) *model.ContentOutline {
	return &model.ContentOutline{
		Title: "A Practical Guide to " + req.Topic,
		Hook:  "Everyone talks about " + req.Topic + ". Few explain how to actually start.",
		Sections: []model.OutlineSection{
			{Header: "Why It Matters", Purpose: "Establish relevance", Points: []string{"Current landscape", "Who benefits"}},
			{Header: "Getting Started", Purpose: "Practical first steps", Points: []string{"Prerequisites", "First project"}},
			{Header: "Common Pitfalls", Purpose: "Save the reader time", Points: []string{"Overreach", "Skipping measurement"}},
		},
		ConclusionPoints: []string{"Start small", "Iterate with feedback"},
		CTA:              "Pick one idea from this guide and try it this week.",
	}
}
