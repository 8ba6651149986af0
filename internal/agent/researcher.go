package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/model"
)

const researcherSystemPrompt = `You are an expert researcher with exceptional skills in gathering and synthesizing information.
Research the given topic thoroughly. Prioritize accurate, recent and credible information.

Provide your findings under these headings, each followed by a bulleted list:
- Key Facts
- Statistics
- Expert Quotes
- Sources
- Competitor Insights`

// Researcher gathers facts, statistics and sources for the topic.
type Researcher struct {
	base
}

// NewResearcher creates a research agent.
func NewResearcher(llm client.Completer) *Researcher {
	return &Researcher{base{llm: llm, system: researcherSystemPrompt}}
}

// Process fills payload.Research.
func (a *Researcher) Process(ctx context.Context, payload model.Payload) (model.Payload, error) {
	req := payload.Request
	if strings.TrimSpace(req.Topic) == "" {
		return payload, ErrMissingTopic
	}

	if a.useMock() {
		payload.Research = mockResearch(req)
		return payload, nil
	}

	out, err := a.complete(ctx, buildResearchPrompt(req))
	if err != nil {
		return payload, err
	}

	payload.Research = parseResearch(out)
	return payload, nil
}

func buildResearchPrompt(req model.ContentRequest) string {
	audience := orDefault(req.TargetAudience, "General audience")

	return fmt.Sprintf(`Please conduct thorough research on the following topic:

TOPIC: %s
CONTENT TYPE: %s
TARGET AUDIENCE: %s
LANGUAGE: %s

Additional context: %s

Please gather:
1. At least 5 key facts about this topic
2. Relevant statistics and data points
3. Expert opinions or quotes
4. What competitors/others are writing about this
5. Any unique angles worth exploring`,
		req.Topic, req.ContentType, audience, req.Language, orDefault(req.AdditionalInstructions, "None provided"))
}

type researchSection int

const (
	sectionNone researchSection = iota
	sectionFacts
	sectionStatistics
	sectionQuotes
	sectionSources
	sectionCompetitors
)

// parseResearch reads a headed, bulleted research answer. Unknown bullets
// before the first heading are dropped.
func parseResearch(content string) *model.ResearchResult {
	result := &model.ResearchResult{
		Sources:            []model.Source{},
		KeyFacts:           []string{},
		Statistics:         []string{},
		Quotes:             []string{},
		CompetitorInsights: []string{},
	}

	current := sectionNone
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if item, ok := bulletItem(line); ok && item != "" {
			switch current {
			case sectionFacts:
				result.KeyFacts = append(result.KeyFacts, item)
			case sectionStatistics:
				result.Statistics = append(result.Statistics, item)
			case sectionQuotes:
				result.Quotes = append(result.Quotes, item)
			case sectionSources:
				result.Sources = append(result.Sources, model.Source{Text: item})
			case sectionCompetitors:
				result.CompetitorInsights = append(result.CompetitorInsights, item)
			}
			continue
		}

		if s := headingSection(line); s != sectionNone {
			current = s
		}
	}

	return result
}

func headingSection(line string) researchSection {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "key fact"), strings.Contains(lower, "main fact"):
		return sectionFacts
	case strings.Contains(lower, "statistic"), strings.Contains(lower, "data"):
		return sectionStatistics
	case strings.Contains(lower, "quote"), strings.Contains(lower, "expert"):
		return sectionQuotes
	case strings.Contains(lower, "source"):
		return sectionSources
	case strings.Contains(lower, "competitor"), strings.Contains(lower, "insight"):
		return sectionCompetitors
	}
	return sectionNone
}

// Mock implementation for development/testing
func mockResearch(req model.ContentRequest) *model.ResearchResult {
	return &model.ResearchResult{
		Sources: []model.Source{{Text: "Industry overview of " + req.Topic}},
		KeyFacts: []string{
			req.Topic + " has seen steady adoption over the last two years",
			"Practitioners cite productivity as the main benefit",
			"Getting started requires little upfront investment",
		},
		Statistics:         []string{"Roughly two thirds of surveyed teams plan to expand their use"},
		Quotes:             []string{"Start small and measure everything."},
		CompetitorInsights: []string{"Most existing coverage skips practical examples"},
	}
}
