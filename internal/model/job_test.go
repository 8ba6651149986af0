package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrderAndProgress(t *testing.T) {
	require.Len(t, Phases, 5)
	assert.Equal(t, 0, PhaseResearch.Index())
	assert.Equal(t, 4, PhaseFinalize.Index())
	assert.Equal(t, -1, Phase("publish").Index())

	assert.Equal(t, 20, PhaseResearch.ProgressPercent())
	assert.Equal(t, 60, PhaseWrite.ProgressPercent())
	assert.Equal(t, 100, PhaseFinalize.ProgressPercent())
	assert.Equal(t, StatusEditing, PhaseEdit.Status())
}

func TestApplyDefaults(t *testing.T) {
	req := ContentRequest{Topic: "Go concurrency patterns"}
	req.ApplyDefaults()

	assert.Equal(t, ContentTypeBlogPost, req.ContentType)
	assert.Equal(t, "professional", req.Tone)
	assert.Equal(t, "en", req.Language)
	assert.Equal(t, 1500, req.WordCount)
	assert.NotNil(t, req.Keywords)
}

func TestApplyOutputOnlyTouchesOwnedField(t *testing.T) {
	job := NewJob(ContentRequest{Topic: "Edge computing"})
	out := Payload{
		Research:     &ResearchResult{KeyFacts: []string{"fact"}},
		Outline:      &ContentOutline{Title: "ignored"},
		DraftContent: "ignored",
		Content:      "ignored",
	}

	job.ApplyOutput(PhaseResearch, out)

	require.NotNil(t, job.Research)
	assert.Nil(t, job.Outline)
	assert.Empty(t, job.DraftContent)
	assert.Empty(t, job.Content)
}

func TestPayloadIsolatesEarlierOutputs(t *testing.T) {
	job := NewJob(ContentRequest{Topic: "Edge computing", Keywords: []string{"latency"}})
	job.Research = &ResearchResult{KeyFacts: []string{"fact"}, Sources: []Source{{Text: "paper"}}}
	job.Outline = &ContentOutline{
		Title:    "Edge",
		Sections: []OutlineSection{{Header: "Intro", Points: []string{"why"}}},
	}

	p := job.Payload()
	p.Request.Keywords[0] = "changed"
	p.Research.KeyFacts[0] = "changed"
	p.Research.Sources[0].Text = "changed"
	p.Outline.Title = "changed"
	p.Outline.Sections[0].Header = "changed"
	p.Outline.Sections[0].Points[0] = "changed"

	assert.Equal(t, "latency", job.Request.Keywords[0])
	assert.Equal(t, "fact", job.Research.KeyFacts[0])
	assert.Equal(t, "paper", job.Research.Sources[0].Text)
	assert.Equal(t, "Edge", job.Outline.Title)
	assert.Equal(t, "Intro", job.Outline.Sections[0].Header)
	assert.Equal(t, "why", job.Outline.Sections[0].Points[0])

	empty := NewJob(ContentRequest{Topic: "Edge computing"}).Payload()
	assert.Nil(t, empty.Research)
	assert.Nil(t, empty.Outline)
}

func TestToResponse(t *testing.T) {
	job := NewJob(ContentRequest{Topic: "Edge computing"})
	started := job.CreatedAt
	completed := started.Add(3 * time.Second)
	job.StartedAt = &started
	job.CompletedAt = &completed
	job.Status = StatusCompleted
	job.Content = "final text"
	job.PhaseTimings[PhaseResearch] = 1500 * time.Millisecond

	resp := job.ToResponse()

	require.NotNil(t, resp.Content)
	assert.Equal(t, "final text", *resp.Content)
	assert.Nil(t, resp.Error)
	require.NotNil(t, resp.ProcessingTimeSeconds)
	assert.InDelta(t, 3.0, *resp.ProcessingTimeSeconds, 0.001)
	assert.InDelta(t, 1.5, resp.PhaseTimings[PhaseResearch], 0.001)
}
