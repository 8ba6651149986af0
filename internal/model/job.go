package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Job is one end-to-end run of the content pipeline
type Job struct {
	ID      string         `json:"id"`
	Request ContentRequest `json:"request"`
	Phase   Phase          `json:"phase,omitempty"`
	Status  ContentStatus  `json:"status"`

	Research     *ResearchResult `json:"research,omitempty"`
	Outline      *ContentOutline `json:"outline,omitempty"`
	DraftContent string          `json:"draft_content,omitempty"`
	Content      string          `json:"content,omitempty"`

	Error       string `json:"error,omitempty"`
	FailedPhase Phase  `json:"failed_phase,omitempty"`

	CreatedAt    time.Time               `json:"created_at"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	PhaseTimings map[Phase]time.Duration `json:"phase_timings,omitempty"`
	ArchiveURL   string                  `json:"archive_url,omitempty"`
}

// NewJob creates a pending job for req with a fresh identifier.
func NewJob(req ContentRequest) *Job {
	return &Job{
		ID:           uuid.New().String(),
		Request:      req,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
		PhaseTimings: make(map[Phase]time.Duration),
	}
}

// IsTerminal reports whether the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Payload returns a deep copy of the state visible to steps, so a step
// cannot change earlier phase outputs in place.
func (j *Job) Payload() Payload {
	req := j.Request
	req.Keywords = slices.Clone(j.Request.Keywords)
	return Payload{
		Request:      req,
		Research:     j.Research.Clone(),
		Outline:      j.Outline.Clone(),
		DraftContent: j.DraftContent,
		Content:      j.Content,
	}
}

// ApplyOutput stores the output field owned by phase from out.
func (j *Job) ApplyOutput(phase Phase, out Payload) {
	switch phase {
	case PhaseResearch:
		j.Research = out.Research
	case PhasePlan:
		j.Outline = out.Outline
	case PhaseWrite:
		j.DraftContent = out.DraftContent
	case PhaseEdit:
		j.Content = out.Content
	}
}

// ProcessingTime is the wall time between start and completion.
func (j *Job) ProcessingTime() (time.Duration, bool) {
	if j.CompletedAt == nil {
		return 0, false
	}
	start := j.CreatedAt
	if j.StartedAt != nil {
		start = *j.StartedAt
	}
	return j.CompletedAt.Sub(start), true
}

// ToResponse converts the job into its API representation.
func (j *Job) ToResponse() ContentResponse {
	resp := ContentResponse{
		ID:          j.ID,
		Status:      j.Status,
		Request:     j.Request,
		Research:    j.Research,
		Outline:     j.Outline,
		FailedPhase: j.FailedPhase,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		ArchiveURL:  j.ArchiveURL,
	}
	if j.Content != "" {
		content := j.Content
		resp.Content = &content
	}
	if j.Error != "" {
		errMsg := j.Error
		resp.Error = &errMsg
	}
	if d, ok := j.ProcessingTime(); ok {
		secs := d.Seconds()
		resp.ProcessingTimeSeconds = &secs
	}
	if len(j.PhaseTimings) > 0 {
		resp.PhaseTimings = make(map[Phase]float64, len(j.PhaseTimings))
		for phase, d := range j.PhaseTimings {
			resp.PhaseTimings[phase] = d.Seconds()
		}
	}
	return resp
}

// ToStatusResponse converts the job into its status view.
func (j *Job) ToStatusResponse(progress *ProgressEvent) ContentStatusResponse {
	resp := ContentStatusResponse{
		ContentID:   j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    progress,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Error != "" {
		errMsg := j.Error
		resp.Error = &errMsg
	}
	if d, ok := j.ProcessingTime(); ok {
		secs := d.Seconds()
		resp.ProcessingTimeSeconds = &secs
	}
	return resp
}

// Payload is the accumulated state handed to each step. Every phase reads
// any earlier output and produces exactly one field.
type Payload struct {
	Request      ContentRequest
	Research     *ResearchResult
	Outline      *ContentOutline
	DraftContent string
	Content      string
}
