package model

import (
	"slices"
	"time"
)

// ContentRequest is the submission payload for a generation job
type ContentRequest struct {
	Topic                  string      `json:"topic" validate:"required,min=5,max=500"`
	ContentType            ContentType `json:"content_type" validate:"omitempty,oneof=blog_post article social_media email landing_page product_description"`
	TargetAudience         string      `json:"target_audience,omitempty" validate:"max=500"`
	Tone                   string      `json:"tone" validate:"max=50"`
	Language               string      `json:"language" validate:"omitempty,min=2,max=10"`
	WordCount              int         `json:"word_count" validate:"omitempty,min=100,max=10000"`
	Keywords               []string    `json:"keywords" validate:"max=20,dive,min=1,max=100"`
	AdditionalInstructions string      `json:"additional_instructions,omitempty" validate:"max=2000"`
}

// ApplyDefaults fills the optional fields the way the API documents them.
func (r *ContentRequest) ApplyDefaults() {
	if r.ContentType == "" {
		r.ContentType = ContentTypeBlogPost
	}
	if r.Tone == "" {
		r.Tone = "professional"
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if r.WordCount == 0 {
		r.WordCount = 1500
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
}

// Source is one reference gathered during research
type Source struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// ResearchResult holds the research phase output
type ResearchResult struct {
	Sources            []Source `json:"sources"`
	KeyFacts           []string `json:"key_facts"`
	Statistics         []string `json:"statistics"`
	Quotes             []string `json:"quotes"`
	CompetitorInsights []string `json:"competitor_insights"`
}

// IsEmpty reports whether research produced no findings at all.
func (r *ResearchResult) IsEmpty() bool {
	return r == nil || len(r.Sources)+len(r.KeyFacts)+len(r.Statistics)+len(r.Quotes)+len(r.CompetitorInsights) == 0
}

// Clone returns a deep copy of r.
func (r *ResearchResult) Clone() *ResearchResult {
	if r == nil {
		return nil
	}
	return &ResearchResult{
		Sources:            slices.Clone(r.Sources),
		KeyFacts:           slices.Clone(r.KeyFacts),
		Statistics:         slices.Clone(r.Statistics),
		Quotes:             slices.Clone(r.Quotes),
		CompetitorInsights: slices.Clone(r.CompetitorInsights),
	}
}

// OutlineSection is one planned section of the content
type OutlineSection struct {
	Header  string   `json:"header"`
	Purpose string   `json:"purpose,omitempty"`
	Points  []string `json:"points"`
}

// ContentOutline holds the plan phase output
type ContentOutline struct {
	Title            string           `json:"title"`
	Hook             string           `json:"hook"`
	Sections         []OutlineSection `json:"sections"`
	ConclusionPoints []string         `json:"conclusion_points"`
	CTA              string           `json:"cta,omitempty"`
}

// Clone returns a deep copy of o.
func (o *ContentOutline) Clone() *ContentOutline {
	if o == nil {
		return nil
	}
	c := *o
	c.Sections = slices.Clone(o.Sections)
	for i := range c.Sections {
		c.Sections[i].Points = slices.Clone(c.Sections[i].Points)
	}
	c.ConclusionPoints = slices.Clone(o.ConclusionPoints)
	return &c
}

// ContentResponse is the result of a generation job
type ContentResponse struct {
	ID                    string            `json:"id"`
	Status                ContentStatus     `json:"status"`
	Request               ContentRequest    `json:"request"`
	Research              *ResearchResult   `json:"research,omitempty"`
	Outline               *ContentOutline   `json:"outline,omitempty"`
	Content               *string           `json:"content,omitempty"`
	Error                 *string           `json:"error,omitempty"`
	FailedPhase           Phase             `json:"failed_phase,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	ProcessingTimeSeconds *float64          `json:"processing_time_seconds,omitempty"`
	PhaseTimings          map[Phase]float64 `json:"phase_timings,omitempty"`
	ArchiveURL            string            `json:"archive_url,omitempty"`
}

// ContentStatusResponse is the lightweight status view of a job
type ContentStatusResponse struct {
	ContentID             string         `json:"content_id"`
	Status                ContentStatus  `json:"status"`
	Phase                 Phase          `json:"phase,omitempty"`
	Progress              *ProgressEvent `json:"progress,omitempty"`
	Error                 *string        `json:"error,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
	ProcessingTimeSeconds *float64       `json:"processing_time_seconds,omitempty"`
}

// ContentAcceptedResponse is returned when a job is queued
type ContentAcceptedResponse struct {
	ContentID string    `json:"content_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentListResponse is one page of jobs
type ContentListResponse struct {
	Items  []ContentResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ContentDeleteResponse confirms a deletion
type ContentDeleteResponse struct {
	Message   string `json:"message"`
	ContentID string `json:"content_id"`
}
