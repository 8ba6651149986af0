package model

// Content types
type ContentType string

const (
	ContentTypeBlogPost           ContentType = "blog_post"
	ContentTypeArticle            ContentType = "article"
	ContentTypeSocialMedia        ContentType = "social_media"
	ContentTypeEmail              ContentType = "email"
	ContentTypeLandingPage        ContentType = "landing_page"
	ContentTypeProductDescription ContentType = "product_description"
)

var ValidContentTypes = []ContentType{
	ContentTypeBlogPost, ContentTypeArticle, ContentTypeSocialMedia,
	ContentTypeEmail, ContentTypeLandingPage, ContentTypeProductDescription,
}

// Content status
type ContentStatus string

const (
	StatusPending     ContentStatus = "pending"
	StatusResearching ContentStatus = "researching"
	StatusPlanning    ContentStatus = "planning"
	StatusWriting     ContentStatus = "writing"
	StatusEditing     ContentStatus = "editing"
	StatusFinalizing  ContentStatus = "finalizing"
	StatusCompleted   ContentStatus = "completed"
	StatusFailed      ContentStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s ContentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusResearching, StatusPlanning, StatusWriting,
		StatusEditing, StatusFinalizing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further phase transitions can happen.
func (s ContentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Pipeline phases
type Phase string

const (
	PhaseResearch Phase = "research"
	PhasePlan     Phase = "plan"
	PhaseWrite    Phase = "write"
	PhaseEdit     Phase = "edit"
	PhaseFinalize Phase = "finalize"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseResearch, PhasePlan, PhaseWrite, PhaseEdit, PhaseFinalize}

// Index returns the zero-based position of p in Phases, or -1.
func (p Phase) Index() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Status is the running status reported while p executes.
func (p Phase) Status() ContentStatus {
	switch p {
	case PhaseResearch:
		return StatusResearching
	case PhasePlan:
		return StatusPlanning
	case PhaseWrite:
		return StatusWriting
	case PhaseEdit:
		return StatusEditing
	case PhaseFinalize:
		return StatusFinalizing
	}
	return StatusPending
}

// Message is the human readable description sent to observers on entry.
func (p Phase) Message() string {
	switch p {
	case PhaseResearch:
		return "Gathering information about the topic..."
	case PhasePlan:
		return "Creating content outline..."
	case PhaseWrite:
		return "Writing the initial draft..."
	case PhaseEdit:
		return "Polishing and improving content..."
	case PhaseFinalize:
		return "Validating final content..."
	}
	return ""
}

// ProgressPercent is the progress reported on entry to p.
func (p Phase) ProgressPercent() int {
	idx := p.Index()
	if idx < 0 {
		return 0
	}
	return (idx + 1) * 100 / len(Phases)
}
