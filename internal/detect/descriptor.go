package detect

import (
	"strings"
	"time"
)

// Role is an interaction-candidate role assigned by the classifier.
type Role string

const (
	RoleHoverable    Role = "hoverable"
	RoleClickable    Role = "clickable"
	RolePopupTrigger Role = "popup_trigger"
)

// Action is the kind of simulation performed against a candidate.
type Action string

const (
	ActionHover Action = "hover"
	ActionClick Action = "click"
)

// BoundingBox is an element's position and size at classification time.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementDescriptor identifies one DOM node. Text is always
// whitespace-normalized (trimmed, internal runs collapsed to single spaces)
// so two captures of the same logical element compare equal regardless of
// markup whitespace.
type ElementDescriptor struct {
	Selector   string            `json:"selector"`
	Tag        string            `json:"tag"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Box        BoundingBox       `json:"box,omitempty"`
}

// Href returns the element's link target, if any.
func (d ElementDescriptor) Href() string {
	return d.Attributes["href"]
}

// NormalizeText trims s and collapses internal whitespace runs to single
// spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Candidate is an element assigned at least one role, eligible for
// simulation.
type Candidate struct {
	Descriptor ElementDescriptor `json:"descriptor"`
	Roles      []Role            `json:"roles"`
}

// HasRole reports whether the candidate carries r.
func (c Candidate) HasRole(r Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// OutcomeKind classifies the result of one simulation.
type OutcomeKind string

const (
	OutcomeRevealed OutcomeKind = "revealed"
	OutcomeNoChange OutcomeKind = "no_change"
	OutcomeFailed   OutcomeKind = "failed"
)

// ActionButton is an actionable control found inside revealed content.
type ActionButton struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}

// InteractionOutcome is the result of simulating one action against one
// candidate. Revealed carries the newly-appeared elements; Failed carries the
// reason; NoChange carries neither.
type InteractionOutcome struct {
	Kind    OutcomeKind       `json:"kind"`
	Action  Action            `json:"action"`
	Trigger ElementDescriptor `json:"trigger"`

	Revealed []ElementDescriptor `json:"revealed,omitempty"`

	// Click-specific popup details.
	PopupTitle   string         `json:"popup_title,omitempty"`
	PopupContent string         `json:"popup_content,omitempty"`
	Buttons      []ActionButton `json:"buttons,omitempty"`

	// EvidencePNG is an optional screenshot of the page with the revealed
	// popup open, captured for the report.
	EvidencePNG []byte `json:"-"`

	FailReason string `json:"fail_reason,omitempty"`
}

// NavLink is one entry of the page's navigation structure.
type NavLink struct {
	Text        string `json:"text"`
	Href        string `json:"href"`
	HasDropdown bool   `json:"has_dropdown"`
}

// PageAnalysis is the assembled, de-duplicated result of one analysis run.
type PageAnalysis struct {
	RunID      string               `json:"run_id"`
	URL        string               `json:"url"`
	Title      string               `json:"title"`
	Hover      []InteractionOutcome `json:"hover_interactions"`
	Popups     []InteractionOutcome `json:"popup_interactions"`
	Navigation []NavLink            `json:"navigation"`
	AnalyzedAt time.Time            `json:"analyzed_at"`
}

// Thresholds configures classifier and fingerprint sensitivity. No selector
// strings are accepted as configuration; detection stays behavior-based.
type Thresholds struct {
	// MinHoverDelta is the minimum opacity delta between the normal and
	// hover-state styles for an element to count as Hoverable. Visibility
	// and transform changes count as a delta of 1.
	MinHoverDelta float64

	// MinClickableSize is the minimum width and height in pixels for an
	// element to count as Clickable.
	MinClickableSize float64

	// Overlay-eligibility profile: fixed/absolute positioned nodes at least
	// this big, stacked at or above OverlayMinZ.
	OverlayMinWidth  float64
	OverlayMinHeight float64
	OverlayMinZ      int

	// MaxTextLen caps captured visible text per element.
	MaxTextLen int
}

// DefaultThresholds returns the sensitivity profile used when the caller has
// no site-specific tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHoverDelta:    0.1,
		MinClickableSize: 10,
		OverlayMinWidth:  100,
		OverlayMinHeight: 50,
		OverlayMinZ:      100,
		MaxTextLen:       200,
	}
}
