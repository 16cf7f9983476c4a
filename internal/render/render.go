// Package render turns scan outcomes into the user-visible results panel.
package render

import (
	"fmt"
	"sync"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/sanitize"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Summary classes used to style the results summary.
const (
	ClassError   = "error"
	ClassSuccess = "success"
	ClassWarning = "warning"
)

// NoThreatsMessage is shown for clean outcomes.
const NoThreatsMessage = "No threats detected. The content appears to be safe."

// DetailBlock is the presentation of one threat. Content is already escaped.
type DetailBlock struct {
	Line    string `json:"line"`
	Pattern string `json:"pattern"`
	Content string `json:"content"`
}

// View is the full state of the results panel.
type View struct {
	Visible bool          `json:"visible"`
	Class   string        `json:"class"`
	Summary string        `json:"summary"`
	Details []DetailBlock `json:"details"`
}

// Build converts an outcome into a view. Threats keep the order they were
// reported in; the headline uses the reported count, not len(Threats).
func Build(o scan.Outcome) View {
	v := View{Visible: true, Details: []DetailBlock{}}

	switch {
	case o.Failed():
		v.Class = ClassError
		v.Summary = o.Message
	case scan.HasNoThreats(o):
		v.Class = ClassSuccess
		v.Summary = NoThreatsMessage
	default:
		v.Class = ClassWarning
		v.Summary = fmt.Sprintf("Found %d potential threat(s).", o.Count)
		v.Details = make([]DetailBlock, 0, len(o.Threats))
		for _, t := range o.Threats {
			v.Details = append(v.Details, detailBlock(t))
		}
	}

	return v
}

func detailBlock(t scan.Threat) DetailBlock {
	var b DetailBlock
	if t.LineNumber != nil {
		b.Line = fmt.Sprintf("Line %d", *t.LineNumber)
	}
	if t.Pattern != nil {
		b.Pattern = "Pattern: " + *t.Pattern
	}
	if t.Content != nil {
		b.Content = sanitize.Escape(*t.Content)
	}
	return b
}

// Results is the shared results area. Every Render overwrites it completely,
// so the last settlement wins.
type Results struct {
	mu   sync.RWMutex
	view View
}

// NewResults creates a hidden, empty results area.
func NewResults() *Results {
	return &Results{view: View{Details: []DetailBlock{}}}
}

// Render replaces the panel with the presentation of o and returns it.
func (r *Results) Render(o scan.Outcome) View {
	v := Build(o)

	r.mu.Lock()
	r.view = v
	r.mu.Unlock()

	return v.clone()
}

// View returns a copy of the current panel.
func (r *Results) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.clone()
}

func (v View) clone() View {
	out := v
	out.Details = append([]DetailBlock(nil), v.Details...)
	if out.Details == nil {
		out.Details = []DetailBlock{}
	}
	return out
}
