// Package scan defines the scan request model shared by the console components.
package scan

import "strings"

// Kind identifies one of the two scan channels. Each kind has its own affordance.
type Kind string

const (
	KindFile Kind = "file"
	KindText Kind = "text"
)

// Kinds returns every scan kind in display order.
func Kinds() []Kind {
	return []Kind{KindFile, KindText}
}

// File is an uploaded binary blob with its client-side name.
type File struct {
	Name string
	Data []byte
}

// Input is the selected input at scan time. Exactly one of File or Text is
// meaningful, depending on Kind.
type Input struct {
	Kind Kind
	File *File
	Text string
}

// FileInput selects a file for scanning. A nil file is a valid value and
// represents a cleared selection.
func FileInput(f *File) Input {
	return Input{Kind: KindFile, File: f}
}

// TextInput selects a block of raw text for scanning.
func TextInput(text string) Input {
	return Input{Kind: KindText, Text: text}
}

// Valid reports whether the input may be dispatched.
func (in Input) Valid() bool {
	switch in.Kind {
	case KindFile:
		return in.File != nil
	case KindText:
		return strings.TrimSpace(in.Text) != ""
	default:
		return false
	}
}

// Threat is one finding reported by the scanning service. Every field is
// optional on the wire.
type Threat struct {
	LineNumber *int    `json:"line_number,omitempty"`
	Pattern    *string `json:"pattern,omitempty"`
	Content    *string `json:"content,omitempty"`
}

// Status distinguishes failed from successful outcomes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the normalized result of one scan request.
// Count and len(Threats) are reported independently by the service and are
// not reconciled here.
type Outcome struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Threats []Threat `json:"threats"`
	Count   int      `json:"count"`
}

// Failure builds an error outcome carrying a user-visible message.
func Failure(message string) Outcome {
	return Outcome{Status: StatusFailure, Message: message, Threats: []Threat{}}
}

// Success builds a success outcome. A nil threat list becomes empty.
func Success(threats []Threat, count int) Outcome {
	if threats == nil {
		threats = []Threat{}
	}
	return Outcome{Status: StatusSuccess, Threats: threats, Count: count}
}

// Failed reports whether the outcome is an error outcome.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailure
}

// HasNoThreats reports whether a successful outcome should be presented as
// clean. Either a zero count or an empty threat list is enough.
func HasNoThreats(o Outcome) bool {
	if o.Failed() {
		return false
	}
	return o.Count == 0 || len(o.Threats) == 0
}
