// Package session owns the state of one console session: the captured input,
// the per-kind scan state and the results area.
package session

import (
	"strings"
	"sync"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// AffordanceToggler enables or disables the affordance of a scan kind.
type AffordanceToggler interface {
	SetEnabled(kind scan.Kind, enabled bool)
}

// Capture tracks the selected file and the text field.
type Capture struct {
	mu      sync.RWMutex
	file    *scan.File
	display string
	text    string
	toggler AffordanceToggler
}

// NewCapture creates an empty capture.
func NewCapture(toggler AffordanceToggler) *Capture {
	return &Capture{toggler: toggler}
}

// SelectFile stores f. A nil file clears the selection and disables the file
// affordance; otherwise the affordance is enabled. No type or size checks
// are made here.
func (c *Capture) SelectFile(f *scan.File) {
	c.mu.Lock()
	c.file = f
	if f != nil {
		c.display = "Selected: " + f.Name
	} else {
		c.display = ""
	}
	c.mu.Unlock()

	if c.toggler != nil {
		c.toggler.SetEnabled(scan.KindFile, f != nil)
	}
}

// SelectedFile returns the selected file or nil.
func (c *Capture) SelectedFile() *scan.File {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file
}

// DisplayName returns the label shown next to the file picker.
func (c *Capture) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.display
}

// SetText stores the raw value of the text field.
func (c *Capture) SetText(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = raw
}

// ReadText returns the text field trimmed of surrounding whitespace. The
// trimmed value is what gets submitted.
func (c *Capture) ReadText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.TrimSpace(c.text)
}
