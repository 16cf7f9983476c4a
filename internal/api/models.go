// Package api provides the HTTP console for the scan service.
package api

import (
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// MaxTextLength caps the text field in characters, independent of the
// request body cap.
const MaxTextLength = 16 << 20

// TextScanRequest is the body of POST /scan/text, either a form field or JSON.
type TextScanRequest struct {
	Text string `json:"text" form:"text" binding:"max=16777216"`
}

// ScanResponse is returned to clients that accept JSON.
type ScanResponse struct {
	Kind    scan.Kind    `json:"kind"`
	Outcome scan.Outcome `json:"outcome"`
	Results render.View  `json:"results"`
}

// SelectionResponse reports the current file selection.
type SelectionResponse struct {
	Selected   bool            `json:"selected"`
	Display    string          `json:"display"`
	Affordance scan.Affordance `json:"affordance"`
}

// ErrorResponse is the JSON body of a refused request.
type ErrorResponse struct {
	Error string `json:"error"`
}
