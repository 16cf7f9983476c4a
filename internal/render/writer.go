package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/sanitize"
)

// WriteHTML writes the results panel markup. Detail content is written as-is
// because Build already escaped it. Error summaries and pattern labels come
// from the scan service and are escaped here.
func WriteHTML(w io.Writer, v View) error {
	bw := bufio.NewWriter(w)

	if v.Visible {
		fmt.Fprint(bw, `<section class="results-section" id="results-container">`+"\n")
	} else {
		fmt.Fprint(bw, `<section class="results-section" id="results-container" style="display: none">`+"\n")
	}

	summary := v.Summary
	if v.Class == ClassError {
		summary = sanitize.Escape(summary)
	}
	fmt.Fprintf(bw, "<div id=\"results-summary\" class=\"%s\">%s</div>\n", v.Class, summary)

	fmt.Fprint(bw, "<div id=\"threats-list\">\n")
	for _, d := range v.Details {
		fmt.Fprint(bw, "<div class=\"threat-item\">\n")
		fmt.Fprint(bw, "<div class=\"threat-header\">\n")
		fmt.Fprintf(bw, "<span class=\"threat-line\">%s</span>\n", d.Line)
		fmt.Fprintf(bw, "<span class=\"threat-pattern\">%s</span>\n", sanitize.Escape(d.Pattern))
		fmt.Fprint(bw, "</div>\n")
		fmt.Fprintf(bw, "<div class=\"threat-content\">%s</div>\n", d.Content)
		fmt.Fprint(bw, "</div>\n")
	}
	fmt.Fprint(bw, "</div>\n</section>\n")

	return bw.Flush()
}

// WriteText writes the panel for a terminal.
func WriteText(w io.Writer, v View) error {
	bw := bufio.NewWriter(w)

	if !v.Visible {
		return bw.Flush()
	}

	fmt.Fprintf(bw, "[%s] %s\n", v.Class, v.Summary)
	for _, d := range v.Details {
		header := strings.TrimSpace(strings.Join(nonEmpty(d.Line, d.Pattern), " | "))
		if header != "" {
			fmt.Fprintf(bw, "  %s\n", header)
		}
		fmt.Fprintf(bw, "    %s\n", d.Content)
	}

	return bw.Flush()
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, s := range values {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
