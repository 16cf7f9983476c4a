package scanclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Decode parses a scan response body. The body must be a JSON object; every
// field inside it is optional and malformed fields degrade to empty values:
//
//   - error: a non-empty string is used verbatim; null, false, 0 and "" mean
//     no error; any other value is reported as its JSON text.
//   - threats: anything but an array is treated as empty; array elements
//     that are not objects become empty threats, and a threat field of the
//     wrong type is dropped without affecting its siblings.
//   - count: a missing or non-numeric count falls back to len(threats).
func Decode(raw []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is null", ErrDecode)
	}

	out := &Response{
		Error:   decodeError(fields["error"]),
		Threats: decodeThreats(fields["threats"]),
	}
	out.Count = decodeCount(fields["count"], len(out.Threats))

	return out, nil
}

func decodeError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case bool:
		if !e {
			return ""
		}
	case float64:
		if e == 0 {
			return ""
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func decodeThreats(raw json.RawMessage) []scan.Threat {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []scan.Threat{}
	}

	threats := make([]scan.Threat, 0, len(items))
	for _, item := range items {
		threats = append(threats, decodeThreat(item))
	}
	return threats
}

func decodeThreat(raw json.RawMessage) scan.Threat {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return scan.Threat{}
	}

	var t scan.Threat
	var line float64
	if v, ok := fields["line_number"]; ok && json.Unmarshal(v, &line) == nil && string(v) != "null" {
		n := int(line)
		t.LineNumber = &n
	}
	t.Pattern = decodeString(fields["pattern"])
	t.Content = decodeString(fields["content"])
	return t
}

func decodeString(raw json.RawMessage) *string {
	var s *string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return s
}

func decodeCount(raw json.RawMessage, fallback int) int {
	var n float64
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &n) != nil {
		return fallback
	}
	return int(n)
}
