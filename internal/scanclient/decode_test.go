package scanclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     string
		wantCount   int
		wantThreats int
	}{
		{name: "clean", body: `{"threats":[],"count":0,"error":null}`},
		{name: "error string", body: `{"threats":[],"count":0,"error":"No file provided"}`, wantErr: "No file provided"},
		{name: "error wins over threats", body: `{"error":"boom","threats":[{"content":"x"}],"count":1}`, wantErr: "boom", wantCount: 1, wantThreats: 1},
		{name: "empty error string", body: `{"error":"","threats":[{}],"count":1}`, wantCount: 1, wantThreats: 1},
		{name: "false error", body: `{"error":false}`},
		{name: "zero error", body: `{"error":0}`},
		{name: "object error", body: `{"error": {"code": 7}}`, wantErr: `{"code":7}`},
		{name: "numeric error", body: `{"error":503}`, wantErr: "503"},
		{name: "threats not array", body: `{"threats":"nope","count":3}`, wantCount: 3},
		{name: "threats absent", body: `{"count":2}`, wantCount: 2},
		{name: "count absent", body: `{"threats":[{},{}]}`, wantCount: 2, wantThreats: 2},
		{name: "count null", body: `{"threats":[{}],"count":null}`, wantCount: 1, wantThreats: 1},
		{name: "count string", body: `{"threats":[{}],"count":"many"}`, wantCount: 1, wantThreats: 1},
		{name: "count mismatch kept", body: `{"threats":[{}],"count":4}`, wantCount: 4, wantThreats: 1},
		{name: "malformed elements", body: `{"threats":["x", 5, null, {"line_number":"seven"}],"count":4}`, wantCount: 4, wantThreats: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.Threats, tt.wantThreats)
			assert.NotNil(t, resp.Threats)
		})
	}
}

func TestDecode_MalformedFieldsAreDroppedIndividually(t *testing.T) {
	resp, err := Decode([]byte(`{"threats":["x", {"line_number":"seven","content":"<c>"}, {"pattern":"p","content":42}, {"line_number":null,"pattern":null}]}`))
	require.NoError(t, err)
	require.Len(t, resp.Threats, 4)

	assert.Equal(t, scan.Threat{}, resp.Threats[0])

	assert.Nil(t, resp.Threats[1].LineNumber)
	require.NotNil(t, resp.Threats[1].Content)
	assert.Equal(t, "<c>", *resp.Threats[1].Content)

	require.NotNil(t, resp.Threats[2].Pattern)
	assert.Equal(t, "p", *resp.Threats[2].Pattern)
	assert.Nil(t, resp.Threats[2].Content)

	assert.Equal(t, scan.Threat{}, resp.Threats[3])
}

func TestDecode_NotAnObject(t *testing.T) {
	for _, body := range []string{``, `not json`, `null`, `[1,2]`, `"str"`} {
		_, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrDecode, "body %q", body)
	}
}
