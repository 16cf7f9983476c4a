package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/dispatcher"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scanclient"
)

type stubService struct {
	hits    atomic.Int32
	mu      sync.Mutex
	lastTxt string
	body    string
	gate    chan struct{}
}

func (s *stubService) setBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

func (s *stubService) response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body
}

func newController(t *testing.T, svc *stubService) *Controller {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.hits.Add(1)
		if r.URL.Path == scanclient.ScanTextPath {
			raw, _ := io.ReadAll(r.Body)
			svc.mu.Lock()
			svc.lastTxt = string(raw)
			svc.mu.Unlock()
		}
		if svc.gate != nil {
			<-svc.gate
		}
		_, _ = io.WriteString(w, svc.response())
	}))
	t.Cleanup(srv.Close)

	client, err := scanclient.New(config.ScanServiceConfig{BaseURL: srv.URL, Timeout: 5000}, zap.NewNop().Sugar())
	require.NoError(t, err)

	return NewController(dispatcher.New(client, zap.NewNop().Sugar()), zap.NewNop().Sugar())
}

func TestController_InitialSnapshot(t *testing.T) {
	c := newController(t, &stubService{body: `{}`})
	snap := c.Snapshot()

	require.Len(t, snap.States, 2)
	for _, s := range snap.States {
		assert.Equal(t, scan.PhaseIdle, s.Phase)
	}
	assert.False(t, snap.Results.Visible)
	assert.Empty(t, snap.SelectedFile)
	assert.False(t, snap.Affordances[0].Enabled)
	assert.True(t, snap.Affordances[1].Enabled)
}

func TestController_SelectFileTogglesAffordance(t *testing.T) {
	c := newController(t, &stubService{body: `{}`})
	ctx := context.Background()

	_, err := c.Handle(ctx, SelectFileCommand{File: &scan.File{Name: "auth.log"}})
	require.NoError(t, err)
	snap := c.Snapshot()
	assert.Equal(t, "Selected: auth.log", snap.SelectedFile)
	assert.True(t, snap.Affordances[0].Enabled)

	_, err = c.Handle(ctx, SelectFileCommand{})
	require.NoError(t, err)
	snap = c.Snapshot()
	assert.Empty(t, snap.SelectedFile)
	assert.False(t, snap.Affordances[0].Enabled)
	assert.Nil(t, c.Capture().SelectedFile())
}

func TestController_ScanFileWithoutSelection(t *testing.T) {
	svc := &stubService{body: `{}`}
	c := newController(t, svc)

	out, err := c.Handle(context.Background(), ScanFileCommand{})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, dispatcher.MsgNoFile, out.Message)
	assert.Equal(t, int32(0), svc.hits.Load())

	st := c.State(scan.KindFile)
	assert.Equal(t, scan.PhaseSettled, st.Phase)
	assert.Empty(t, st.RequestID)

	v := c.Results().View()
	assert.True(t, v.Visible)
	assert.Equal(t, render.ClassError, v.Class)
	assert.Equal(t, dispatcher.MsgNoFile, v.Summary)
}

func TestController_ScanTextSendsTrimmedText(t *testing.T) {
	svc := &stubService{body: `{"threats":[{"line_number":1,"pattern":"<script>","content":"<script>"}],"count":1}`}
	c := newController(t, svc)
	ctx := context.Background()

	_, err := c.Handle(ctx, EnterTextCommand{Text: "   \n<script>\n  "})
	require.NoError(t, err)

	out, err := c.Handle(ctx, ScanTextCommand{})
	require.NoError(t, err)
	require.NotNil(t, out)

	svc.mu.Lock()
	assert.JSONEq(t, `{"text":"<script>"}`, svc.lastTxt)
	svc.mu.Unlock()

	v := c.Results().View()
	assert.Equal(t, render.ClassWarning, v.Class)
	assert.Equal(t, "Found 1 potential threat(s).", v.Summary)
	require.Len(t, v.Details, 1)
	assert.Equal(t, "&lt;script&gt;", v.Details[0].Content)

	st := c.State(scan.KindText)
	assert.Equal(t, scan.PhaseSettled, st.Phase)
	assert.NotEmpty(t, st.RequestID)
	require.NotNil(t, st.Outcome)
	assert.Equal(t, 1, st.Outcome.Count)
}

func TestController_WhitespaceTextIsRejected(t *testing.T) {
	svc := &stubService{body: `{}`}
	c := newController(t, svc)
	ctx := context.Background()

	_, err := c.Handle(ctx, EnterTextCommand{Text: "   "})
	require.NoError(t, err)
	out, err := c.Handle(ctx, ScanTextCommand{})
	require.NoError(t, err)

	assert.Equal(t, dispatcher.MsgNoText, out.Message)
	assert.Equal(t, int32(0), svc.hits.Load())
}

func TestController_ErrorClearsPreviousDetails(t *testing.T) {
	svc := &stubService{body: `{"threats":[{"content":"a"},{"content":"b"}],"count":2}`}
	c := newController(t, svc)
	ctx := context.Background()

	_, _ = c.Handle(ctx, EnterTextCommand{Text: "payload"})
	_, err := c.Handle(ctx, ScanTextCommand{})
	require.NoError(t, err)
	require.Len(t, c.Results().View().Details, 2)

	svc.setBody(`{"error":"boom","threats":[{"content":"a"}],"count":1}`)
	_, err = c.Handle(ctx, ScanTextCommand{})
	require.NoError(t, err)

	v := c.Results().View()
	assert.Equal(t, render.ClassError, v.Class)
	assert.Equal(t, "boom", v.Summary)
	assert.Empty(t, v.Details)
}

func TestController_BusyKindIsRefused(t *testing.T) {
	svc := &stubService{body: `{"threats":[],"count":0}`, gate: make(chan struct{})}
	c := newController(t, svc)
	ctx := context.Background()

	_, _ = c.Handle(ctx, EnterTextCommand{Text: "slow"})

	done := make(chan error, 1)
	go func() {
		_, err := c.Handle(ctx, ScanTextCommand{})
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, scan.PhaseBusy, c.State(scan.KindText).Phase)

	_, err := c.Handle(ctx, ScanTextCommand{})
	assert.ErrorIs(t, err, dispatcher.ErrBusy)

	close(svc.gate)
	require.NoError(t, <-done)
	assert.Equal(t, scan.PhaseSettled, c.State(scan.KindText).Phase)
	assert.True(t, c.Snapshot().Affordances[1].Enabled)
}

type unknownCommand struct{}

func (unknownCommand) command() string { return "unknown" }

func TestController_UnknownCommand(t *testing.T) {
	c := newController(t, &stubService{body: `{}`})
	_, err := c.Handle(context.Background(), unknownCommand{})
	assert.Error(t, err)
}

func TestController_LastSettlementWins(t *testing.T) {
	svc := &stubService{body: `{"threats":[],"count":0}`}
	c := newController(t, svc)
	ctx := context.Background()

	_, _ = c.Handle(ctx, SelectFileCommand{File: &scan.File{Name: "a.log", Data: []byte("x")}})
	_, _ = c.Handle(ctx, EnterTextCommand{Text: "y"})

	_, err := c.Handle(ctx, ScanFileCommand{})
	require.NoError(t, err)

	svc.setBody(`{"threats":[{"content":"late"}],"count":1}`)
	_, err = c.Handle(ctx, ScanTextCommand{})
	require.NoError(t, err)

	v := c.Results().View()
	assert.Equal(t, render.ClassWarning, v.Class)
	assert.Equal(t, "late", v.Details[0].Content)
}

func TestCapture_ReadTextTrims(t *testing.T) {
	c := NewCapture(nil)
	c.SetText("\t hello world \n")
	assert.Equal(t, "hello world", c.ReadText())

	c.SelectFile(&scan.File{Name: "report final.txt"})
	assert.Equal(t, "Selected: report final.txt", c.DisplayName())
}
