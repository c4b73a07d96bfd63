package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
	"github.com/ravi-parthasarathy/artiffex/pkg/server"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

func init() { gin.SetMode(gin.TestMode) }

var png = []byte("\x89PNG\r\n\x1a\n0000")

type fakeService struct{}

func (fakeService) GenerateImage(context.Context, string, string) ([]byte, error) { return png, nil }
func (fakeService) DescribeImage(context.Context, []byte, string) (string, error) {
	return "an uploaded fox", nil
}
func (fakeService) GenerateText(context.Context, string) (string, error) { return "a majestic fox", nil }

type fixture struct {
	runner *executor.Runner
	srv    *server.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := executor.New(workflow.NewGraph(), nil, fakeService{}, executor.WithLogger(logger))
	srv := server.New(r, logger)
	t.Cleanup(srv.Close)
	return &fixture{runner: r, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (f *fixture) addNode(t *testing.T, body string) workflow.Node {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/nodes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/nodes = %d %s", w.Code, w.Body.String())
	}
	return decode[workflow.Node](t, w)
}

func TestKinds(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/kinds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	kinds := decode[[]struct {
		Kind   string `json:"kind"`
		Source bool   `json:"source"`
	}](t, w)
	if len(kinds) != len(workflow.AllKinds()) {
		t.Errorf("kinds = %d, want %d", len(kinds), len(workflow.AllKinds()))
	}
	if kinds[0].Kind != string(workflow.KindSourceUpload) || !kinds[0].Source {
		t.Errorf("first kind = %+v", kinds[0])
	}
}

func TestCompile(t *testing.T) {
	f := newFixture(t)
	body := `{"script":"create cat \"tabby\" {\n  pose: \"sleeping\"\n}"}`
	w := f.do(t, http.MethodPost, "/api/compile", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Prompt string `json:"prompt"`
		Lint   []struct {
			Line    int    `json:"line"`
			Message string `json:"message"`
		} `json:"lint"`
	}](t, w)
	if got.Prompt != "A tabby, sleeping" {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if len(got.Lint) != 1 || got.Lint[0].Line != 2 {
		t.Errorf("lint = %+v, want one finding on line 2", got.Lint)
	}
}

func TestNodeLifecycle(t *testing.T) {
	f := newFixture(t)
	src := f.addNode(t, `{"kind":"source-generate","custom_text":"a fox","aspect_ratio":"16:9"}`)
	if src.CustomText != "a fox" || src.AspectRatio != "16:9" {
		t.Errorf("created = %+v", src)
	}
	child := f.addNode(t, `{"kind":"op-style","parent_id":"`+src.ID+`"}`)

	w := f.do(t, http.MethodPatch, "/api/nodes/"+child.ID, `{"custom_text":"Monet"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/nodes/"+src.ID+"/descendants", "")
	desc := decode[map[string][]string](t, w)
	if diff := cmp.Diff([]string{child.ID}, desc["descendants"]); diff != "" {
		t.Errorf("descendants (-want +got):\n%s", diff)
	}

	w = f.do(t, http.MethodGet, "/api/graph", "")
	graph := decode[struct {
		Nodes []workflow.Node `json:"nodes"`
		Edges []workflow.Edge `json:"edges"`
	}](t, w)
	if len(graph.Nodes) != 2 || len(graph.Edges) != 1 {
		t.Errorf("graph = %d nodes %d edges", len(graph.Nodes), len(graph.Edges))
	}

	w = f.do(t, http.MethodDelete, "/api/nodes/"+src.ID, "")
	removed := decode[map[string][]string](t, w)
	if diff := cmp.Diff([]string{src.ID, child.ID}, removed["removed"]); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	if w := f.do(t, http.MethodGet, "/api/nodes/"+child.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET deleted = %d, want 404", w.Code)
	}
}

func TestAddNode_Errors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown kind", `{"kind":"op-nope"}`, http.StatusBadRequest},
		{"missing kind", `{}`, http.StatusBadRequest},
		{"unknown parent", `{"kind":"op-style","parent_id":"node-x"}`, http.StatusNotFound},
		{"bad aspect", `{"kind":"source-generate","aspect_ratio":"2:1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, "/api/nodes", tt.body); w.Code != tt.code {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

func TestRunAndOutput(t *testing.T) {
	f := newFixture(t)
	src := f.addNode(t, `{"kind":"source-generate","custom_text":"a fox"}`)

	w := f.do(t, http.MethodPost, "/api/nodes/"+src.ID+"/run", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("run = %d %s", w.Code, w.Body.String())
	}
	f.runner.Wait()

	w = f.do(t, http.MethodGet, "/api/nodes/"+src.ID+"/output", "")
	if w.Code != http.StatusOK {
		t.Fatalf("output = %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Errorf("body = %q", w.Body.Bytes())
	}
}

func TestRun_EmptyPrompt(t *testing.T) {
	f := newFixture(t)
	src := f.addNode(t, `{"kind":"source-generate"}`)
	w := f.do(t, http.MethodPost, "/api/nodes/"+src.ID+"/run", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("run = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/nodes/"+src.ID+"/output", ""); w.Code != http.StatusNotFound {
		t.Errorf("output of failed node = %d, want 404", w.Code)
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	src := f.addNode(t, `{"kind":"source-upload"}`)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="fox.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(png)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/nodes/"+src.ID+"/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	f.runner.Wait()

	n, _ := f.runner.Node(src.ID)
	if n.Status != workflow.StatusReady || n.BasePrompt != "an uploaded fox" {
		t.Errorf("node = %s %q", n.Status, n.BasePrompt)
	}
}

func TestEnhance(t *testing.T) {
	f := newFixture(t)
	src := f.addNode(t, `{"kind":"source-generate","base_prompt":"a fox"}`)
	w := f.do(t, http.MethodPost, "/api/nodes/"+src.ID+"/enhance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("enhance = %d %s", w.Code, w.Body.String())
	}
	if got := decode[map[string]string](t, w)["custom_text"]; got != "a majestic fox" {
		t.Errorf("custom_text = %q", got)
	}
}

func TestGraphDOT(t *testing.T) {
	f := newFixture(t)
	f.addNode(t, `{"kind":"source-generate","custom_text":"a fox"}`)
	w := f.do(t, http.MethodGet, "/api/graph.dot?name=demo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "digraph demo {") {
		t.Errorf("dot = %q", w.Body.String())
	}
	if _, err := workflow.ParsePlan(w.Body.String()); err != nil {
		t.Errorf("exported DOT does not parse: %v", err)
	}
}

func TestEventFeed(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap struct {
		Type  string          `json:"type"`
		Nodes []workflow.Node `json:"nodes"`
	}
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || len(snap.Nodes) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}

	id, err := f.runner.AddNode(workflow.KindSourceGenerate, "")
	if err != nil {
		t.Fatal(err)
	}
	var ev executor.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != executor.EventNodeAdded || ev.NodeID != id {
		t.Errorf("event = %+v", ev)
	}
}
