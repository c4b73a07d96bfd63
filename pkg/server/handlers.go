package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ravi-parthasarathy/artiffex/pkg/artifact"
	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
	"github.com/ravi-parthasarathy/artiffex/pkg/generate"
	"github.com/ravi-parthasarathy/artiffex/pkg/imagescript"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

// maxUpload bounds the size of an uploaded source image.
const maxUpload = 20 << 20

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	var f *generate.Failure
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrUnknownKind),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, executor.ErrEmptyPrompt),
		errors.Is(err, executor.ErrWrongKind),
		errors.Is(err, generate.ErrNoBasePrompt):
		return http.StatusBadRequest
	case errors.As(err, &f):
		if f.Reason == generate.ReasonQuotaExceeded {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// ─── catalogue and compiler ──────────────────────────────────────────────────

type kindInfo struct {
	Kind   workflow.Kind `json:"kind"`
	Title  string        `json:"title"`
	Source bool          `json:"source"`
}

func (s *Server) listKinds(c *gin.Context) {
	kinds := workflow.AllKinds()
	out := make([]kindInfo, len(kinds))
	for i, k := range kinds {
		out[i] = kindInfo{Kind: k, Title: k.Title(), Source: k.IsSource()}
	}
	c.JSON(http.StatusOK, out)
}

type compileRequest struct {
	Script string `json:"script"`
}

type lintFinding struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (s *Server) compile(c *gin.Context) {
	var req compileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	findings := []lintFinding{}
	for _, e := range imagescript.Lint(req.Script) {
		findings = append(findings, lintFinding{Line: e.Line, Message: e.Message})
	}
	c.JSON(http.StatusOK, gin.H{
		"prompt": imagescript.Compile(req.Script),
		"lint":   findings,
	})
}

// ─── graph queries ───────────────────────────────────────────────────────────

type graphView struct {
	Nodes    []workflow.Node `json:"nodes"`
	Edges    []workflow.Edge `json:"edges"`
	Problems []string        `json:"problems,omitempty"`
}

func (s *Server) graphView() graphView {
	v := graphView{Nodes: s.runner.Nodes(), Edges: s.runner.Edges()}
	if v.Nodes == nil {
		v.Nodes = []workflow.Node{}
	}
	if v.Edges == nil {
		v.Edges = []workflow.Edge{}
	}
	for _, p := range s.runner.Problems() {
		v.Problems = append(v.Problems, p.Error())
	}
	return v
}

func (s *Server) getGraph(c *gin.Context) {
	c.JSON(http.StatusOK, s.graphView())
}

func (s *Server) getGraphDOT(c *gin.Context) {
	name := c.DefaultQuery("name", "workflow")
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(workflow.RenderDOT(s.runner.Plan(name))))
}

// ─── node mutation ───────────────────────────────────────────────────────────

type nodeFields struct {
	BasePrompt  *string `json:"base_prompt"`
	CustomText  *string `json:"custom_text"`
	AspectRatio *string `json:"aspect_ratio"`
}

func (f nodeFields) patch() (workflow.Patch, error) {
	if f.AspectRatio != nil && !workflow.ValidAspectRatio(*f.AspectRatio) {
		return workflow.Patch{}, fmt.Errorf("unsupported aspect ratio %q (want one of %s)",
			*f.AspectRatio, strings.Join(workflow.AspectRatios, ", "))
	}
	return workflow.Patch{BasePrompt: f.BasePrompt, CustomText: f.CustomText, AspectRatio: f.AspectRatio}, nil
}

func (f nodeFields) empty() bool {
	return f.BasePrompt == nil && f.CustomText == nil && f.AspectRatio == nil
}

type addNodeRequest struct {
	Kind     string `json:"kind" binding:"required"`
	ParentID string `json:"parent_id"`
	nodeFields
}

func (s *Server) addNode(c *gin.Context) {
	var req addNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	kind, err := workflow.ParseKind(req.Kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	id, err := s.runner.AddNode(kind, req.ParentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !req.empty() {
		if err := s.runner.UpdateNode(id, patch); err != nil {
			s.fail(c, err)
			return
		}
	}
	n, _ := s.runner.Node(id)
	c.JSON(http.StatusCreated, n)
}

func (s *Server) getNode(c *gin.Context) {
	n, ok := s.runner.Node(c.Param("id"))
	if !ok {
		s.fail(c, fmt.Errorf("node %q: %w", c.Param("id"), workflow.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) patchNode(c *gin.Context) {
	var req nodeFields
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	id := c.Param("id")
	if err := s.runner.UpdateNode(id, patch); err != nil {
		s.fail(c, err)
		return
	}
	n, _ := s.runner.Node(id)
	c.JSON(http.StatusOK, n)
}

func (s *Server) deleteNode(c *gin.Context) {
	removed := s.runner.DeleteSubtree(c.Param("id"))
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) invalidate(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.runner.Node(id); !ok {
		s.fail(c, fmt.Errorf("node %q: %w", id, workflow.ErrNotFound))
		return
	}
	removed := s.runner.InvalidateDescendants(id)
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) descendants(c *gin.Context) {
	ids := s.runner.Descendants(c.Param("id"))
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"descendants": ids})
}

// ─── execution ───────────────────────────────────────────────────────────────

func (s *Server) previewPrompt(c *gin.Context) {
	p, err := s.runner.Prompt(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": p})
}

func (s *Server) runNode(c *gin.Context) {
	task, err := s.runner.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"node_id": task.NodeID, "generation": task.Generation})
}

func (s *Server) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing file: %v", err)
		return
	}
	if fh.Size > maxUpload {
		badRequest(c, "file too large: %d bytes", fh.Size)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, err)
		return
	}
	task, err := s.runner.Upload(c.Request.Context(), c.Param("id"), data, fh.Header.Get("Content-Type"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"node_id": task.NodeID, "generation": task.Generation})
}

func (s *Server) enhance(c *gin.Context) {
	text, err := s.runner.Enhance(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"custom_text": text})
}

type animationRequest struct {
	Instruction string `json:"instruction" binding:"required"`
	Frames      int    `json:"frames"`
}

func (s *Server) animation(c *gin.Context) {
	var req animationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	if req.Frames == 0 {
		req.Frames = 4
	}
	prompts, err := s.runner.AnimationPrompts(c.Request.Context(), c.Param("id"), req.Instruction, req.Frames)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (s *Server) output(c *gin.Context) {
	id := c.Param("id")
	n, ok := s.runner.Node(id)
	if !ok {
		s.fail(c, fmt.Errorf("node %q: %w", id, workflow.ErrNotFound))
		return
	}
	if n.Status != workflow.StatusReady {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("node %q has no output (status %s)", id, n.Status)})
		return
	}
	if n.Kind.ProducesText() {
		c.String(http.StatusOK, n.Output)
		return
	}
	a, err := s.runner.Store().Get(c.Request.Context(), n.OutputRef)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, a.MIMEType, a.Data)
}
