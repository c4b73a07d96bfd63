// Package executor runs workflow nodes against the generation service.
//
// A Runner owns a workflow.Graph and serialises every access to it. Starting
// a node prunes its descendants synchronously, marks it Running under a fresh
// generation token and calls the service in the background without holding
// the lock. The result is applied only if the node still exists and still
// carries the same token; otherwise it is discarded.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/artiffex/pkg/artifact"
	"github.com/ravi-parthasarathy/artiffex/pkg/generate"
	"github.com/ravi-parthasarathy/artiffex/pkg/recipe"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

var (
	// ErrEmptyPrompt is returned when the assembled prompt is blank.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrBusy is returned when a node already has a generation in flight.
	ErrBusy = errors.New("node is already running")
	// ErrWrongKind is returned for an operation the node's kind does not support.
	ErrWrongKind = errors.New("operation not supported for node kind")
)

// Runner executes nodes of one workflow graph.
type Runner struct {
	mu        sync.Mutex
	graph     *workflow.Graph
	recipes   *recipe.Registry
	svc       generate.Service
	store     artifact.Store
	logger    *slog.Logger
	newToken  func() string
	anomalies int

	lsMu      sync.Mutex
	listeners map[int]Listener
	nextLs    int

	tasks sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStore sets where generated and uploaded images are kept. The default is
// an in-memory store.
func WithStore(s artifact.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithListener registers a listener for the runner's whole lifetime.
func WithListener(l Listener) Option {
	return func(r *Runner) { r.addListener(l) }
}

// New creates a Runner over g. A nil reg uses recipe.Default().
func New(g *workflow.Graph, reg *recipe.Registry, svc generate.Service, opts ...Option) *Runner {
	if reg == nil {
		reg = recipe.Default()
	}
	r := &Runner{
		graph:     g,
		recipes:   reg,
		svc:       svc,
		store:     artifact.NewMemoryStore(),
		logger:    slog.Default(),
		newToken:  uuid.NewString,
		listeners: make(map[int]Listener),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Subscribe adds a listener and returns a function that removes it.
func (r *Runner) Subscribe(l Listener) (cancel func()) {
	id := r.addListener(l)
	return func() {
		r.lsMu.Lock()
		defer r.lsMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Runner) addListener(l Listener) int {
	r.lsMu.Lock()
	defer r.lsMu.Unlock()
	id := r.nextLs
	r.nextLs++
	r.listeners[id] = l
	return id
}

func (r *Runner) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	r.lsMu.Lock()
	ls := make([]Listener, 0, len(r.listeners))
	for i := 0; i < r.nextLs; i++ {
		if l, ok := r.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	r.lsMu.Unlock()
	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}

// Store returns the artifact store outputs are written to.
func (r *Runner) Store() artifact.Store { return r.store }

// ─── graph mutation and queries ──────────────────────────────────────────────

// AddNode creates a node; see workflow.Graph.AddNode.
func (r *Runner) AddNode(kind workflow.Kind, parentID string) (string, error) {
	r.mu.Lock()
	id, err := r.graph.AddNode(kind, parentID)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	r.emit(Event{Type: EventNodeAdded, NodeID: id, Kind: kind})
	return id, nil
}

// UpdateNode merges p into the node; see workflow.Graph.UpdateNode.
func (r *Runner) UpdateNode(id string, p workflow.Patch) error {
	r.mu.Lock()
	err := r.graph.UpdateNode(id, p)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	events := []Event{{Type: EventNodeUpdated, NodeID: id}}
	if p.Status != nil {
		events = append(events, Event{Type: EventStatus, NodeID: id, Status: *p.Status})
	}
	r.emit(events...)
	return nil
}

// DeleteSubtree removes a node and everything below it.
func (r *Runner) DeleteSubtree(id string) []string {
	r.mu.Lock()
	removed := r.graph.DeleteSubtree(id)
	r.mu.Unlock()
	if len(removed) > 0 {
		r.emit(Event{Type: EventNodesRemoved, NodeID: id, Removed: removed})
	}
	return removed
}

// InvalidateDescendants removes everything below a node.
func (r *Runner) InvalidateDescendants(id string) []string {
	r.mu.Lock()
	removed := r.graph.InvalidateDescendants(id)
	r.mu.Unlock()
	if len(removed) > 0 {
		r.emit(Event{Type: EventNodesRemoved, NodeID: id, Removed: removed})
	}
	return removed
}

// Descendants lists the nodes below id, breadth-first.
func (r *Runner) Descendants(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Descendants(id)
}

// Node returns a copy of a node.
func (r *Runner) Node(id string) (workflow.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Node(id)
}

// Nodes returns copies of all nodes in creation order.
func (r *Runner) Nodes() []workflow.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Nodes()
}

// Edges returns the parent links of the graph.
func (r *Runner) Edges() []workflow.Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Edges()
}

// Problems reports structural defects of the graph; see workflow.Graph.Problems.
func (r *Runner) Problems() []workflow.Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Problems()
}

// Plan snapshots the graph for rendering.
func (r *Runner) Plan(name string) *workflow.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Plan(name)
}

// Anomalies returns how many times a kind without a recipe was executed.
func (r *Runner) Anomalies() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anomalies
}

// Prompt returns the prompt node id would be generated from right now.
func (r *Runner) Prompt(id string) (string, error) {
	r.mu.Lock()
	n, ok := r.graph.Node(id)
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("prompt %q: %w", id, workflow.ErrNotFound)
	}
	r.mu.Unlock()
	// Previews never count as anomalies.
	p, _ := BuildPrompt(n, r.recipes)
	return p, nil
}

// prompt builds n's prompt, recording a missing recipe. Called with r.mu held.
func (r *Runner) prompt(n workflow.Node, events *[]Event) string {
	p, ok := BuildPrompt(n, r.recipes)
	if !ok {
		r.anomalies++
		r.logger.Error("no prompt recipe for node kind; using base prompt", "node", n.ID, "kind", n.Kind)
		*events = append(*events, Event{Type: EventAnomaly, NodeID: n.ID, Kind: n.Kind})
	}
	return p
}

// ─── execution ───────────────────────────────────────────────────────────────

// job is the part of an execution that runs without the lock. It returns the
// patch to apply on success.
type job struct {
	action string
	run    func(ctx context.Context) (workflow.Patch, error)
}

// Start begins generating the output of node id and returns immediately.
// Descendants of the node are removed before Start returns. The generation
// is not cancelled when ctx is; it always runs to completion.
func (r *Runner) Start(ctx context.Context, id string) (*Task, error) {
	r.mu.Lock()
	n, ok := r.graph.Node(id)
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %q: %w", id, workflow.ErrNotFound)
	}
	if n.Status == workflow.StatusRunning {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %q: %w", id, ErrBusy)
	}
	if n.Kind == workflow.KindSourceUpload {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %q: %w: upload sources run through Upload", id, ErrWrongKind)
	}

	var events []Event
	if removed := r.graph.InvalidateDescendants(id); len(removed) > 0 {
		events = append(events, Event{Type: EventNodesRemoved, NodeID: id, Removed: removed})
	}

	j, err := r.prepare(n, &events)
	if err != nil {
		reason := userMessage(err)
		_ = r.graph.UpdateNode(id, workflow.Patch{
			Status:     workflow.StatusPtr(workflow.StatusFailed),
			FailReason: workflow.String(reason),
		})
		events = append(events, Event{Type: EventStatus, NodeID: id, Status: workflow.StatusFailed, Reason: reason})
		r.mu.Unlock()
		r.emit(events...)
		return nil, fmt.Errorf("start %q: %w", id, err)
	}

	task, events := r.launch(ctx, n, j, workflow.Patch{}, events)
	r.emit(events...)
	return task, nil
}

// launch marks n Running under a new generation token and runs j in the
// background. Called with r.mu held; releases it.
func (r *Runner) launch(ctx context.Context, n workflow.Node, j job, extra workflow.Patch, events []Event) (*Task, []Event) {
	token := r.newToken()
	extra.Status = workflow.StatusPtr(workflow.StatusRunning)
	extra.FailReason = workflow.String("")
	extra.Generation = workflow.String(token)
	// Running is reachable from every status but Running, checked by callers.
	_ = r.graph.UpdateNode(n.ID, extra)
	events = append(events, Event{Type: EventStatus, NodeID: n.ID, Status: workflow.StatusRunning})
	r.tasks.Add(1)
	r.mu.Unlock()

	task := newTask(n.ID, token)
	r.logger.Info("executing node", "node", n.ID, "kind", n.Kind, "generation", token)
	go r.run(context.WithoutCancel(ctx), task, j)
	return task, events
}

// prepare decides what executing n means. Called with r.mu held.
func (r *Runner) prepare(n workflow.Node, events *[]Event) (job, error) {
	switch {
	case n.Kind == workflow.KindVeoVideo:
		return job{action: "generate video", run: func(context.Context) (workflow.Patch, error) {
			return workflow.Patch{}, generate.Unsupported("generate video")
		}}, nil

	case n.Kind.ProducesText():
		base := n.BasePrompt
		if strings.TrimSpace(base) == "" {
			return job{}, generate.ErrNoBasePrompt
		}
		return job{action: "generate podcast script", run: func(ctx context.Context) (workflow.Patch, error) {
			script, err := generate.PodcastScript(ctx, r.svc, base)
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{Output: workflow.String(script)}, nil
		}}, nil
	}

	prompt := r.prompt(n, events)
	if strings.TrimSpace(prompt) == "" {
		return job{}, ErrEmptyPrompt
	}
	aspect := n.AspectRatio
	if aspect == "" {
		aspect = workflow.DefaultAspectRatio
	}
	kind := n.Kind
	return job{action: "generate image", run: func(ctx context.Context) (workflow.Patch, error) {
		data, err := r.svc.GenerateImage(ctx, prompt, aspect)
		if err != nil {
			return workflow.Patch{}, err
		}
		ref, err := r.store.Put(ctx, data, http.DetectContentType(data))
		if err != nil {
			return workflow.Patch{}, fmt.Errorf("store output: %w", err)
		}
		p := workflow.Patch{
			OutputRef:  workflow.RefPtr(ref),
			BasePrompt: workflow.String(prompt),
			Output:     workflow.String(""),
		}
		if kind == workflow.KindPromptMagic {
			p.CustomText = workflow.String(prompt)
		}
		return p, nil
	}}, nil
}

func (r *Runner) run(ctx context.Context, t *Task, j job) {
	defer r.tasks.Done()

	patch, err := j.run(ctx)
	var fail *generate.Failure
	if err != nil {
		fail = generate.Classify(j.action, err)
		patch = workflow.Patch{
			Status:     workflow.StatusPtr(workflow.StatusFailed),
			FailReason: workflow.String(fail.Message),
		}
	} else {
		patch.Status = workflow.StatusPtr(workflow.StatusReady)
		patch.FailReason = workflow.String("")
	}
	var taskErr error
	if fail != nil {
		taskErr = fail
	}

	r.mu.Lock()
	n, ok := r.graph.Node(t.NodeID)
	if !ok || n.Generation != t.Generation {
		r.mu.Unlock()
		r.logger.Info("discarding stale result", "node", t.NodeID, "generation", t.Generation)
		r.emit(Event{Type: EventDiscarded, NodeID: t.NodeID})
		t.finish(taskErr, false)
		return
	}
	applyErr := r.graph.UpdateNode(t.NodeID, patch)
	r.mu.Unlock()

	if applyErr != nil {
		// The node left Running through UpdateNode while in flight.
		r.logger.Warn("could not apply result", "node", t.NodeID, "err", applyErr)
		r.emit(Event{Type: EventDiscarded, NodeID: t.NodeID})
		t.finish(taskErr, false)
		return
	}

	if fail != nil {
		r.logger.Warn("node failed", "node", t.NodeID, "reason", fail.Reason, "err", fail.Cause)
		r.emit(Event{Type: EventStatus, NodeID: t.NodeID, Status: workflow.StatusFailed, Reason: fail.Message})
	} else {
		r.logger.Info("node ready", "node", t.NodeID)
		r.emit(Event{Type: EventStatus, NodeID: t.NodeID, Status: workflow.StatusReady})
	}
	t.finish(taskErr, true)
}

// Run starts node id and waits for its result.
func (r *Runner) Run(ctx context.Context, id string) error {
	task, err := r.Start(ctx, id)
	if err != nil {
		return err
	}
	return task.Wait()
}

// Wait blocks until every started task has finished.
func (r *Runner) Wait() { r.tasks.Wait() }

// ─── supplemented operations ─────────────────────────────────────────────────

// Upload stores an image as the input of an upload source and starts
// describing it. On success the description becomes the node's base prompt
// and the image its output.
func (r *Runner) Upload(ctx context.Context, id string, data []byte, mimeType string) (*Task, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload %q: empty image", id)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	r.mu.Lock()
	n, ok := r.graph.Node(id)
	switch {
	case !ok:
		r.mu.Unlock()
		return nil, fmt.Errorf("upload %q: %w", id, workflow.ErrNotFound)
	case n.Kind != workflow.KindSourceUpload:
		r.mu.Unlock()
		return nil, fmt.Errorf("upload %q: %w: %s", id, ErrWrongKind, n.Kind)
	case n.Status == workflow.StatusRunning:
		r.mu.Unlock()
		return nil, fmt.Errorf("upload %q: %w", id, ErrBusy)
	}
	// Stored only once the node accepts it.
	ref, err := r.store.Put(ctx, data, mimeType)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("upload %q: store input: %w", id, err)
	}

	var events []Event
	if removed := r.graph.InvalidateDescendants(id); len(removed) > 0 {
		events = append(events, Event{Type: EventNodesRemoved, NodeID: id, Removed: removed})
	}
	j := job{action: "describe image", run: func(ctx context.Context) (workflow.Patch, error) {
		desc, err := r.svc.DescribeImage(ctx, data, mimeType)
		if err != nil {
			return workflow.Patch{}, err
		}
		return workflow.Patch{
			BasePrompt: workflow.String(strings.TrimSpace(desc)),
			OutputRef:  workflow.RefPtr(ref),
		}, nil
	}}
	task, events := r.launch(ctx, n, j, workflow.Patch{InputRef: workflow.RefPtr(ref)}, events)
	r.emit(events...)
	return task, nil
}

// Enhance expands the node's base prompt into a richer one and stores it as
// the node's custom text. The node's status is left alone.
func (r *Runner) Enhance(ctx context.Context, id string) (string, error) {
	n, ok := r.Node(id)
	if !ok {
		return "", fmt.Errorf("enhance %q: %w", id, workflow.ErrNotFound)
	}
	enhanced, err := generate.EnhancePrompt(ctx, r.svc, n.BasePrompt)
	if err != nil {
		return "", err
	}
	if err := r.UpdateNode(id, workflow.Patch{CustomText: workflow.String(enhanced)}); err != nil {
		return "", err
	}
	return enhanced, nil
}

// AnimationPrompts returns frame prompts animating the node's base prompt.
func (r *Runner) AnimationPrompts(ctx context.Context, id, instruction string, frames int) ([]string, error) {
	n, ok := r.Node(id)
	if !ok {
		return nil, fmt.Errorf("animation prompts %q: %w", id, workflow.ErrNotFound)
	}
	return generate.AnimationPrompts(ctx, r.svc, n.BasePrompt, instruction, frames)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		return "Prompt cannot be empty. Please write a prompt or script."
	case errors.Is(err, generate.ErrNoBasePrompt):
		return "Cannot generate podcast without a base prompt from an image."
	}
	return err.Error()
}
