package workflow

import (
	"errors"
	"fmt"

	"github.com/ravi-parthasarathy/artiffex/pkg/artifact"
)

var (
	// ErrNotFound is returned when an operation names a node that does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrUnknownKind is returned for a kind outside the closed set.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrInvalidTransition is returned when a status change is not permitted.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the execution state of a node.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// CanTransition reports whether a node in status s may move to next.
// A running node only leaves Running by completing (Ready) or failing.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusIdle, "":
		return next == StatusIdle || next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusReady || next == StatusFailed
	case StatusReady:
		return next == StatusReady || next == StatusRunning || next == StatusFailed
	case StatusFailed:
		return next == StatusFailed || next == StatusRunning
	}
	return false
}

// DefaultAspectRatio is used when a node does not specify one.
const DefaultAspectRatio = "1:1"

// Node is one step of a workflow. The zero ParentID marks a root.
type Node struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	ParentID string `json:"parent_id,omitempty"`

	// BasePrompt is the upstream description this node operates on; after a
	// successful generation it holds the prompt that produced OutputRef.
	BasePrompt string `json:"base_prompt,omitempty"`
	// CustomText holds user-entered parameters: the prompt of a generate
	// source, the script of a script source, the style of op-style, ...
	CustomText  string `json:"custom_text,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`

	// InputRef is the parent's output at the time this node was attached,
	// or the uploaded image of an upload source.
	InputRef  artifact.Ref `json:"input_ref,omitempty"`
	OutputRef artifact.Ref `json:"output_ref,omitempty"`
	// Output is the text result of text-producing kinds.
	Output string `json:"output,omitempty"`

	Status     Status `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	// Generation identifies the in-flight or last applied generation.
	Generation string `json:"generation,omitempty"`
}

// HasOutput reports whether the node currently holds a ready artifact.
func (n Node) HasOutput() bool {
	return n.Status == StatusReady && n.OutputRef != ""
}

// Edge is the derived parent→child link of a node.
type Edge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

func edgeID(parent, child string) string {
	return fmt.Sprintf("edge-%s-%s", parent, child)
}

// Patch lists the mutable fields of a node; nil fields are left unchanged.
type Patch struct {
	BasePrompt  *string
	CustomText  *string
	AspectRatio *string
	InputRef    *artifact.Ref
	OutputRef   *artifact.Ref
	Output      *string
	Status      *Status
	FailReason  *string
	Generation  *string
}

// String returns a pointer to s, for building a Patch.
func String(s string) *string { return &s }

// StatusPtr returns a pointer to s, for building a Patch.
func StatusPtr(s Status) *Status { return &s }

// RefPtr returns a pointer to r, for building a Patch.
func RefPtr(r artifact.Ref) *artifact.Ref { return &r }

func (p Patch) apply(n *Node) error {
	if p.Status != nil && !n.Status.CanTransition(*p.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, *p.Status)
	}
	if p.BasePrompt != nil {
		n.BasePrompt = *p.BasePrompt
	}
	if p.CustomText != nil {
		n.CustomText = *p.CustomText
	}
	if p.AspectRatio != nil {
		n.AspectRatio = *p.AspectRatio
	}
	if p.InputRef != nil {
		n.InputRef = *p.InputRef
	}
	if p.OutputRef != nil {
		n.OutputRef = *p.OutputRef
	}
	if p.Output != nil {
		n.Output = *p.Output
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.FailReason != nil {
		n.FailReason = *p.FailReason
	}
	if p.Generation != nil {
		n.Generation = *p.Generation
	}
	return nil
}
