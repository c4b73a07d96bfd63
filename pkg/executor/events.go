package executor

import "github.com/ravi-parthasarathy/artiffex/pkg/workflow"

// EventType names what changed in the graph.
type EventType string

const (
	EventNodeAdded    EventType = "node_added"
	EventNodeUpdated  EventType = "node_updated"
	EventNodesRemoved EventType = "nodes_removed"
	EventStatus       EventType = "status"
	EventAnomaly      EventType = "anomaly"
	EventDiscarded    EventType = "result_discarded"
)

// Event is published to listeners after every change a Runner makes.
type Event struct {
	Type    EventType       `json:"type"`
	NodeID  string          `json:"node_id,omitempty"`
	Kind    workflow.Kind   `json:"kind,omitempty"`
	Status  workflow.Status `json:"status,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Removed []string        `json:"removed,omitempty"`
}

// Listener receives events. Listeners are called without the Runner's lock
// held, in the order events occurred for a single operation.
type Listener func(Event)
