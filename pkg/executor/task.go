package executor

// Task tracks one in-flight generation for a node.
type Task struct {
	NodeID     string
	Generation string

	done    chan struct{}
	err     error
	applied bool
}

func newTask(nodeID, generation string) *Task {
	return &Task{NodeID: nodeID, Generation: generation, done: make(chan struct{})}
}

// Done is closed once the result has been applied or discarded.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns the generation failure,
// if any. A failure is also recorded on the node.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Applied reports whether the result was written to the node. It is false
// when the node was deleted or restarted while the task was in flight.
// Only meaningful after Done is closed.
func (t *Task) Applied() bool {
	<-t.done
	return t.applied
}

func (t *Task) finish(err error, applied bool) {
	t.err = err
	t.applied = applied
	close(t.done)
}
