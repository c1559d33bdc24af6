// Package cohort is the in-memory simulation harness: it owns the set of
// replicas and a single FIFO message bus, and advances simulated time one
// iteration at a time. Membership here is a fixed, ordered list set up
// front, not a dynamically reconfigurable one.
package cohort

import (
	"github.com/google/uuid"

	"raftsim/raft"
)

// Cohort owns the replicas, the FIFO message queue between them, and the
// sink of application commands committed so far.
type Cohort struct {
	nodes       []*raft.Node
	queue       []raft.Message
	appMessages []raft.Command
	logger      *raft.Logger
}

// New returns an empty cohort. Logger may be nil for a silent harness.
func New(logger *raft.Logger) *Cohort {
	return &Cohort{logger: logger}
}

// NewUniform builds a cohort of size uninstrumented nodes (no
// persistence, shared logger), wires every node's peer list, and returns
// it ready to iterate. This is the common case for tests and
// cmd/simulate; AddNode exists for tests that need to hand-craft
// individual nodes (e.g. to pre-seed their term or log).
func NewUniform(size int, logger *raft.Logger) *Cohort {
	c := New(logger)
	for i := 0; i < size; i++ {
		c.AddNode(raft.Config{})
	}
	return c
}

// AddNode constructs a new Node wired to this cohort as its Bus, appends
// it, and refreshes every node's peer list and cohort size. cfg.Bus and
// cfg.CohortSize are set by the cohort and any caller-supplied values are
// overwritten.
func (c *Cohort) AddNode(cfg raft.Config) *raft.Node {
	cfg.Bus = c
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	cfg.CohortSize = len(c.nodes) + 1
	node := raft.NewNode(cfg)
	c.nodes = append(c.nodes, node)
	c.refreshMembership()
	return node
}

func (c *Cohort) refreshMembership() {
	ids := make([]uuid.UUID, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	for _, n := range c.nodes {
		n.SetPeers(ids)
		n.SetCohortSize(len(c.nodes))
	}
}

// Nodes returns the cohort's replicas in insertion order.
func (c *Cohort) Nodes() []*raft.Node {
	out := make([]*raft.Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Broadcast appends a message to the tail of the queue. Replicas call
// this through the raft.Bus interface; test code may call it directly to
// inject messages.
func (c *Cohort) Broadcast(msg raft.Message) {
	c.queue = append(c.queue, msg)
}

// AddAppMessages extends the application sink. Only replicas call this,
// at commit points.
func (c *Cohort) AddAppMessages(commands []raft.Command) {
	c.appMessages = append(c.appMessages, commands...)
}

// AppMessages returns the committed application stream so far.
func (c *Cohort) AppMessages() []raft.Command {
	out := make([]raft.Command, len(c.appMessages))
	copy(out, c.appMessages)
	return out
}

// QueueLen reports how many messages are currently queued, for tests
// that assert on bus contents between iterations.
func (c *Cohort) QueueLen() int {
	return len(c.queue)
}

// PeekQueue returns a copy of the current queue without draining it.
func (c *Cohort) PeekQueue() []raft.Message {
	out := make([]raft.Message, len(c.queue))
	copy(out, c.queue)
	return out
}

// Iterate performs one simulated step: pop the head of the message
// queue, if any, and deliver it to every replica, then tick every
// replica exactly once. A message enqueued during this call (by a
// replica reacting to the delivered message, or by a tick) is not
// visible until the next Iterate call.
func (c *Cohort) Iterate() {
	if len(c.queue) > 0 {
		msg := c.queue[0]
		c.queue = c.queue[1:]
		c.logger.Debug("delivering %T to %d node(s)", msg, len(c.nodes))
		for _, n := range c.nodes {
			n.HandleMessage(msg)
		}
	} else {
		c.logger.Debug("no queued message; ticking %d node(s)", len(c.nodes))
	}
	for _, n := range c.nodes {
		n.Tick()
	}
}

// Snapshot returns a read-only copy of every replica's state, in the same
// order as Nodes, for tests that want to assert on the whole cohort at
// once rather than walking Nodes() themselves.
func (c *Cohort) Snapshot() []raft.State {
	out := make([]raft.State, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.Snapshot()
	}
	return out
}

// Submit delivers a client command to every node; only the current
// leader, if any, acts on it (raft.Node.Submit is a no-op for
// non-leaders). This mirrors calling broadcast_log_message on the
// leader's Node directly, without requiring the caller to first find
// which node that is.
func (c *Cohort) Submit(command raft.Command) {
	for _, n := range c.nodes {
		n.Submit(command)
	}
}
