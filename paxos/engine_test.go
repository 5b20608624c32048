package paxos

import (
	"testing"
	"time"
)

// fakeHost is an in-memory Host that lets a test drive a whole cluster
// of engines by hand, feeding each node's outbound effects back into
// the others.
type fakeHost struct {
	id      uint64
	cluster map[uint64]*Engine
	outbox  []Message
	learned []uint64
	net     *fakeNet // shared by a cluster's hosts; nil delivers at once
}

// fakeNet hands queued messages over one at a time in send order, so a
// message is never delivered from inside another engine's handler.
type fakeNet struct {
	queue    []func()
	draining bool
}

func (n *fakeNet) deliver(peer *Engine, msg Message) {
	n.queue = append(n.queue, func() { peer.ProcessMessage(time.Unix(0, 0), msg) })
	if n.draining {
		return
	}
	n.draining = true
	for len(n.queue) > 0 {
		next := n.queue[0]
		n.queue = n.queue[1:]
		next()
	}
	n.draining = false
}

func (h *fakeHost) deliver(peer *Engine, msg Message) {
	if h.net == nil {
		peer.ProcessMessage(time.Unix(0, 0), msg)
		return
	}
	h.net.deliver(peer, msg)
}

func (h *fakeHost) Send(nodeID uint64, msg Message) {
	h.outbox = append(h.outbox, msg)
	if peer, ok := h.cluster[nodeID]; ok {
		h.deliver(peer, msg)
	}
}

func (h *fakeHost) Broadcast(msg Message) {
	h.outbox = append(h.outbox, msg)
	for id, peer := range h.cluster {
		_ = id
		h.deliver(peer, msg)
	}
}

func (h *fakeHost) OnLearned(value uint64) {
	h.learned = append(h.learned, value)
}

func newCluster(n int) ([]*Engine, []*fakeHost) {
	engines := make([]*Engine, n)
	hosts := make([]*fakeHost, n)
	cluster := make(map[uint64]*Engine, n)
	net := &fakeNet{}

	for i := 0; i < n; i++ {
		engines[i] = &Engine{}
		cluster[uint64(i)] = engines[i]
	}
	for i := 0; i < n; i++ {
		hosts[i] = &fakeHost{id: uint64(i), cluster: cluster, net: net}
		engines[i].Open(hosts[i], nil, uint64(i), uint32(n), Timeouts{})
	}
	return engines, hosts
}

func TestHappyPathPropose(t *testing.T) {
	engines, hosts := newCluster(3)
	now := time.Unix(0, 0)

	engines[0].Propose(now, 42)

	for i, e := range engines {
		value, ok := e.LearnedValue()
		if !ok {
			t.Fatalf("node %d: expected a learned value", i)
		}
		if value != 42 {
			t.Fatalf("node %d: learned %d, want 42", i, value)
		}
		if e.CurrentInstance() != 1 {
			t.Fatalf("node %d: paxos_id = %d, want 1", i, e.CurrentInstance())
		}
	}
	if len(hosts[0].learned) != 1 || hosts[0].learned[0] != 42 {
		t.Fatalf("node 0: OnLearned calls = %v, want exactly one call with 42", hosts[0].learned)
	}
}

func TestSingleNodeCommitsWithoutNetwork(t *testing.T) {
	engines, _ := newCluster(1)
	now := time.Unix(0, 0)

	engines[0].Propose(now, 7)

	value, ok := engines[0].LearnedValue()
	if !ok || value != 7 {
		t.Fatalf("learned = (%d, %v), want (7, true)", value, ok)
	}
}

func TestValueAdoptionFromPreviouslyAccepted(t *testing.T) {
	// A node's PREPARE gathers CURRENTLY_OPEN from one peer and
	// PREVIOUSLY_ACCEPTED(accepted_proposal_id=2, value=99) from
	// another; the proposer must adopt 99, not its own original value,
	// once the accepted-quorum is reached. Driven directly against a
	// single engine (rather than a live 3-node mesh) so the order in
	// which votes arrive is exactly what the scenario specifies.
	e := &Engine{}
	h := &fakeHost{cluster: map[uint64]*Engine{}}
	e.Open(h, nil, 0, 3, Timeouts{})

	now := time.Unix(0, 0)
	e.Propose(now, 7)
	if e.proposer.proposalID != 1 {
		t.Fatalf("proposal_id = %d, want 1", e.proposer.proposalID)
	}

	e.ProcessMessage(now, newPrepareCurrentlyOpen(0, 1, 1))
	e.ProcessMessage(now, newPreparePreviouslyAccepted(0, 2, 1, 2, 99))

	if !e.proposer.proposing {
		t.Fatalf("expected accepted-quorum to move the proposer into phase-2")
	}
	if e.proposer.proposedValue != 99 {
		t.Fatalf("proposed_value = %d, want 99 (adopted)", e.proposer.proposedValue)
	}

	var proposeReq *Message
	for i := range h.outbox {
		if h.outbox[i].Type == MsgProposeRequest {
			proposeReq = &h.outbox[i]
		}
	}
	if proposeReq == nil || proposeReq.Value != 99 {
		t.Fatalf("broadcast PROPOSE_REQUEST = %v, want value=99", proposeReq)
	}
}

func TestDuplicateMessageIsIdempotent(t *testing.T) {
	engines, _ := newCluster(3)
	now := time.Unix(0, 0)

	engines[0].Propose(now, 5)

	value, _ := engines[1].LearnedValue()
	instance := engines[1].CurrentInstance()

	// Replaying the already-processed prepare request a second time
	// must not change anything: the acceptor is on to the next
	// instance and the ballot number no longer matches.
	engines[1].ProcessMessage(now, newPrepareRequest(0, 0, 1))

	value2, _ := engines[1].LearnedValue()
	if value != value2 || instance != engines[1].CurrentInstance() {
		t.Fatalf("replayed message changed state: got (%d, %d), want (%d, %d)",
			value2, engines[1].CurrentInstance(), value, instance)
	}
}

func TestAcceptorRejectsStaleBallot(t *testing.T) {
	e := &Engine{}
	h := &fakeHost{cluster: map[uint64]*Engine{}}
	e.Open(h, nil, 1, 3, Timeouts{})

	e.ProcessMessage(time.Unix(0, 0), newPrepareRequest(0, 0, 5))
	if e.acceptor.promisedProposalID != 5 {
		t.Fatalf("promised_proposal_id = %d, want 5", e.acceptor.promisedProposalID)
	}

	e.ProcessMessage(time.Unix(0, 0), newPrepareRequest(0, 0, 3))
	if len(h.outbox) != 2 {
		t.Fatalf("expected two replies (open, then rejected), got %d", len(h.outbox))
	}
	got := h.outbox[1]
	if got.Type != MsgPrepareRejected || got.PromisedProposalID != 5 {
		t.Fatalf("reply = %v, want PREPARE_REJECTED carrying promised_proposal_id=5", got)
	}
}

func TestCommitGatesAcceptorDuringPrepare(t *testing.T) {
	e := &Engine{}
	h := &fakeHost{cluster: map[uint64]*Engine{}}
	blocked := &blockingCommitter{}
	e.Open(h, blocked, 1, 3, Timeouts{})

	e.ProcessMessage(time.Unix(0, 0), newPrepareRequest(0, 0, 1))
	if !e.acceptor.isCommitting {
		t.Fatalf("expected is_committing to be true while the commit is in flight")
	}

	// A second PREPARE arrives before on_done fires; must be rejected.
	e.ProcessMessage(time.Unix(0, 0), newPrepareRequest(0, 0, 2))

	if len(h.outbox) != 1 {
		t.Fatalf("expected exactly one reply while committing, got %d: %v", len(h.outbox), h.outbox)
	}
	if h.outbox[0].Type != MsgPrepareRejected {
		t.Fatalf("reply = %v, want PREPARE_REJECTED", h.outbox[0])
	}

	blocked.finish()
	if e.acceptor.isCommitting {
		t.Fatalf("expected is_committing to clear once the commit completes")
	}
}

type blockingCommitter struct {
	done func()
}

func (c *blockingCommitter) Commit(paxosID uint64, done func()) {
	c.done = done
}

func (c *blockingCommitter) finish() {
	if c.done != nil {
		d := c.done
		c.done = nil
		d()
	}
}

func TestBootstrapCatchUp(t *testing.T) {
	node0 := &Engine{}
	newcomer := &Engine{}
	cluster := map[uint64]*Engine{0: node0, 1: newcomer}
	h0 := &fakeHost{id: 0, cluster: cluster}
	h1 := &fakeHost{id: 1, cluster: cluster}
	node0.Open(h0, nil, 0, 2, Timeouts{})
	newcomer.Open(h1, nil, 1, 2, Timeouts{})

	now := time.Unix(0, 0)
	// node0 learns value=5 for instance 0, then advances to instance 4
	// by directly driving the learner past the decisions a real
	// multi-round run would have produced.
	node0.Propose(now, 5)
	node0.learner.paxosID = 4
	node0.learner.learnedValue = 5

	node0.onBootstrap(newBootstrap(1))

	value, ok := newcomer.LearnedValue()
	if !ok || value != 5 {
		t.Fatalf("newcomer learned (%d, %v), want (5, true)", value, ok)
	}
	if newcomer.CurrentInstance() != 4 {
		t.Fatalf("newcomer paxos_id = %d, want 4", newcomer.CurrentInstance())
	}
}

func TestQuorumThresholds(t *testing.T) {
	cases := []struct {
		numNodes     uint32
		wantAccepted uint32
		wantRejected uint32
	}{
		{1, 1, 1},
		{2, 2, 1},
		{5, 3, 3},
	}
	for _, c := range cases {
		var q quorum
		q.reset(c.numNodes)
		if got := q.acceptedThreshold(); got != c.wantAccepted {
			t.Errorf("num_nodes=%d: accepted threshold = %d, want %d", c.numNodes, got, c.wantAccepted)
		}
		if got := q.rejectedThreshold(); got != c.wantRejected {
			t.Errorf("num_nodes=%d: rejected threshold = %d, want %d", c.numNodes, got, c.wantRejected)
		}
	}
}

func TestBlockedNodeRestartsPrepare(t *testing.T) {
	e := &Engine{}
	h := &fakeHost{cluster: map[uint64]*Engine{}}
	e.Open(h, nil, 0, 3, Timeouts{})

	start := time.Unix(0, 0)
	e.Propose(start, 1)
	if e.proposer.proposalID != 1 {
		t.Fatalf("proposal_id = %d, want 1", e.proposer.proposalID)
	}

	// No responses ever arrive. The prepare timeout fires after ROUND;
	// last_request_chosen_time is its zero value, far older than
	// CHOSEN_TIMEOUT, so the node is blocked and restarts with a fresh
	// ballot.
	later := start.Add(defaultRoundTimeout + time.Second)
	e.TimeoutTrigger(later, timeoutPrepare)

	if e.proposer.proposalID != 2 {
		t.Fatalf("proposal_id after restart = %d, want 2", e.proposer.proposalID)
	}
}

func TestWireCodecRoundTrip(t *testing.T) {
	msg := newPreparePreviouslyAccepted(10, 2, 3, 2, 99)
	buf := make([]byte, WireSize)
	Encode(msg, buf)

	got, ok := Decode(buf)
	if !ok {
		t.Fatalf("decode failed")
	}
	if got != msg {
		t.Fatalf("round trip mismatch: got %v, want %v", got, msg)
	}
}

func TestDecodeRejectsShortAndUnknown(t *testing.T) {
	if _, ok := Decode(make([]byte, WireSize-1)); ok {
		t.Fatalf("expected short datagram to be rejected")
	}

	buf := make([]byte, WireSize)
	buf[0] = 255
	if _, ok := Decode(buf); ok {
		t.Fatalf("expected unknown type to be rejected")
	}
}
