// Package paxos implements the per-node engine of a single-decree Paxos
// consensus protocol: the proposer, acceptor, and learner sub-state
// machines that agree on one value per numbered instance, plus the
// catch-up subprotocol a lagging node uses to recover an already-chosen
// value without re-running a ballot.
//
// The engine is transport- and storage-agnostic. It consumes inbound
// messages and timer ticks and produces outbound messages and learned
// notifications through the Host interface; it never performs I/O of
// its own and never spawns a goroutine. Callers own the event loop —
// see the transport and cmd packages for a concrete UDP-backed one.
package paxos

import "time"

// Engine holds one node's entire Paxos state: the shared instance
// counter plus the three sub-machines and the quorum counter that
// serve it.
type Engine struct {
	nodeID   uint64
	numNodes uint32

	host      Host
	committer Committer
	timeouts  Timeouts

	proposer proposerState
	acceptor acceptorState
	learner  learnerState
	quorum   quorum
}

// Open initialises a freshly-allocated Engine. host must not be nil;
// committer may be nil, in which case commits complete synchronously
// and persist nothing (see noopCommitter). The zero value of timeouts
// falls back to the source's original constants.
func (e *Engine) Open(host Host, committer Committer, nodeID uint64, numNodes uint32, timeouts Timeouts) {
	if committer == nil {
		committer = noopCommitter{}
	}
	e.host = host
	e.committer = committer
	e.timeouts = timeouts.withDefaults()
	e.nodeID = nodeID
	e.numNodes = numNodes
	e.quorum.reset(numNodes)
	e.proposer.reset()
	e.acceptor.reset()
	e.learner = learnerState{}
}

// Close stops every active proposer timeout.
func (e *Engine) Close() {
	e.proposer.prepareTimeout.stop()
	e.proposer.proposeTimeout.stop()
	e.proposer.restartTimeout.stop()
}

// Bootstrap announces this node's presence to the cluster; any peer
// that already has a learned value for the current instance will hand
// it over directly.
func (e *Engine) Bootstrap() {
	e.host.Broadcast(newBootstrap(e.nodeID))
}

// Propose begins phase-1 of a new ballot carrying value. It is safe to
// call even if a ballot is already in flight; the new attempt
// supersedes it.
func (e *Engine) Propose(now time.Time, value uint64) {
	e.propose(now, value)
}

// ProcessMessage routes an inbound message to the handler for its
// class. Unknown types are dropped; each handler is responsible for
// its own instance- and ballot-number gating.
func (e *Engine) ProcessMessage(now time.Time, msg Message) {
	switch msg.Type {
	case MsgPrepareRequest:
		e.onPrepareRequest(msg)
	case MsgPrepareRejected, MsgPreparePreviouslyAccepted, MsgPrepareCurrentlyOpen:
		e.onPrepareResponse(now, msg)
	case MsgProposeRequest:
		e.onProposeRequest(msg)
	case MsgProposeRejected, MsgProposeAccepted:
		e.onProposeResponse(now, msg)
	case MsgLearnProposal, MsgLearnValue:
		e.onLearnChosen(now, msg)
	case MsgRequestChosen:
		e.onRequestChosen(msg)
	case MsgBootstrap:
		e.onBootstrap(msg)
	case MsgCatchupStart:
		e.onCatchupStart(msg)
	case MsgCatchupRequest:
		e.onCatchupRequest(msg)
	case MsgCatchupResponse:
		e.onCatchupResponse(msg)
	default:
		// logged by the host, if it cares; the engine itself never
		// aborts on inbound data.
	}
}

// NextTimeout reports how long the caller should wait before the next
// call to TimeoutTrigger: the remaining time on the earliest active
// proposer timer, or pollFloor if none is active.
func (e *Engine) NextTimeout(now time.Time) (time.Duration, TimeoutKind, bool) {
	t, ok := e.minActiveTimer()
	if !ok {
		return pollFloor, 0, false
	}
	return t.remaining(now), t.kind, true
}

func (e *Engine) minActiveTimer() (*timer, bool) {
	var min *timer
	for _, t := range []*timer{&e.proposer.prepareTimeout, &e.proposer.proposeTimeout, &e.proposer.restartTimeout} {
		if !t.active {
			continue
		}
		if min == nil || t.expireAt.Before(min.expireAt) {
			min = t
		}
	}
	return min, min != nil
}

// TimeoutTrigger fires the callback for kind and deactivates it. The
// caller is expected to invoke this only for a kind that NextTimeout
// most recently reported as due; firing a timer that has already been
// superseded by state progress is harmless (the handlers are no-ops in
// that case).
func (e *Engine) TimeoutTrigger(now time.Time, kind TimeoutKind) {
	switch kind {
	case timeoutPrepare:
		e.proposer.prepareTimeout.stop()
		e.onPrepareTimeout(now)
	case timeoutPropose:
		e.proposer.proposeTimeout.stop()
		e.onProposeTimeout(now)
	case timeoutRestart:
		e.proposer.restartTimeout.stop()
		e.onRestartTimeout(now)
	}
}

// LearnedValue reports the most recently learned value and whether this
// node has learned any value yet. The flag is not cleared when the engine
// advances to the next instance.
func (e *Engine) LearnedValue() (value uint64, ok bool) {
	return e.learner.learnedValue, e.learner.hasLearnedValue
}

// CurrentInstance reports the instance number this node is currently
// working on.
func (e *Engine) CurrentInstance() uint64 {
	return e.learner.paxosID
}

// AcceptorSnapshot reports this node's current promise/accept state for
// the given instance, for a Committer to persist. It only has a
// meaningful answer for the current instance; any other paxosID
// reports the zero value, since the acceptor keeps no history beyond
// the instance it is actively working on.
func (e *Engine) AcceptorSnapshot(paxosID uint64) (promisedProposalID uint64, accepted bool, acceptedProposalID, acceptedValue uint64) {
	if paxosID != e.learner.paxosID {
		return 0, false, 0, 0
	}
	a := &e.acceptor
	return a.promisedProposalID, a.accepted, a.acceptedProposalID, a.acceptedValue
}

// NodeID reports this engine's own node identifier.
func (e *Engine) NodeID() uint64 {
	return e.nodeID
}
