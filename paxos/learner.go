package paxos

import "time"

// learnerState tracks whether this instance's value has been learned
// and, if not, drives catch-up against peers. The engine stores only
// the most recent learned value — multi-decree history is out of scope
// here (it would need a log structure, not a single overwritten slot).
type learnerState struct {
	paxosID               uint64
	learnedValue          uint64
	hasLearnedValue       bool
	lastRequestChosenTime time.Time
}

// learnValue records value as the chosen one for the current instance
// and notifies the host. It fires exactly once per instance, before
// startNewRound advances paxos_id.
func (e *Engine) learnValue(value uint64) {
	l := &e.learner
	l.learnedValue = value
	l.hasLearnedValue = true
	e.host.OnLearned(value)
}

// getAcceptedValue reports the value this node holds for paxosID, if
// any — it is only ever the current instance's learned value, since no
// history beyond that is kept.
func (e *Engine) getAcceptedValue(paxosID uint64) (value uint64, ok bool) {
	if e.learner.paxosID == paxosID && e.learner.hasLearnedValue {
		return e.learner.learnedValue, true
	}
	return 0, false
}

// startNewRound advances to the next instance after a successful learn:
// increments paxos_id and resets the proposer and acceptor sub-states.
func (e *Engine) startNewRound() {
	e.learner.paxosID++
	e.proposer.reset()
	e.acceptor.reset()
}

func (e *Engine) requestChosen(now time.Time, nodeID uint64) {
	e.learner.lastRequestChosenTime = now
	e.host.Send(nodeID, newRequestChosen(e.learner.paxosID, e.nodeID))
}

// onRequestChosen answers a peer asking "what did you decide for
// paxos_id N?". If the asker is at or ahead of us, we ignore it — we
// have nothing newer to give it. If we
// hold the value, we answer with a CATCHUP_START carrying it (not
// LEARN_VALUE — the value is never read back out of it by the
// receiver; see newLearnValueMessage). Otherwise we report our own
// horizon so the peer knows where to start its catch-up.
func (e *Engine) onRequestChosen(msg Message) {
	if msg.PaxosID >= e.learner.paxosID {
		return
	}

	var resp Message
	if value, ok := e.getAcceptedValue(msg.PaxosID); ok {
		resp = newLearnValueMessage(msg.PaxosID, e.nodeID, value)
	} else {
		resp = newLearnValueMessage(e.learner.paxosID, e.nodeID, 0)
	}
	e.host.Send(msg.NodeID, resp)
}

// onBootstrap answers a peer that has just come up: if we have learned
// a value for the current instance, hand it over directly.
func (e *Engine) onBootstrap(msg Message) {
	if !e.learner.hasLearnedValue {
		return
	}
	if value, ok := e.getAcceptedValue(e.learner.paxosID); ok {
		e.host.Send(msg.NodeID, newCatchupResponse(e.learner.paxosID, e.nodeID, value))
	}
}

// onCatchupStart asks the sender for the actual value at msg.PaxosID.
// This also serves as the receiving end of onRequestChosen's
// CATCHUP_START-shaped reply above: either way, a CATCHUP_START just
// triggers a follow-up CATCHUP_REQUEST round trip.
func (e *Engine) onCatchupStart(msg Message) {
	if e.nodeID == msg.NodeID {
		return
	}
	e.host.Send(msg.NodeID, newCatchupRequest(msg.PaxosID, e.nodeID))
}

func (e *Engine) onCatchupRequest(msg Message) {
	if value, ok := e.getAcceptedValue(msg.PaxosID); ok {
		e.host.Send(msg.NodeID, newCatchupResponse(msg.PaxosID, e.nodeID, value))
	}
}

// onCatchupResponse jumps straight to the reported instance and records
// its value, bypassing the ballot machinery entirely — catch-up is not
// consensus, it is copying a decision already made elsewhere.
func (e *Engine) onCatchupResponse(msg Message) {
	l := &e.learner
	if l.hasLearnedValue && l.paxosID >= msg.PaxosID {
		return
	}

	l.paxosID = msg.PaxosID
	e.learnValue(msg.Value)

	e.proposer.reset()
	e.acceptor.reset()
}
