package paxos

import "time"

// proposerState drives rounds for this node when it has a value to
// propose: prepare and propose broadcasts, quorum collection, and the
// learn broadcast once a value is chosen.
//
//	Client           Proposer            Acceptors           Learners
//	  | propose(v)       |                    |                   |
//	  |----------------->| PREPARE(pid)       |                   |
//	  |                   |------------------->|                   |
//	  |                   |<-- PROMISE --------|                   |
//	  |                   | PROPOSE(pid, v)    |                   |
//	  |                   |------------------->|                   |
//	  |                   |<-- ACCEPTED -------|                   |
//	  |                   | LEARN -------------------------------->|
//
// preparing and proposing are mutually exclusive; at most one of the
// three timers below is active at a time.
type proposerState struct {
	preparing bool
	proposing bool
	learnSent bool

	proposalID                uint64
	highestReceivedProposalID uint64
	highestPromisedProposalID uint64
	proposedValue             uint64

	prepareTimeout timer
	proposeTimeout timer
	restartTimeout timer
}

func (p *proposerState) reset() {
	*p = proposerState{
		prepareTimeout: timer{kind: timeoutPrepare},
		proposeTimeout: timer{kind: timeoutPropose},
		restartTimeout: timer{kind: timeoutRestart},
	}
}

func (e *Engine) isBlocked(now time.Time) bool {
	return now.Sub(e.learner.lastRequestChosenTime) > e.timeouts.chosen()
}

func (e *Engine) stopPreparing() {
	e.proposer.preparing = false
	e.proposer.prepareTimeout.stop()
}

func (e *Engine) stopProposing() {
	e.proposer.proposing = false
	e.proposer.proposeTimeout.stop()
}

func (e *Engine) nextProposalID() uint64 {
	p := &e.proposer
	if p.highestPromisedProposalID > p.proposalID {
		return p.highestPromisedProposalID + 1
	}
	return p.proposalID + 1
}

// startPreparing enters phase-1: always run a full prepare round even on
// the very first attempt. The source has a commented-out Multi-Paxos
// shortcut that skips straight to phase-2; this is plain Paxos.
func (e *Engine) startPreparing(now time.Time) {
	p := &e.proposer
	e.stopProposing()

	e.quorum.reset(e.numNodes)
	p.preparing = true
	p.proposalID = e.nextProposalID()
	p.highestReceivedProposalID = 0

	e.host.Broadcast(newPrepareRequest(e.learner.paxosID, e.nodeID, p.proposalID))

	p.restartTimeout.stop()
	p.prepareTimeout.start(now, e.timeouts.Round)
}

func (e *Engine) startProposing(now time.Time) {
	p := &e.proposer
	e.stopPreparing()

	e.quorum.reset(e.numNodes)
	p.proposing = true

	e.host.Broadcast(newProposeRequest(e.learner.paxosID, e.nodeID, p.proposalID, p.proposedValue))

	p.restartTimeout.stop()
	p.proposeTimeout.start(now, e.timeouts.Round)
}

// onPrepareResponse handles PREPARE_REJECTED, PREPARE_CURRENTLY_OPEN,
// and PREPARE_PREVIOUSLY_ACCEPTED. A response whose ballot does not
// match the current attempt is ignored — it belongs to a round this
// node has already moved past.
func (e *Engine) onPrepareResponse(now time.Time, msg Message) {
	p := &e.proposer
	if !p.preparing || msg.ProposalID != p.proposalID {
		return
	}

	if msg.Type == MsgPrepareRejected {
		e.quorum.reject()
	} else {
		e.quorum.accept()
	}

	switch {
	case msg.Type == MsgPreparePreviouslyAccepted && msg.AcceptedProposalID >= p.highestReceivedProposalID:
		p.highestReceivedProposalID = msg.AcceptedProposalID
		p.proposedValue = msg.Value
	case msg.Type == MsgPrepareRejected:
		if msg.PromisedProposalID > p.highestPromisedProposalID {
			p.highestPromisedProposalID = msg.PromisedProposalID
		}
	}

	switch {
	case e.quorum.isAccepted():
		e.startProposing(now)
	case e.quorum.isRejected():
		e.stopPreparing()
		p.restartTimeout.start(now, e.timeouts.Restart)
	}
}

// onProposeResponse handles PROPOSE_REJECTED and PROPOSE_ACCEPTED.
func (e *Engine) onProposeResponse(now time.Time, msg Message) {
	p := &e.proposer
	if !p.proposing || msg.ProposalID != p.proposalID {
		return
	}

	if msg.Type == MsgProposeRejected {
		e.quorum.reject()
	} else {
		e.quorum.accept()
	}

	switch {
	case e.quorum.isAccepted():
		e.stopProposing()
		e.host.Broadcast(newLearnProposal(e.learner.paxosID, e.nodeID, p.proposalID))
		p.learnSent = true
	case e.quorum.isRejected():
		e.stopProposing()
		p.restartTimeout.start(now, e.timeouts.Restart)
	}
}

// onPrepareTimeout, onProposeTimeout, and onRestartTimeout share one
// pattern: if this node is blocked (behind the cluster; catch-up will
// eventually deliver the value) or the current ballot lost its quorum
// race, re-enter phase-1 with a fresh ballot; otherwise just re-arm the
// timer that fired. Each is a no-op once the proposer has left the phase
// its timer belongs to.
func (e *Engine) onPrepareTimeout(now time.Time) {
	if !e.proposer.preparing {
		return
	}
	if e.isBlocked(now) || e.quorum.isRejected() {
		e.startPreparing(now)
	} else {
		e.proposer.prepareTimeout.start(now, e.timeouts.Round)
	}
}

func (e *Engine) onProposeTimeout(now time.Time) {
	if !e.proposer.proposing {
		return
	}
	if e.isBlocked(now) || e.quorum.isRejected() {
		e.startPreparing(now)
	} else {
		e.proposer.proposeTimeout.start(now, e.timeouts.Round)
	}
}

func (e *Engine) onRestartTimeout(now time.Time) {
	if e.proposer.preparing || e.proposer.proposing {
		return
	}
	if e.isBlocked(now) {
		e.startPreparing(now)
	} else {
		e.proposer.restartTimeout.start(now, e.timeouts.Restart)
	}
}

// propose stores value and begins phase-1 for the current instance.
func (e *Engine) propose(now time.Time, value uint64) {
	e.proposer.proposedValue = value
	e.startPreparing(now)
}
