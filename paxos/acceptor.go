package paxos

import "time"

// acceptorState responds to prepare/propose requests from peer
// proposers, maintaining the promise/accept invariants: once accepted
// is true for an instance, accepted_proposal_id never exceeds a later
// promised_proposal_id for that same instance.
type acceptorState struct {
	promisedProposalID uint64
	accepted           bool
	acceptedProposalID uint64
	acceptedValue      uint64

	isCommitting   bool
	senderID       uint64
	writtenPaxosID uint64
}

func (a *acceptorState) reset() {
	*a = acceptorState{}
}

// canAcceptRequest is the gate shared by prepare and propose handling:
// the request must target the current instance, must not be pre-empted
// by a ballot this node has already promised past, and no commit may be
// in flight.
func (e *Engine) canAcceptRequest(msg Message) bool {
	a := &e.acceptor
	if msg.PaxosID != e.learner.paxosID {
		return false
	}
	if msg.ProposalID < a.promisedProposalID {
		return false
	}
	if a.isCommitting {
		return false
	}
	return true
}

// commit runs the pluggable durable-persistence hook. While it is in
// flight the acceptor rejects every further request. On completion the
// queued response is sent to sender_id, but only if the instance has
// not advanced underneath the write.
func (e *Engine) commit(pending Message) {
	a := &e.acceptor
	a.writtenPaxosID = e.learner.paxosID
	a.isCommitting = true

	writtenFor := a.writtenPaxosID
	e.committer.Commit(e.learner.paxosID, func() {
		a.isCommitting = false
		if writtenFor == e.learner.paxosID {
			e.host.Send(a.senderID, pending)
		}
	})
}

func (e *Engine) acceptPrepareRequest(msg Message) {
	a := &e.acceptor
	a.promisedProposalID = msg.ProposalID
	a.senderID = msg.NodeID

	var resp Message
	if !a.accepted {
		resp = newPrepareCurrentlyOpen(msg.PaxosID, e.nodeID, msg.ProposalID)
	} else {
		resp = newPreparePreviouslyAccepted(msg.PaxosID, e.nodeID, msg.ProposalID, a.acceptedProposalID, a.acceptedValue)
	}
	e.commit(resp)
}

func (e *Engine) acceptProposeRequest(msg Message) {
	a := &e.acceptor
	a.promisedProposalID = msg.ProposalID
	a.accepted = true
	a.acceptedProposalID = msg.ProposalID
	a.acceptedValue = msg.Value
	a.senderID = msg.NodeID

	resp := newProposeAccepted(msg.PaxosID, e.nodeID, msg.ProposalID)
	e.commit(resp)
}

func (e *Engine) onPrepareRequest(msg Message) {
	if e.canAcceptRequest(msg) {
		e.acceptPrepareRequest(msg)
	} else {
		e.host.Send(msg.NodeID, newPrepareRejected(msg.PaxosID, e.nodeID, msg.ProposalID, e.acceptor.promisedProposalID))
	}
}

func (e *Engine) onProposeRequest(msg Message) {
	if e.canAcceptRequest(msg) {
		e.acceptProposeRequest(msg)
	} else {
		e.host.Send(msg.NodeID, newProposeRejected(msg.PaxosID, e.nodeID, msg.ProposalID))
	}
}

// onLearnChosen handles LEARN_PROPOSAL and LEARN_VALUE. A committing
// acceptor drops the message outright; one that is behind replies with
// REQUEST_CHOSEN instead of acting on it.
func (e *Engine) onLearnChosen(now time.Time, msg Message) {
	a := &e.acceptor

	if a.isCommitting {
		return
	}

	if msg.PaxosID > e.learner.paxosID {
		e.requestChosen(now, msg.NodeID)
		return
	}
	if msg.PaxosID < e.learner.paxosID {
		return
	}

	if msg.Type == MsgLearnValue {
		a.accepted = true
		a.acceptedValue = msg.Value
	} else if !(msg.Type == MsgLearnProposal && a.accepted && a.acceptedProposalID == msg.ProposalID) {
		e.requestChosen(now, msg.NodeID)
		return
	}

	e.learnValue(a.acceptedValue)
	e.startNewRound()
}
