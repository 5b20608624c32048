package paxos

import "fmt"

// MessageType identifies the variant of a wire message.
type MessageType uint8

const (
	MsgPrepareRequest            MessageType = 1
	MsgPrepareRejected           MessageType = 2
	MsgPreparePreviouslyAccepted MessageType = 3
	MsgPrepareCurrentlyOpen      MessageType = 4
	MsgProposeRequest            MessageType = 5
	MsgProposeRejected           MessageType = 6
	MsgProposeAccepted           MessageType = 7
	MsgLearnProposal             MessageType = 8
	MsgLearnValue                MessageType = 9
	MsgRequestChosen             MessageType = 10

	MsgBootstrap       MessageType = 21
	MsgCatchupStart    MessageType = 22
	MsgCatchupRequest  MessageType = 23
	MsgCatchupResponse MessageType = 24

	MsgUserProposeValue MessageType = 31
	MsgUserLearnValue   MessageType = 32
)

func (t MessageType) String() string {
	switch t {
	case MsgPrepareRequest:
		return "PREPARE_REQUEST"
	case MsgPrepareRejected:
		return "PREPARE_REJECTED"
	case MsgPreparePreviouslyAccepted:
		return "PREPARE_PREVIOUSLY_ACCEPTED"
	case MsgPrepareCurrentlyOpen:
		return "PREPARE_CURRENTLY_OPEN"
	case MsgProposeRequest:
		return "PROPOSE_REQUEST"
	case MsgProposeRejected:
		return "PROPOSE_REJECTED"
	case MsgProposeAccepted:
		return "PROPOSE_ACCEPTED"
	case MsgLearnProposal:
		return "LEARN_PROPOSAL"
	case MsgLearnValue:
		return "LEARN_VALUE"
	case MsgRequestChosen:
		return "REQUEST_CHOSEN"
	case MsgBootstrap:
		return "BOOTSTRAP"
	case MsgCatchupStart:
		return "CATCHUP_START"
	case MsgCatchupRequest:
		return "CATCHUP_REQUEST"
	case MsgCatchupResponse:
		return "CATCHUP_RESPONSE"
	case MsgUserProposeValue:
		return "USER_PROPOSE_VALUE"
	case MsgUserLearnValue:
		return "USER_LEARN_VALUE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Message is the single fixed-layout record carried on the wire. All
// fields are populated for every variant; a handler only reads the ones
// its type defines. WireSize is the codec's encoded length (52 bytes,
// little-endian); see codec.go.
type Message struct {
	Type               MessageType
	PaxosID            uint64
	NodeID             uint64
	ProposalID         uint64
	AcceptedProposalID uint64
	PromisedProposalID uint64
	Value              uint64
}

func (m Message) String() string {
	return fmt.Sprintf("%s{paxos_id=%d node_id=%d proposal_id=%d accepted_proposal_id=%d promised_proposal_id=%d value=%d}",
		m.Type, m.PaxosID, m.NodeID, m.ProposalID, m.AcceptedProposalID, m.PromisedProposalID, m.Value)
}

func newPrepareRequest(paxosID, nodeID, proposalID uint64) Message {
	return Message{Type: MsgPrepareRequest, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID}
}

func newPrepareRejected(paxosID, nodeID, proposalID, promisedProposalID uint64) Message {
	return Message{Type: MsgPrepareRejected, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID, PromisedProposalID: promisedProposalID}
}

func newPrepareCurrentlyOpen(paxosID, nodeID, proposalID uint64) Message {
	return Message{Type: MsgPrepareCurrentlyOpen, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID}
}

func newPreparePreviouslyAccepted(paxosID, nodeID, proposalID, acceptedProposalID, value uint64) Message {
	return Message{Type: MsgPreparePreviouslyAccepted, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID, AcceptedProposalID: acceptedProposalID, Value: value}
}

func newProposeRequest(paxosID, nodeID, proposalID, value uint64) Message {
	return Message{Type: MsgProposeRequest, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID, Value: value}
}

func newProposeRejected(paxosID, nodeID, proposalID uint64) Message {
	return Message{Type: MsgProposeRejected, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID}
}

func newProposeAccepted(paxosID, nodeID, proposalID uint64) Message {
	return Message{Type: MsgProposeAccepted, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID}
}

func newLearnProposal(paxosID, nodeID, proposalID uint64) Message {
	return Message{Type: MsgLearnProposal, PaxosID: paxosID, NodeID: nodeID, ProposalID: proposalID}
}

func newRequestChosen(paxosID, nodeID uint64) Message {
	return Message{Type: MsgRequestChosen, PaxosID: paxosID, NodeID: nodeID}
}

func newBootstrap(nodeID uint64) Message {
	return Message{Type: MsgBootstrap, NodeID: nodeID}
}

// newLearnValueMessage answers a REQUEST_CHOSEN with the value this node
// has for paxosID (a bootstrap is answered with CATCHUP_RESPONSE instead). It is built as CATCHUP_START rather
// than LEARN_VALUE: the source reuses the catch-up variant for this reply
// and this port preserves that wire coupling rather than "fixing" it.
func newLearnValueMessage(paxosID, nodeID, value uint64) Message {
	return Message{Type: MsgCatchupStart, PaxosID: paxosID, NodeID: nodeID, Value: value}
}

func newCatchupRequest(paxosID, nodeID uint64) Message {
	return Message{Type: MsgCatchupRequest, PaxosID: paxosID, NodeID: nodeID}
}

func newCatchupResponse(paxosID, nodeID, value uint64) Message {
	return Message{Type: MsgCatchupResponse, PaxosID: paxosID, NodeID: nodeID, Value: value}
}
