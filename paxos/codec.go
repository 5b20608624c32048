package paxos

import "encoding/binary"

// WireSize is the encoded length of a Message on the wire: 1 byte type,
// 3 bytes padding, six uint64 fields.
const WireSize = 4 + 8*6

// Encode writes m's wire representation into buf, which must be at least
// WireSize bytes. Integer fields are written little-endian.
func Encode(m Message, buf []byte) {
	_ = buf[WireSize-1]
	buf[0] = byte(m.Type)
	buf[1], buf[2], buf[3] = 0, 0, 0
	binary.LittleEndian.PutUint64(buf[4:12], m.PaxosID)
	binary.LittleEndian.PutUint64(buf[12:20], m.NodeID)
	binary.LittleEndian.PutUint64(buf[20:28], m.ProposalID)
	binary.LittleEndian.PutUint64(buf[28:36], m.AcceptedProposalID)
	binary.LittleEndian.PutUint64(buf[36:44], m.PromisedProposalID)
	binary.LittleEndian.PutUint64(buf[44:52], m.Value)
}

// Decode parses a Message from buf. It reports ok=false for a short
// datagram or an unrecognised type, per the "datagrams shorter than the
// record or with unknown type are dropped" wire rule.
func Decode(buf []byte) (m Message, ok bool) {
	if len(buf) < WireSize {
		return Message{}, false
	}
	t := MessageType(buf[0])
	if !validMessageType(t) {
		return Message{}, false
	}
	m.Type = t
	m.PaxosID = binary.LittleEndian.Uint64(buf[4:12])
	m.NodeID = binary.LittleEndian.Uint64(buf[12:20])
	m.ProposalID = binary.LittleEndian.Uint64(buf[20:28])
	m.AcceptedProposalID = binary.LittleEndian.Uint64(buf[28:36])
	m.PromisedProposalID = binary.LittleEndian.Uint64(buf[36:44])
	m.Value = binary.LittleEndian.Uint64(buf[44:52])
	return m, true
}

func validMessageType(t MessageType) bool {
	switch t {
	case MsgPrepareRequest, MsgPrepareRejected, MsgPreparePreviouslyAccepted, MsgPrepareCurrentlyOpen,
		MsgProposeRequest, MsgProposeRejected, MsgProposeAccepted,
		MsgLearnProposal, MsgLearnValue, MsgRequestChosen,
		MsgBootstrap, MsgCatchupStart, MsgCatchupRequest, MsgCatchupResponse,
		MsgUserProposeValue, MsgUserLearnValue:
		return true
	default:
		return false
	}
}
