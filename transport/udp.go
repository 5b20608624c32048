// Package transport provides a UDP-backed implementation of the
// engine's send/broadcast capability, grounded on the source's
// net.c/net.h trio (udp_bind, udp_send_to, udp_broadcast) but expressed
// as a Go type around one *net.UDPConn instead of three free functions
// threading a socket fd.
package transport

import (
	"fmt"
	"log"
	"net"
	"time"

	"paxosd/paxos"
)

// UDP sends and receives fixed-layout Paxos datagrams between cluster
// members. Every node listens on its own address and knows every
// peer's address up front (no dynamic membership).
type UDP struct {
	conn   *net.UDPConn
	selfID uint64
	peers  []*net.UDPAddr // indexed by node id
}

// Dial binds listenAddr and resolves every entry of peerAddrs (indexed
// by node id, including this node's own entry at selfID — broadcast
// really does send to self over the loopback path, matching the
// source's udp_broadcast to its own bound port).
func Dial(listenAddr string, peerAddrs []string, selfID uint64) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	peers := make([]*net.UDPAddr, len(peerAddrs))
	for i, addr := range peerAddrs {
		raddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("transport: resolve peer %d (%s): %w", i, addr, err)
		}
		peers[i] = raddr
	}

	return &UDP{conn: conn, selfID: selfID, peers: peers}, nil
}

// Send unicasts msg to nodeID. A write failure is logged and otherwise
// swallowed — per the host-callback contract, send is best-effort and
// loss is tolerated; the protocol retries via timeout.
func (u *UDP) Send(nodeID uint64, msg paxos.Message) {
	if int(nodeID) >= len(u.peers) {
		log.Printf("[TRANSPORT] -> send: unknown node %d", nodeID)
		return
	}
	u.sendTo(u.peers[nodeID], msg)
}

// Broadcast delivers msg to every cluster member, including this node.
func (u *UDP) Broadcast(msg paxos.Message) {
	for _, peer := range u.peers {
		u.sendTo(peer, msg)
	}
}

func (u *UDP) sendTo(addr *net.UDPAddr, msg paxos.Message) {
	var buf [paxos.WireSize]byte
	paxos.Encode(msg, buf[:])
	if _, err := u.conn.WriteToUDP(buf[:], addr); err != nil {
		log.Printf("[TRANSPORT] -> send to %s failed: %v", addr, err)
	}
}

// Recv blocks for up to timeout waiting for one datagram. It reports
// ok=false on a read timeout, a short/malformed datagram, or an
// unrecognised message type — all of which the wire format says to
// drop silently.
func (u *UDP) Recv(timeout time.Duration) (msg paxos.Message, ok bool) {
	msg, _, ok = u.RecvFrom(timeout)
	return msg, ok
}

// RecvFrom is Recv plus the sender's address, for the server loop's
// user-facing traffic (USER_PROPOSE_VALUE, USER_LEARN_VALUE): unlike
// peer-to-peer messages, those callers are identified only by their
// return address, not a node id in the cluster table.
func (u *UDP) RecvFrom(timeout time.Duration) (msg paxos.Message, from *net.UDPAddr, ok bool) {
	if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		log.Printf("[TRANSPORT] -> set read deadline: %v", err)
		return paxos.Message{}, nil, false
	}

	var buf [paxos.WireSize]byte
	n, addr, err := u.conn.ReadFromUDP(buf[:])
	if err != nil {
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return paxos.Message{}, nil, false
		}
		log.Printf("[TRANSPORT] -> recv: %v", err)
		return paxos.Message{}, nil, false
	}

	msg, ok = paxos.Decode(buf[:n])
	return msg, addr, ok
}

// ReplyTo unicasts msg to an address obtained from RecvFrom, rather
// than a node id from the cluster table — the reply path for
// user-facing queries.
func (u *UDP) ReplyTo(addr *net.UDPAddr, msg paxos.Message) {
	u.sendTo(addr, msg)
}

// Close releases the underlying socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
