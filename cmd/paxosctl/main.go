// Command paxosctl is a minimal front-end for a running paxosd node: it
// sends one USER_PROPOSE_VALUE or USER_LEARN_VALUE datagram and prints
// whatever the node replies with, grounded on the source's
// paxos-client.c (__paxos_get/__paxos_set).
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"paxosd/paxos"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  paxosctl <host:port> get")
	fmt.Fprintln(os.Stderr, "  paxosctl <host:port> set <value>")
	os.Exit(1)
}

func sendAndRecv(addr string, msg paxos.Message) (paxos.Message, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return paxos.Message{}, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return paxos.Message{}, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	var buf [paxos.WireSize]byte
	paxos.Encode(msg, buf[:])
	if _, err := conn.Write(buf[:]); err != nil {
		return paxos.Message{}, fmt.Errorf("sending request: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return paxos.Message{}, fmt.Errorf("setting read deadline: %w", err)
	}

	n, err := conn.Read(buf[:])
	if err != nil {
		return paxos.Message{}, fmt.Errorf("awaiting response: %w", err)
	}

	reply, ok := paxos.Decode(buf[:n])
	if !ok {
		return paxos.Message{}, fmt.Errorf("malformed response from %s", addr)
	}
	return reply, nil
}

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	addr := os.Args[1]
	cmd := os.Args[2]

	var msg paxos.Message
	switch cmd {
	case "get":
		if len(os.Args) != 3 {
			usage()
		}
		msg = paxos.Message{Type: paxos.MsgUserLearnValue}
	case "set":
		if len(os.Args) != 4 {
			usage()
		}
		value, err := strconv.ParseUint(os.Args[3], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid value %q: %v\n", os.Args[3], err)
			os.Exit(1)
		}
		msg = paxos.Message{Type: paxos.MsgUserProposeValue, Value: value}
	default:
		usage()
	}

	reply, err := sendAndRecv(addr, msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("paxos_id: %d value: %d\n", reply.PaxosID, reply.Value)
}
