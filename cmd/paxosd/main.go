// Command paxosd runs one node of a Paxos cluster: it owns the UDP
// socket, drives the engine's timeout loop, and serves the two
// user-facing message types (USER_PROPOSE_VALUE, USER_LEARN_VALUE) that
// a paxosctl front-end sends it.
package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paxosd/paxos"
	"paxosd/paxos/config"
	"paxosd/paxos/storage"
	"paxosd/transport"
)

const maxPendingClients = 16

// server glues the engine to a UDP transport and a small queue of
// clients waiting on USER_LEARN_VALUE for an instance that has not been
// decided yet — the same shape as the source's struct server and its
// __wait_proposed/__send_proposed pair.
type server struct {
	engine    *paxos.Engine
	transport *transport.UDP
	pending   []*net.UDPAddr
}

func (s *server) Send(nodeID uint64, msg paxos.Message) {
	log.Printf("[PAXOSD] -> send to %d: %s", nodeID, msg)
	s.transport.Send(nodeID, msg)
}

func (s *server) Broadcast(msg paxos.Message) {
	log.Printf("[PAXOSD] -> broadcast: %s", msg)
	s.transport.Broadcast(msg)
}

func (s *server) OnLearned(value uint64) {
	log.Printf("[PAXOSD] -> learned value %d for paxos_id %d", value, s.engine.CurrentInstance())
	s.flushPending()
}

func (s *server) waitProposed(client *net.UDPAddr) {
	if len(s.pending) >= maxPendingClients {
		log.Printf("[PAXOSD] -> too many pending learn-value clients, dropping %s", client)
		return
	}
	s.pending = append(s.pending, client)
}

func (s *server) sendLearnedValue(client *net.UDPAddr) {
	value, _ := s.engine.LearnedValue()
	s.transport.ReplyTo(client, paxos.Message{
		Type:    paxos.MsgUserLearnValue,
		PaxosID: s.engine.CurrentInstance(),
		Value:   value,
	})
}

func (s *server) sendProposed(client *net.UDPAddr) {
	if _, ok := s.engine.LearnedValue(); ok {
		s.sendLearnedValue(client)
	} else {
		s.waitProposed(client)
	}
}

func (s *server) flushPending() {
	for _, client := range s.pending {
		s.sendLearnedValue(client)
	}
	s.pending = nil
}

func openStore(conf *config.Conf) (storage.Store, error) {
	switch conf.DB_TYPE {
	case "sqlite":
		return storage.OpenSqlite(conf.DB_PATH)
	case "redis":
		return storage.OpenRedis(conf.DB_PATH)
	default:
		return storage.NewMemory(), nil
	}
}

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	var conf config.Conf
	conf.LoadConfigFile(configPath)
	conf.FillEmptyFields()

	store, err := openStore(&conf)
	if err != nil {
		log.Fatalf("[PAXOSD] -> opening storage backend %q: %v", conf.DB_TYPE, err)
	}
	defer store.Close()

	udpTransport, err := transport.Dial(conf.LISTEN, conf.NODES, conf.PID)
	if err != nil {
		log.Fatalf("[PAXOSD] -> %v", err)
	}
	defer udpTransport.Close()

	srv := &server{transport: udpTransport}
	engine := &paxos.Engine{}
	srv.engine = engine

	committer := storage.NewCommitter(store, func(paxosID uint64) storage.Record {
		promised, accepted, acceptedProposalID, acceptedValue := engine.AcceptorSnapshot(paxosID)
		return storage.Record{
			PaxosID:            paxosID,
			PromisedProposalID: promised,
			Accepted:           accepted,
			AcceptedProposalID: acceptedProposalID,
			AcceptedValue:      acceptedValue,
		}
	})
	engine.Open(srv, committer, conf.PID, conf.NumNodes(), paxos.Timeouts{
		Round:   conf.ROUND_TIMEOUT,
		Restart: conf.RESTART_TIMEOUT,
	})

	log.Printf("[PAXOSD] -> node %d listening on %s (cluster size %d)", conf.PID, conf.LISTEN, conf.NumNodes())

	if conf.BOOTSTRAP {
		engine.Bootstrap()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	running := true
	for running {
		select {
		case <-sigCh:
			running = false
			continue
		default:
		}

		now := time.Now()
		wait, kind, active := engine.NextTimeout(now)

		msg, from, ok := udpTransport.RecvFrom(wait)
		if !ok {
			if active {
				engine.TimeoutTrigger(time.Now(), kind)
			}
			continue
		}

		switch msg.Type {
		case paxos.MsgUserProposeValue:
			log.Printf("[PAXOSD] -> user propose value %d", msg.Value)
			engine.Propose(time.Now(), msg.Value)
			srv.waitProposed(from)
		case paxos.MsgUserLearnValue:
			log.Printf("[PAXOSD] -> user learn value query")
			srv.sendProposed(from)
		default:
			engine.ProcessMessage(time.Now(), msg)
		}
	}

	engine.Close()
	log.Printf("[PAXOSD] -> shutting down")
}
