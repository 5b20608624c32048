// Package storage provides durable-persistence backends for the engine's
// commit hook. The engine itself only requires paxos.Committer; the
// concrete implementations here give that hook a real backing store.
package storage

import (
	"log"

	"paxosd/paxos"
)

// Record is the acceptor tuple a Committer must make durable before the
// engine answers a prepare or propose request: the ballot this node has
// promised, and whatever it has accepted so far.
type Record struct {
	PaxosID            uint64
	PromisedProposalID uint64
	Accepted           bool
	AcceptedProposalID uint64
	AcceptedValue      uint64
}

// Store is implemented by every backend. A Store is turned into a
// paxos.Committer for Engine.Open by NewCommitter.
type Store interface {
	// Load returns the last record written for paxosID, if any.
	Load(paxosID uint64) (Record, bool, error)
	// Save durably writes rec.
	Save(rec Record) error
	// Close releases any held resource (file handle, connection).
	Close() error
}

var _ paxos.Committer = (*recordingCommitter)(nil)

// recordingCommitter adapts a Store to paxos.Committer: on commit it
// persists whatever the acceptor currently holds for paxosID and only
// then signals completion. It works with any Store, so no backend
// re-implements the adaptation.
type recordingCommitter struct {
	store  Store
	source func(paxosID uint64) Record
}

// NewCommitter builds a paxos.Committer backed by store. source is
// called at commit time to read the acceptor's current state for the
// instance being committed — the engine owns that state, storage only
// persists a snapshot of it.
func NewCommitter(store Store, source func(paxosID uint64) Record) paxos.Committer {
	return &recordingCommitter{store: store, source: source}
}

func (c *recordingCommitter) Commit(paxosID uint64, done func()) {
	rec := c.source(paxosID)
	if err := c.store.Save(rec); err != nil {
		// An acceptor that cannot persist its promise must not answer
		// as though it had; the protocol's safety proof rests on that
		// promise being durable.
		log.Fatalf("[STORAGE] -> commit failed for paxos_id %d: %v", paxosID, err)
	}
	done()
}
