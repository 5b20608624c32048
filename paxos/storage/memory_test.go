package storage

import "testing"

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	rec := Record{PaxosID: 3, PromisedProposalID: 2, Accepted: true, AcceptedProposalID: 2, AcceptedValue: 99}

	if err := m.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := m.Load(3)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != rec {
		t.Fatalf("got %+v, want %+v", got, rec)
	}

	if _, ok, _ := m.Load(4); ok {
		t.Fatalf("expected no record for unwritten paxos_id")
	}
}

func TestCommitterSavesAndSignalsDone(t *testing.T) {
	m := NewMemory()
	current := Record{PaxosID: 1, PromisedProposalID: 1, AcceptedValue: 42, Accepted: true}
	committer := NewCommitter(m, func(paxosID uint64) Record { return current })

	called := false
	committer.Commit(1, func() { called = true })

	if !called {
		t.Fatalf("expected done to be called")
	}
	got, ok, _ := m.Load(1)
	if !ok || got != current {
		t.Fatalf("got %+v, ok=%v, want %+v", got, ok, current)
	}
}
