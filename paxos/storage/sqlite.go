package storage

import (
	"database/sql"
	"log"

	_ "github.com/mattn/go-sqlite3" // blank import because of no explicit use, only side effects needed.
)

const sqlDriver = "sqlite3"

// Sqlite persists acceptor records in a single-table sqlite database,
// keyed by paxos_id.
type Sqlite struct {
	db *sql.DB
}

// OpenSqlite opens (creating if necessary) the database at path and
// ensures its schema exists.
func OpenSqlite(path string) (*Sqlite, error) {
	db, err := sql.Open(sqlDriver, path)
	if err != nil {
		return nil, err
	}

	s := &Sqlite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sqlite) initSchema() error {
	_, err := s.db.Exec(`BEGIN TRANSACTION;
	CREATE TABLE IF NOT EXISTS "paxos_state" (
		"paxos_id"              INTEGER,
		"promised_proposal_id"  INTEGER,
		"accepted"              INTEGER,
		"accepted_proposal_id"  INTEGER,
		"accepted_value"        INTEGER,
		PRIMARY KEY("paxos_id")
	);
	COMMIT;`)
	return err
}

func (s *Sqlite) Load(paxosID uint64) (Record, bool, error) {
	row := s.db.QueryRow(
		`SELECT promised_proposal_id, accepted, accepted_proposal_id, accepted_value
		   FROM paxos_state WHERE paxos_id = ?`, paxosID)

	var rec Record
	var accepted int
	err := row.Scan(&rec.PromisedProposalID, &accepted, &rec.AcceptedProposalID, &rec.AcceptedValue)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		log.Printf("[STORAGE] -> sqlite load failed for paxos_id %d: %v", paxosID, err)
		return Record{}, false, err
	}

	rec.PaxosID = paxosID
	rec.Accepted = accepted != 0
	return rec, true, nil
}

func (s *Sqlite) Save(rec Record) error {
	accepted := 0
	if rec.Accepted {
		accepted = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO paxos_state (paxos_id, promised_proposal_id, accepted, accepted_proposal_id, accepted_value)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(paxos_id) DO UPDATE SET
		   promised_proposal_id = excluded.promised_proposal_id,
		   accepted             = excluded.accepted,
		   accepted_proposal_id = excluded.accepted_proposal_id,
		   accepted_value       = excluded.accepted_value`,
		rec.PaxosID, rec.PromisedProposalID, accepted, rec.AcceptedProposalID, rec.AcceptedValue)
	if err != nil {
		log.Printf("[STORAGE] -> sqlite save failed for paxos_id %d: %v", rec.PaxosID, err)
	}
	return err
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}
