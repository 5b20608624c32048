package storage

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v7"
)

// Redis persists acceptor records as colon-delimited strings under
// "paxos_state:<paxos_id>" keys, so a shared cluster can serve many
// nodes' commit logs under one keyspace.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to a redis server at addr (e.g. "localhost:6379").
func OpenRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("storage: redis server did not PONG back: %w", err)
	}
	return &Redis{client: client}, nil
}

func recordKey(paxosID uint64) string {
	return fmt.Sprintf("paxos_state:%d", paxosID)
}

func recordToString(rec Record) string {
	accepted := 0
	if rec.Accepted {
		accepted = 1
	}
	return fmt.Sprintf("%d:%d:%d:%d", rec.PromisedProposalID, accepted, rec.AcceptedProposalID, rec.AcceptedValue)
}

func stringToRecord(paxosID uint64, s string) (Record, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("storage: malformed redis record %q", s)
	}

	promised, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Record{}, err
	}
	accepted, err := strconv.Atoi(parts[1])
	if err != nil {
		return Record{}, err
	}
	acceptedProposalID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Record{}, err
	}
	acceptedValue, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Record{}, err
	}

	return Record{
		PaxosID:            paxosID,
		PromisedProposalID: promised,
		Accepted:           accepted != 0,
		AcceptedProposalID: acceptedProposalID,
		AcceptedValue:      acceptedValue,
	}, nil
}

func (r *Redis) Load(paxosID uint64) (Record, bool, error) {
	s, err := r.client.Get(recordKey(paxosID)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		log.Printf("[STORAGE] -> redis load failed for paxos_id %d: %v", paxosID, err)
		return Record{}, false, err
	}

	rec, err := stringToRecord(paxosID, s)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *Redis) Save(rec Record) error {
	err := r.client.Set(recordKey(rec.PaxosID), recordToString(rec), 0).Err()
	if err != nil {
		log.Printf("[STORAGE] -> redis save failed for paxos_id %d: %v", rec.PaxosID, err)
	}
	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}
