// Package config exposes the static variables loaded through a .yaml file used throughout the Paxos algorithm.
package config

import (
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"gopkg.in/yaml.v2"
)

// CONF is the Conf object which holds all the variables
var CONF Conf

// Conf is a type describing the meta variables used by different parts of the algorithm.
type Conf struct {
	PID      uint64   `yaml:"pid"`       // PID is the identifier of this node. PID is supposed to be unique.
	NODES    []string `yaml:"nodes"`     // NODES lists every cluster member's "host:port" address, indexed by node id.
	LISTEN   string   `yaml:"listen"`    // LISTEN is the UDP address this node binds to; defaults to NODES[PID].
	V_DEFAULT string  `yaml:"v_default"` // V_DEFAULT is filled in by FillEmptyFields; nothing in this module reads it.

	BOOTSTRAP bool `yaml:"bootstrap"` // BOOTSTRAP announces this node to the cluster as soon as it comes up.

	ROUND_TIMEOUT   time.Duration `yaml:"round_timeout"`   // ROUND_TIMEOUT bounds the wait for a quorum of prepare or propose responses.
	RESTART_TIMEOUT time.Duration `yaml:"restart_timeout"` // RESTART_TIMEOUT is the back-off before re-entering phase-1 after a rejection.

	DB_TYPE string `yaml:"db_type"` // DB_TYPE selects the commit backend: "memory", "sqlite", or "redis".
	DB_PATH string `yaml:"db_path"` // DB_PATH is the sqlite file path or the redis address, depending on DB_TYPE.
}

// LoadConfigFile loads the config '.yaml' file onto the callee Conf object.
func (c *Conf) LoadConfigFile(fn string) {
	yamlFile, err := ioutil.ReadFile(fn)
	if err != nil {
		log.Fatalf("yamlFile.Get err %v ", err)
	}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		log.Fatalf("Unmarshal: %v", err)
	}
}

// FillEmptyFields fills in those fields that were left empty in the .yaml file or that need a run-time computation.
// These are the only fields which can be left blank; any other field left unset in the '.yaml' file stays zero.
func (c *Conf) FillEmptyFields() {
	if len(c.NODES) == 0 {
		log.Fatalf("config: nodes list must not be empty")
	}

	if int(c.PID) >= len(c.NODES) {
		log.Fatalf("config: pid %d has no matching entry in nodes", c.PID)
	}

	if c.LISTEN == "" {
		c.LISTEN = c.NODES[c.PID]
	}

	if c.V_DEFAULT == "" {
		c.V_DEFAULT = fmt.Sprintf("paxos@%d", c.PID)
	}

	if c.ROUND_TIMEOUT == 0 {
		c.ROUND_TIMEOUT = 5 * time.Second
	}
	if c.RESTART_TIMEOUT == 0 {
		c.RESTART_TIMEOUT = 1 * time.Second
	}

	if c.DB_TYPE == "" {
		c.DB_TYPE = "memory"
	}
}

// NumNodes returns the configured cluster size.
func (c *Conf) NumNodes() uint32 {
	return uint32(len(c.NODES))
}
