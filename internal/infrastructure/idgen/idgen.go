// Package idgen provides the identifier strategies used for upload and file
// resources. Every generated id is unique within the process and safe to use
// as a URI path segment.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/ports"
)

const (
	KindUUID      = "uuid"
	KindSnowflake = "snowflake"
)

// New returns the generator named by kind. node selects the Snowflake node id;
// a negative value picks a random one.
func New(kind string, node int64) (ports.IDGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindUUID:
		return NewUUID(), nil
	case KindSnowflake:
		return NewSnowflake(node)
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}

// UUID generates time-ordered RFC 9562 version 7 UUID strings.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (u *UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Snowflake generates decimal Snowflake ids.
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 {
		var err error
		if nodeID, err = randomNodeID(); err != nil {
			return nil, err
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

func (s *Snowflake) Generate() string {
	return strconv.FormatInt(s.node.Generate().Int64(), 10)
}

func randomNodeID() (int64, error) {
	var nodeID int64
	if err := binary.Read(rand.Reader, binary.BigEndian, &nodeID); err != nil {
		return 0, err
	}
	return nodeID & (1<<snowflake.NodeBits - 1), nil
}
