package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

// SetNode configures the snowflake node used for record ids. Each running
// bot instance needs its own node id.
func SetNode(id int64) error {
	n, err := snowflake.NewNode(id)

	if err != nil {
		return fmt.Errorf("invalid snowflake node %d: %w", id, err)
	}

	nodeMu.Lock()
	node = n
	nodeMu.Unlock()

	return nil
}

// NewRecordID returns a time-ordered id for orders, tickets and other records
func NewRecordID() string {
	nodeMu.Lock()
	defer nodeMu.Unlock()

	if node == nil {
		// Node 0 is reserved for single-instance and test use
		node, _ = snowflake.NewNode(0)
	}

	return node.Generate().String()
}

// GenerateID generates a short prefixed random id, used for events
func GenerateID(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}
