// Package util provides identifiers and the simulated clock.
package util

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces time-ordered UUIDv7 identifiers. IDs drawn in the
// same millisecond are ordered by a counter.
type IDGenerator struct {
	mu       sync.Mutex
	lastTime int64
	counter  uint16
}

// NewIDGenerator creates a new ID generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewID generates a new UUIDv7 identifier from this generator.
func (g *IDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now == g.lastTime {
		g.counter++
		if g.counter == 0 {
			for now == g.lastTime {
				time.Sleep(100 * time.Microsecond)
				now = time.Now().UnixMilli()
			}
			g.lastTime = now
		}
	} else {
		g.lastTime = now
		g.counter = 0
	}

	return encodeV7(now, g.counter)
}

var defaultGenerator = NewIDGenerator()

// NewID generates a UUIDv7 for orders, alerts and activity records.
func NewID() string {
	return defaultGenerator.NewID()
}

func encodeV7(unixMilli int64, counter uint16) string {
	var id [16]byte

	binary.BigEndian.PutUint32(id[0:4], uint32(unixMilli>>16))
	binary.BigEndian.PutUint16(id[4:6], uint16(unixMilli))

	id[6] = 0x70 | (byte(counter>>8) & 0x0F)
	id[7] = byte(counter)

	rand.Read(id[8:])
	id[8] = (id[8] & 0x3F) | 0x80

	u, _ := uuid.FromBytes(id[:])
	return u.String()
}

// ParseID validates and normalizes a UUID string.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return id.String(), nil
}

// IsValidID checks if a string is a valid UUID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ShortID returns the first block of an ID for log lines and reports.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// DeterministicID derives a stable version 4 UUID from a seed. The seed
// generator uses it so reseeding a city reproduces the same entity IDs.
func DeterministicID(seed int64) string {
	var id [16]byte

	binary.BigEndian.PutUint64(id[0:8], uint64(seed))
	binary.BigEndian.PutUint64(id[8:16], uint64(seed*31))

	id[6] = (id[6] & 0x0F) | 0x40
	id[8] = (id[8] & 0x3F) | 0x80

	u, _ := uuid.FromBytes(id[:])
	return u.String()
}
