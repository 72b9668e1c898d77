package types

import (
	"crypto/rand"
	"sync"
	"time"
)

// ULID is a 128-bit identifier: a 48-bit millisecond timestamp followed by
// 80 random bits. Its string form sorts in generation order.
type ULID [16]byte

// Crockford's Base32 alphabet (excludes I, L, O, U to avoid confusion)
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDGenerator generates ULIDs that are monotonic within a millisecond.
type ULIDGenerator struct {
	mu            sync.Mutex
	lastTimestamp uint64
	lastRandom    [10]byte
}

// NewULIDGenerator creates a new ULID generator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate creates a new ULID with the current timestamp.
func (g *ULIDGenerator) Generate() (ULID, error) {
	return g.GenerateWithTime(time.Now())
}

// GenerateWithTime creates a new ULID stamped with t.
func (g *ULIDGenerator) GenerateWithTime(t time.Time) (ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := uint64(t.UnixMilli())

	var u ULID
	for i := 0; i < 6; i++ {
		u[i] = byte(ts >> (40 - 8*i))
	}

	if ts == g.lastTimestamp {
		// Same millisecond: bump the random part as an 80-bit big-endian counter.
		for i := len(g.lastRandom) - 1; i >= 0; i-- {
			g.lastRandom[i]++
			if g.lastRandom[i] != 0 {
				break
			}
		}
	} else {
		if _, err := rand.Read(g.lastRandom[:]); err != nil {
			return ULID{}, err
		}
		g.lastTimestamp = ts
	}
	copy(u[6:], g.lastRandom[:])

	return u, nil
}

// Timestamp returns the timestamp component as Unix milliseconds.
func (u ULID) Timestamp() uint64 {
	var ts uint64
	for i := 0; i < 6; i++ {
		ts = ts<<8 | uint64(u[i])
	}
	return ts
}

// String returns the 26-character Crockford Base32 form.
func (u ULID) String() string {
	// 128 bits are encoded as 130 bits: two leading zero bits then 26 groups
	// of five, most significant first.
	var buf [26]byte
	for i := 0; i < 26; i++ {
		bitPos := i*5 - 2
		var v byte
		for b := 0; b < 5; b++ {
			pos := bitPos + b
			v <<= 1
			if pos >= 0 && u[pos/8]&(0x80>>(pos%8)) != 0 {
				v |= 1
			}
		}
		buf[i] = crockfordBase32[v]
	}
	return string(buf[:])
}

// Compare compares two ULIDs lexicographically.
// Returns -1 if u < other, 0 if u == other, 1 if u > other.
func (u ULID) Compare(other ULID) int {
	for i := 0; i < 16; i++ {
		if u[i] < other[i] {
			return -1
		}
		if u[i] > other[i] {
			return 1
		}
	}
	return 0
}
