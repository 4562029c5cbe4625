package internal

import (
	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (stored primitive with metadata)
// --------------------------------------------------------------------------

// Entry stores a primitive with metadata
type Entry struct {
	Value codec.Primitive // Stored primitive
	Index uint64          // Write index of the last change
}

// --------------------------------------------------------------------------
// Shard Type (partition of a scope)
// --------------------------------------------------------------------------

// Shard represents a partition of one scope.
// Each shard has its own independent map.
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of key-value entries
}

// NewShard creates a new, empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// --------------------------------------------------------------------------
// Scope Type (one independent key space)
// --------------------------------------------------------------------------

// Scope holds the shards of one scope. Once created a Scope is never removed
// from the database, clearing it empties its shards in place.
type Scope struct {
	Shards []*Shard
}

// NewScope creates a scope with numShards empty shards
func NewScope(numShards int) *Scope {
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*Shard, numShards)
	for i := range shards {
		shards[i] = NewShard()
	}
	return &Scope{Shards: shards}
}

// GetShard returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Scope) GetShard(key string, seed uint64) *Shard {
	return s.Shards[util.ShardIndex(util.HashString(key, seed), len(s.Shards))]
}

// Size returns the number of entries over all shards
func (s *Scope) Size() int {
	size := 0
	for _, shard := range s.Shards {
		size += shard.Data.Size()
	}
	return size
}

// Clear removes every entry of the scope
func (s *Scope) Clear() {
	for _, shard := range s.Shards {
		shard.Data.Clear()
	}
}
