package util

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the clock if the system has no entropy source
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is the hashed form of a string key
type UintKey uint64

// HashString generates a hash value for a string with a seed
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution
func HashString(s string, seed uint64) UintKey {

	// FNV-1a hash with seed incorporation
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return UintKey(hash)
}

// ShardIndex maps a hashed key onto one of n shards.
// The low 7 bits are dropped because they carry the least entropy.
func ShardIndex(key UintKey, n int) int {
	if n <= 1 {
		return 0
	}
	return int((uint64(key) >> 7) % uint64(n))
}

// --------------------------------------------------------------------------
// File Helpers
// --------------------------------------------------------------------------

// AtomicWriteFile writes a file by streaming into a temporary file in the
// same directory and renaming it over path. Readers never observe a partial file.
func AtomicWriteFile(path string, perm os.FileMode, write func(w io.Writer) error) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generating random suffix: %w", err)
	}
	tmp := path + ".tmp." + hex.EncodeToString(randBytes)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp) // best effort cleanup
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best effort cleanup
		return err
	}
	return nil
}
