package maple

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dPrefs/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("maple")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum             = "MAPLEPRF"      // File format identifier
	mapleVersion         = 1               // Snapshot format version
	defaultFlushInterval = 1 * time.Second // Default debounce interval of the autosave loop
	maxStringLen         = 1 << 30         // Upper bound for string lengths read from a snapshot
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory preference database
type mapleImpl struct {
	numShards int                                   // Number of shards per scope
	seed      uint64                                // Seed for hash function
	scopes    *xsync.MapOf[string, *internal.Scope] // scope name -> shards
	currIndex atomic.Uint64                         // Write index, increased on every change

	// loadLock is held exclusively by Load, which replaces seed and content
	loadLock sync.RWMutex

	// autosave
	snapshotPath      string
	flushInterval     time.Duration
	unsaved           atomic.Bool   // true if there are changes not yet in the snapshot file
	dirty             chan struct{} // coalescing change signal for the autosave loop
	stopAutosave      chan struct{}
	autosaveDone      chan struct{}
	autosaveIsRunning atomic.Bool
	lastFlush         atomic.Int64 // unix nanos of the last successful flush
	closed            atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards     int           // Number of shards per scope (0 = number of CPUs)
	SnapshotPath  string        // Snapshot file loaded on open and rewritten by autosave ("" = memory only)
	FlushInterval time.Duration // Debounce interval of the autosave loop (0 = use default: 1 sec)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:     runtime.NumCPU(),     // Auto-determine based on CPU count
		FlushInterval: defaultFlushInterval, // Default autosave interval
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional).
// If a snapshot file is configured but can not be loaded, the error is logged
// and autosave is disabled so the file is not overwritten. Use OpenMapleDB to
// receive the error instead.
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.PrefDB {
	maple, err := OpenMapleDB(opts)
	if err != nil {
		Logger.Errorf("snapshot %s could not be loaded, autosave disabled: %v", opts.SnapshotPath, err)
		impl := newMaple(opts)
		impl.snapshotPath = ""
		return impl
	}
	return maple
}

// OpenMapleDB creates a new MapleDB instance and loads the snapshot file if one
// is configured. A missing snapshot file is not an error. When a snapshot file
// is configured, the autosave loop is started.
func OpenMapleDB(opts *DBOptions) (db.PrefDB, error) {
	maple := newMaple(opts)

	if maple.snapshotPath != "" {
		if err := maple.loadSnapshot(); err != nil {
			return nil, err
		}
		maple.startAutosave()
	}

	return maple, nil
}

func newMaple(opts *DBOptions) *mapleImpl {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}

	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	return &mapleImpl{
		numShards:     numShards,
		seed:          util.GenerateSeed(),
		scopes:        xsync.NewMapOf[string, *internal.Scope](),
		snapshotPath:  opts.SnapshotPath,
		flushInterval: flushInterval,
		dirty:         make(chan struct{}, 1),
		stopAutosave:  make(chan struct{}),
		autosaveDone:  make(chan struct{}),
	}
}

// scope returns the scope with the given name. If create is false and the
// scope does not exist, nil is returned.
func (maple *mapleImpl) scope(name string, create bool) *internal.Scope {
	if !create {
		s, _ := maple.scopes.Load(name)
		return s
	}
	s, _ := maple.scopes.LoadOrCompute(name, func() *internal.Scope {
		return internal.NewScope(maple.numShards)
	})
	return s
}

// --------------------------------------------------------------------------
// Core PrefDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates the primitive for scope and key.
// The compare and the store happen atomically inside the shard map.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(scope, key string, value codec.Primitive) (bool, error) {
	if !value.Valid() {
		return false, fmt.Errorf("maple: can not store primitive of type %s", value.Type)
	}

	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	shard := maple.scope(scope, true).GetShard(key, maple.seed)

	var changed bool
	shard.Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.Value.Equal(value) {
			return old, false
		}
		changed = true
		return internal.Entry{Value: value, Index: maple.currIndex.Add(1)}, false
	})

	if changed {
		maple.markDirty()
	}
	return changed, nil
}

// Delete removes the entry for scope and key. Missing entries are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(scope, key string) error {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	s := maple.scope(scope, false)
	if s == nil {
		return nil
	}

	if _, loaded := s.GetShard(key, maple.seed).Data.LoadAndDelete(key); loaded {
		maple.currIndex.Add(1)
		maple.markDirty()
	}
	return nil
}

// Clear removes every entry of one scope.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Clear(scope string) error {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	s := maple.scope(scope, false)
	if s == nil || s.Size() == 0 {
		return nil
	}

	s.Clear()
	maple.currIndex.Add(1)
	maple.markDirty()
	return nil
}

// --------------------------------------------------------------------------
// Core PrefDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the primitive for scope and key.
// The boolean indicates whether a value was found.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(scope, key string) (codec.Primitive, bool, error) {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	s := maple.scope(scope, false)
	if s == nil {
		return codec.Primitive{}, false, nil
	}

	entry, ok := s.GetShard(key, maple.seed).Data.Load(key)
	if !ok {
		return codec.Primitive{}, false, nil
	}
	return entry.Value, true, nil
}

// Has checks if a value exists for scope and key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(scope, key string) (bool, error) {
	_, ok, err := maple.Get(scope, key)
	return ok, err
}

// Keys returns the sorted keys of one scope.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Keys(scope string) ([]string, error) {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	s := maple.scope(scope, false)
	if s == nil {
		return []string{}, nil
	}

	keys := make([]string, 0, s.Size())
	for _, shard := range s.Shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			keys = append(keys, key)
			return true
		})
	}
	slices.Sort(keys)
	return keys, nil
}

// Scopes returns the sorted names of all non-empty scopes.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Scopes() ([]string, error) {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	scopes := make([]string, 0)
	maple.scopes.Range(func(name string, s *internal.Scope) bool {
		if s.Size() > 0 {
			scopes = append(scopes, name)
		}
		return true
	})
	slices.Sort(scopes)
	return scopes, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// snapshotEntry is one record of a snapshot
type snapshotEntry struct {
	scope string
	key   string
	entry internal.Entry
}

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation.
// The snapshot is fuzzy: changes made while saving may or may not be included.
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.loadLock.RLock()
	seed := maple.seed
	writeIdx := maple.currIndex.Load()

	var entries []snapshotEntry
	maple.scopes.Range(func(name string, s *internal.Scope) bool {
		for _, shard := range s.Shards {
			shard.Data.Range(func(key string, entry internal.Entry) bool {
				entries = append(entries, snapshotEntry{scope: name, key: key, entry: entry})
				return true
			})
		}
		return true
	})
	maple.loadLock.RUnlock()

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 64*1024)

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, seed); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, writeIdx); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	// Write data entries
	for _, item := range entries {
		if err := writeString(bw, item.scope); err != nil {
			return err
		}
		if err := writeString(bw, item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := writePrimitive(bw, item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader. All existing entries are replaced.
// If the snapshot is invalid the database is left unchanged.
//
// Thread-safety: Load blocks all other operations while it runs.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var seed, writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Read everything before touching the live data
	entries := make([]snapshotEntry, 0, min(count, 1<<16))
	for i := uint64(0); i < count; i++ {
		var (
			item snapshotEntry
			err  error
		)
		if item.scope, err = readString(br); err != nil {
			return err
		}
		if item.key, err = readString(br); err != nil {
			return err
		}
		if err = binary.Read(br, binary.LittleEndian, &item.entry.Index); err != nil {
			return err
		}
		if item.entry.Value, err = readPrimitive(br); err != nil {
			return err
		}
		if item.entry.Index > writeIdx {
			writeIdx = item.entry.Index
		}
		entries = append(entries, item)
	}

	maple.loadLock.Lock()
	defer maple.loadLock.Unlock()

	maple.seed = seed
	maple.scopes.Range(func(_ string, s *internal.Scope) bool {
		s.Clear()
		return true
	})
	for _, item := range entries {
		s := maple.scope(item.scope, true)
		s.GetShard(item.key, seed).Data.Store(item.key, item.entry)
	}
	maple.currIndex.Store(writeIdx)

	maple.markDirty()
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("invalid file format: string of %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writePrimitive(w io.Writer, p codec.Primitive) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(p.Type)); err != nil {
		return err
	}
	switch p.Type {
	case codec.PBool:
		var b uint8
		if p.Bool {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case codec.PInt32, codec.PInt64:
		return binary.Write(w, binary.LittleEndian, p.Int)
	case codec.PFloat32, codec.PFloat64:
		return binary.Write(w, binary.LittleEndian, math.Float64bits(p.Float))
	case codec.PString:
		return writeString(w, p.Str)
	default:
		return fmt.Errorf("can not save primitive of type %s", p.Type)
	}
}

func readPrimitive(r io.Reader) (codec.Primitive, error) {
	var t uint8
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return codec.Primitive{}, err
	}

	p := codec.Primitive{Type: codec.PrimitiveType(t)}
	switch p.Type {
	case codec.PBool:
		var b uint8
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return p, err
		}
		p.Bool = b != 0
	case codec.PInt32, codec.PInt64:
		if err := binary.Read(r, binary.LittleEndian, &p.Int); err != nil {
			return p, err
		}
	case codec.PFloat32, codec.PFloat64:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return p, err
		}
		p.Float = math.Float64frombits(bits)
	case codec.PString:
		s, err := readString(r)
		if err != nil {
			return p, err
		}
		p.Str = s
	default:
		return p, fmt.Errorf("invalid file format: primitive type %d", t)
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Autosave
// --------------------------------------------------------------------------

// loadSnapshot loads the configured snapshot file if it exists
func (maple *mapleImpl) loadSnapshot() error {
	f, err := os.Open(maple.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := maple.Load(f); err != nil {
		return fmt.Errorf("loading snapshot %s: %w", maple.snapshotPath, err)
	}

	// the file already holds this state
	maple.unsaved.Store(false)
	select {
	case <-maple.dirty:
	default:
	}

	Logger.Infof("loaded snapshot %s", maple.snapshotPath)
	return nil
}

// markDirty records an unsaved change and wakes the autosave loop.
// The signal channel has capacity one, so bursts of writes coalesce.
func (maple *mapleImpl) markDirty() {
	if maple.snapshotPath == "" {
		return
	}
	maple.unsaved.Store(true)
	select {
	case maple.dirty <- struct{}{}:
	default:
	}
}

// flush writes the snapshot file if there are unsaved changes
func (maple *mapleImpl) flush() error {
	if !maple.unsaved.Swap(false) {
		return nil
	}

	err := util.AtomicWriteFile(maple.snapshotPath, 0o600, maple.Save)
	if err != nil {
		// keep the changes pending for the next attempt
		maple.unsaved.Store(true)
		return err
	}

	maple.lastFlush.Store(time.Now().UnixNano())
	return nil
}

// startAutosave starts the autosave loop
// if the loop is already running, this function does nothing
func (maple *mapleImpl) startAutosave() {
	if maple.autosaveIsRunning.CompareAndSwap(false, true) {
		go maple.autosave()
	}
}

// autosave is the autosave loop. After the first change it waits for
// flushInterval and then writes one snapshot containing every change made
// in the meantime.
// WARNING: this method should never be called directly! Use startAutosave()
func (maple *mapleImpl) autosave() {
	defer close(maple.autosaveDone)

	timer := time.NewTimer(maple.flushInterval)
	timer.Stop()
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-maple.dirty:
			if !pending {
				pending = true
				timer.Reset(maple.flushInterval)
			}

		case <-timer.C:
			pending = false
			if err := maple.flush(); err != nil {
				Logger.Errorf("autosave to %s failed: %v", maple.snapshotPath, err)
			}

		case <-maple.stopAutosave:
			return
		}
	}
}

// --------------------------------------------------------------------------
// PrefDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureSet |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureClear |
	db.FeatureList |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeatureNativeAll

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	histogram := util.NewSizeHistogram()
	shardSizes := make([]float64, 0)
	scopeCount := 0

	maple.scopes.Range(func(_ string, s *internal.Scope) bool {
		if s.Size() > 0 {
			scopeCount++
		}
		for _, shard := range s.Shards {
			shardSizes = append(shardSizes, float64(shard.Data.Size()))
			shard.Data.Range(func(key string, entry internal.Entry) bool {
				histogram.AddSample(len(key) + entry.Value.Size())
				return true
			})
		}
		return true
	})

	// 8 bytes index, 1 byte type, map overhead
	const entryOverhead = 32
	summary := histogram.Summary()

	var lastFlush string
	if ts := maple.lastFlush.Load(); ts != 0 {
		lastFlush = time.Unix(0, ts).UTC().Format(time.RFC3339)
	}

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ScopeCount        int                    `json:"scope_count"`
		ShardsPerScope    int                    `json:"shards_per_scope"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		EntrySizes        util.SizeSummary       `json:"entry_sizes"`
		SnapshotPath      string                 `json:"snapshot_path,omitempty"`
		Unsaved           bool                   `json:"unsaved"`
		LastFlush         string                 `json:"last_flush,omitempty"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ScopeCount:        scopeCount,
		ShardsPerScope:    maple.numShards,
		ShardDistribution: util.NewDistributionStats(shardSizes),
		EntrySizes:        summary,
		SnapshotPath:      maple.snapshotPath,
		Unsaved:           maple.unsaved.Load(),
		LastFlush:         lastFlush,
	}

	features := make([]db.Feature, 0, len(db.AllFeatures))
	for _, f := range db.AllFeatures {
		if supportedFeatures&f == f {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		SizeBytes:         int(summary.Total) + int(summary.Count)*entryOverhead,
		DbType:            db.ImplMaple,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific PrefDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close stops the autosave loop and writes pending changes to the snapshot file.
// Calling Close more than once is a no-op.
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}

	if maple.autosaveIsRunning.CompareAndSwap(true, false) {
		close(maple.stopAutosave)
		<-maple.autosaveDone
	}

	if maple.snapshotPath != "" {
		return maple.flush()
	}
	return nil
}
