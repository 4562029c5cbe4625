package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/db/util"
	"github.com/fsnotify/fsnotify"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("filestore")

const (
	filePerm = 0o600
	dirPerm  = 0o755
)

// Options configures the file store
type Options struct {
	Dir    string // Directory holding one file per scope (created if missing)
	Format Format // Document syntax ("" = yaml)
	Watch  bool   // Reload scopes when their files are changed by another process
}

// fileImpl keeps every scope in its own document and caches parsed scopes
// in memory. mu serializes all access, a write rewrites the whole scope file.
type fileImpl struct {
	dir    string
	format Format

	mu    sync.Mutex
	cache map[string]map[string]codec.Primitive // scope -> key -> value, loaded lazily

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	reloads   atomic.Uint64
	writes    atomic.Uint64
	closed    atomic.Bool
}

// --------------------------------------------------------------------------
// Initialization
// --------------------------------------------------------------------------

// NewFileDB opens (and creates) the settings directory described by opts.
func NewFileDB(opts *Options) (db.PrefDB, error) {
	if opts == nil || opts.Dir == "" {
		return nil, errors.New("filestore: a directory is required")
	}

	format := opts.Format
	if format == "" {
		format = FormatYAML
	}
	if format != FormatYAML && format != FormatTOML {
		return nil, fmt.Errorf("filestore: unknown format %q", format)
	}

	if err := os.MkdirAll(opts.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("filestore: creating %s: %w", opts.Dir, err)
	}

	f := &fileImpl{
		dir:    opts.Dir,
		format: format,
		cache:  make(map[string]map[string]codec.Primitive),
	}

	if opts.Watch {
		if err := f.startWatch(); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// --------------------------------------------------------------------------
// Scope documents
// --------------------------------------------------------------------------

func (f *fileImpl) path(scope string) string {
	return filepath.Join(f.dir, f.format.fileName(scope))
}

// scope returns the cached values of scope, reading its file on a miss.
// A missing file is an empty scope. Must be called with mu held.
func (f *fileImpl) scope(scope string) (map[string]codec.Primitive, error) {
	if values, ok := f.cache[scope]; ok {
		return values, nil
	}

	data, err := os.ReadFile(f.path(scope))
	if errors.Is(err, fs.ErrNotExist) {
		values := make(map[string]codec.Primitive)
		f.cache[scope] = values
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading scope %q: %w", scope, err)
	}

	var doc document
	if err := f.format.unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path(scope), err)
	}
	values, err := doc.primitives()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path(scope), err)
	}

	f.cache[scope] = values
	return values, nil
}

// persist writes values as the new content of scope. An empty scope removes
// its file. Must be called with mu held.
func (f *fileImpl) persist(scope string, values map[string]codec.Primitive) error {
	path := f.path(scope)
	f.writes.Add(1)

	if len(values) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	}

	data, err := f.format.marshal(newDocument(values))
	if err != nil {
		return fmt.Errorf("encoding scope %q: %w", scope, err)
	}

	return util.AtomicWriteFile(path, filePerm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// --------------------------------------------------------------------------
// Basic Operations
// --------------------------------------------------------------------------

func (f *fileImpl) Set(scope, key string, value codec.Primitive) (bool, error) {
	if !value.Valid() {
		return false, fmt.Errorf("invalid primitive type %d", value.Type)
	}
	if err := f.format.check(key, value); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.scope(scope)
	if err != nil {
		return false, err
	}

	if old, ok := values[key]; ok && old.Equal(value) {
		return false, nil
	}

	next := cloneValues(values)
	next[key] = value
	if err := f.persist(scope, next); err != nil {
		return false, err
	}
	f.cache[scope] = next
	return true, nil
}

func (f *fileImpl) Get(scope, key string) (codec.Primitive, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.scope(scope)
	if err != nil {
		return codec.Primitive{}, false, err
	}
	p, ok := values[key]
	return p, ok, nil
}

func (f *fileImpl) Delete(scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.scope(scope)
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}

	next := cloneValues(values)
	delete(next, key)
	if err := f.persist(scope, next); err != nil {
		return err
	}
	f.cache[scope] = next
	return nil
}

func (f *fileImpl) Has(scope, key string) (bool, error) {
	_, ok, err := f.Get(scope, key)
	return ok, err
}

func (f *fileImpl) Clear(scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	empty := make(map[string]codec.Primitive)
	if err := f.persist(scope, empty); err != nil {
		return err
	}
	f.cache[scope] = empty
	return nil
}

func (f *fileImpl) Keys(scope string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.scope(scope)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Scopes lists every scope with a non-empty file in the directory.
func (f *fileImpl) Scopes() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", f.dir, err)
	}

	scopes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		scope, ok := f.format.scopeOf(entry.Name())
		if !ok {
			continue
		}
		values, err := f.scope(scope)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			scopes = append(scopes, scope)
		}
	}
	slices.Sort(scopes)
	return scopes, nil
}

func cloneValues(values map[string]codec.Primitive) map[string]codec.Primitive {
	next := make(map[string]codec.Primitive, len(values)+1)
	for k, v := range values {
		next[k] = v
	}
	return next
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// Save is not supported, the scope files are the persistent form.
func (f *fileImpl) Save(io.Writer) error {
	return db.ErrUnsupported
}

// Load is not supported, the scope files are the persistent form.
func (f *fileImpl) Load(io.Reader) error {
	return db.ErrUnsupported
}

// --------------------------------------------------------------------------
// File watching
// --------------------------------------------------------------------------

func (f *fileImpl) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filestore: creating watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("filestore: watching %s: %w", f.dir, err)
	}

	f.watcher = watcher
	f.watchDone = make(chan struct{})
	go f.watchLoop()
	return nil
}

func (f *fileImpl) watchLoop() {
	defer close(f.watchDone)

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			Logger.Warningf("watcher error on %s: %v", f.dir, err)
		}
	}
}

// handleEvent drops the cached copy of the scope the event refers to, so the
// next access reads the file again.
func (f *fileImpl) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	scope, ok := f.format.scopeOf(filepath.Base(event.Name))
	if !ok {
		return
	}

	f.mu.Lock()
	delete(f.cache, scope)
	f.mu.Unlock()

	f.reloads.Add(1)
	Logger.Debugf("scope %q changed on disk (%s)", scope, event.Op)
}

// --------------------------------------------------------------------------
// Meta Operations
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureSet | db.FeatureGet | db.FeatureDelete | db.FeatureHas |
	db.FeatureClear | db.FeatureList | db.FeatureNativeAll

func (f *fileImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (f *fileImpl) GetInfo() db.DatabaseInfo {
	var size int64
	var files int
	var lastModified time.Time

	if entries, err := os.ReadDir(f.dir); err == nil {
		for _, entry := range entries {
			if _, ok := f.format.scopeOf(entry.Name()); !ok || entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files++
			size += info.Size()
			if info.ModTime().After(lastModified) {
				lastModified = info.ModTime()
			}
		}
	}

	f.mu.Lock()
	cached := len(f.cache)
	f.mu.Unlock()

	metadata := map[string]string{
		"directory":     f.dir,
		"format":        string(f.format),
		"files":         fmt.Sprintf("%d", files),
		"cached_scopes": fmt.Sprintf("%d", cached),
		"writes":        fmt.Sprintf("%d", f.writes.Load()),
		"watching":      fmt.Sprintf("%t", f.watcher != nil),
		"invalidations": fmt.Sprintf("%d", f.reloads.Load()),
	}
	if !lastModified.IsZero() {
		metadata["last_modified"] = lastModified.Format(time.RFC3339)
	}

	features := make([]db.Feature, 0, len(db.AllFeatures))
	for _, feature := range db.AllFeatures {
		if f.SupportsFeature(feature) {
			features = append(features, feature)
		}
	}

	return db.DatabaseInfo{
		SizeBytes:         int(size),
		DbType:            db.ImplFile,
		SupportedFeatures: features,
		Metadata:          metadata,
	}
}

func (f *fileImpl) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.Close()
	<-f.watchDone
	return err
}
