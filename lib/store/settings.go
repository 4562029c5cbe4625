package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/serializer"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// Options configures the settings facade
type Options struct {
	// PropagateStoreErrors returns database failures of Remove and Clear to the caller.
	// When false they are logged and swallowed.
	PropagateStoreErrors bool
	// ResaveLegacyValues rewrites values found in a legacy encoding in their canonical form when read.
	ResaveLegacyValues bool
	// Codec configures value encoding (nil = codec.DefaultOptions())
	Codec *codec.Options
}

// DefaultOptions returns the default facade options
func DefaultOptions() *Options {
	return &Options{
		PropagateStoreErrors: true,
		ResaveLegacyValues:   true,
		Codec:                codec.DefaultOptions(),
	}
}

type settingsImpl struct {
	mu     sync.Mutex
	db     db.PrefDB
	codec  *codec.Codec
	native codec.NativeFunc
	opts   Options
}

// NewSettings creates the settings facade for database with the given options (optional).
// The facade takes ownership of the database, Close closes it.
func NewSettings(database db.PrefDB, opts *Options) ISettings {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &settingsImpl{
		db:     database,
		codec:  codec.NewCodec(opts.Codec),
		native: db.NativeFunc(database),
		opts:   *opts,
	}
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// Operation names used as the op label
const (
	opGet      = "get"
	opSet      = "set"
	opRemove   = "remove"
	opClear    = "clear"
	opContains = "contains"
	opExport   = "export"
	opImport   = "import"
)

// observe records one finished operation
func observe(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dprefs_operations_total{op=%q}`, op)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dprefs_operation_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dprefs_operation_errors_total{op=%q}`, op)).Inc()
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *settingsImpl) GetValueOrDefault(key string, defaultValue codec.Value, scope string) (value codec.Value, err error) {
	defer func(start time.Time) { observe(opGet, start, err) }(time.Now())

	kind, err := checkDefault(defaultValue)
	if err != nil {
		return defaultValue, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.SupportsFeature(db.FeatureGet) {
		return defaultValue, NewError(RetCUnsupportedOperation, "Get operation is not supported", db.ErrUnsupported)
	}

	p, ok, dbErr := s.db.Get(scope, key)
	if dbErr != nil {
		return defaultValue, storeError(fmt.Sprintf("reading %q", key), dbErr)
	}
	if !ok {
		return defaultValue, nil
	}

	v, stale, decErr := s.codec.Decode(kind, p)
	if decErr != nil {
		return defaultValue, codecError(fmt.Sprintf("decoding %q", key), decErr)
	}

	if stale && s.opts.ResaveLegacyValues {
		s.resave(scope, key, v)
	}
	return v, nil
}

// checkDefault returns the kind to decode for a default value
func checkDefault(defaultValue codec.Value) (codec.Kind, error) {
	if defaultValue == nil {
		return codec.KindInvalid, NewError(RetCNullValue, "default value is nil", nil)
	}
	kind := defaultValue.Kind()
	if !kind.Valid() {
		return codec.KindInvalid, NewError(RetCUnsupportedType, fmt.Sprintf("kind %s can not be stored", kind), nil)
	}
	if _, isNull := defaultValue.(codec.Null); isNull && !kind.Nullable() {
		return codec.KindInvalid, NewError(RetCNullValue, fmt.Sprintf("a %s default can not be null", kind), nil)
	}
	return kind, nil
}

// resave writes a value that was read in a legacy encoding in its canonical form.
// Failures are logged, the read itself already succeeded. Must be called with mu held.
func (s *settingsImpl) resave(scope, key string, v codec.Value) {
	p, err := s.codec.Encode(v, s.native)
	if err == nil {
		_, err = s.db.Set(scope, key, p)
	}
	if err != nil {
		Logger.Warningf("re-saving legacy value %q in scope %q failed: %v", key, scope, err)
		return
	}
	Logger.Debugf("re-saved legacy value %q in scope %q as %s", key, scope, p.Type)
}

func (s *settingsImpl) AddOrUpdateValue(key string, value codec.Value, scope string) (changed bool, err error) {
	defer func(start time.Time) { observe(opSet, start, err) }(time.Now())

	if value == nil {
		return false, NewError(RetCNullValue, fmt.Sprintf("value for %q is nil", key), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if null, isNull := value.(codec.Null); isNull {
		switch {
		case !null.Of.Valid():
			return false, NewError(RetCUnsupportedType, fmt.Sprintf("kind %s can not be stored", null.Of), nil)
		case !null.Of.Nullable():
			return false, NewError(RetCNullValue, fmt.Sprintf("a %s value for %q can not be null", null.Of, key), nil)
		}
		if err := s.remove(key, scope); err != nil {
			return false, err
		}
		return true, nil
	}

	if !s.db.SupportsFeature(db.FeatureSet) {
		return false, NewError(RetCUnsupportedOperation, "Set operation is not supported", db.ErrUnsupported)
	}

	p, encErr := s.codec.Encode(value, s.native)
	if encErr != nil {
		return false, codecError(fmt.Sprintf("encoding %q", key), encErr)
	}

	changed, dbErr := s.db.Set(scope, key, p)
	if dbErr != nil {
		return false, storeError(fmt.Sprintf("writing %q", key), dbErr)
	}
	return changed, nil
}

func (s *settingsImpl) Remove(key, scope string) (err error) {
	defer func(start time.Time) { observe(opRemove, start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(key, scope)
}

// remove deletes key, applying the error policy. Must be called with mu held.
func (s *settingsImpl) remove(key, scope string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return NewError(RetCUnsupportedOperation, "Delete operation is not supported", db.ErrUnsupported)
	}
	if err := s.db.Delete(scope, key); err != nil {
		return s.bestEffort(storeError(fmt.Sprintf("removing %q", key), err))
	}
	return nil
}

func (s *settingsImpl) Clear(scope string) (err error) {
	defer func(start time.Time) { observe(opClear, start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.SupportsFeature(db.FeatureClear) {
		return NewError(RetCUnsupportedOperation, "Clear operation is not supported", db.ErrUnsupported)
	}
	if err := s.db.Clear(scope); err != nil {
		return s.bestEffort(storeError(fmt.Sprintf("clearing scope %q", scope), err))
	}
	return nil
}

// bestEffort returns err if store errors propagate, otherwise it logs and drops it
func (s *settingsImpl) bestEffort(err *Error) error {
	if s.opts.PropagateStoreErrors {
		return err
	}
	Logger.Warningf("ignoring store failure: %v", err)
	return nil
}

func (s *settingsImpl) Contains(key, scope string) (ok bool, err error) {
	defer func(start time.Time) { observe(opContains, start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, NewError(RetCUnsupportedOperation, "Has operation is not supported", db.ErrUnsupported)
	}
	ok, dbErr := s.db.Has(scope, key)
	if dbErr != nil {
		return false, storeError(fmt.Sprintf("looking up %q", key), dbErr)
	}
	return ok, nil
}

// --------------------------------------------------------------------------
// Export / Import
// --------------------------------------------------------------------------

func (s *settingsImpl) Export() (snapshot serializer.Snapshot, err error) {
	defer func(start time.Time) { observe(opExport, start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.SupportsFeature(db.FeatureList | db.FeatureGet) {
		return serializer.Snapshot{}, NewError(RetCUnsupportedOperation, "listing is not supported", db.ErrUnsupported)
	}

	scopes, dbErr := s.db.Scopes()
	if dbErr != nil {
		return serializer.Snapshot{}, storeError("listing scopes", dbErr)
	}

	snapshot.Version = serializer.SnapshotVersion
	for _, scope := range scopes {
		keys, dbErr := s.db.Keys(scope)
		if dbErr != nil {
			return serializer.Snapshot{}, storeError(fmt.Sprintf("listing scope %q", scope), dbErr)
		}
		for _, key := range keys {
			p, ok, dbErr := s.db.Get(scope, key)
			if dbErr != nil {
				return serializer.Snapshot{}, storeError(fmt.Sprintf("reading %q", key), dbErr)
			}
			// deleted between listing and reading
			if !ok {
				continue
			}
			snapshot.Records = append(snapshot.Records, serializer.Record{Scope: scope, Key: key, Value: p})
		}
	}
	return snapshot, nil
}

func (s *settingsImpl) Import(snapshot serializer.Snapshot) (imported int, err error) {
	defer func(start time.Time) { observe(opImport, start, err) }(time.Now())

	if snapshot.Version > serializer.SnapshotVersion {
		return 0, NewError(RetCInvalidValue, fmt.Sprintf("unsupported snapshot version %d", snapshot.Version), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.SupportsFeature(db.FeatureSet) {
		return 0, NewError(RetCUnsupportedOperation, "Set operation is not supported", db.ErrUnsupported)
	}

	for _, r := range snapshot.Records {
		if !r.Value.Valid() {
			return imported, NewError(RetCInvalidValue, fmt.Sprintf("record %q in scope %q has no valid primitive", r.Key, r.Scope), nil)
		}
		// primitives the target can not hold natively keep their textual form
		p := codec.Coerce(r.Value, s.native)
		if _, dbErr := s.db.Set(r.Scope, r.Key, p); dbErr != nil {
			return imported, storeError(fmt.Sprintf("importing %q", r.Key), dbErr)
		}
		imported++
	}
	return imported, nil
}

// --------------------------------------------------------------------------
// Meta Operations
// --------------------------------------------------------------------------

func (s *settingsImpl) GetDBInfo() (db.DatabaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.GetInfo(), nil
}

func (s *settingsImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return storeError("closing database", err)
	}
	return nil
}
