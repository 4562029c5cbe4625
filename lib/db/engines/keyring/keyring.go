package keyring

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	zkr "github.com/zalando/go-keyring"
)

var Logger = logger.GetLogger("keyring")

const (
	// DefaultService is the service name used when Options.Service is empty
	DefaultService = "dprefs"

	// DisableEnv turns the keyring off for headless machines and CI when set to "1"
	DisableEnv = "DPREFS_KEYRING_DISABLED"
)

// Options configures the keyring store
type Options struct {
	Service string // Service name of the default scope, named scopes append "/<scope>"
}

// keyringImpl maps a scope to a keyring service and a key to an account.
// The OS credential stores only hold strings, every primitive is stored in
// its textual form.
type keyringImpl struct {
	service string

	// mu serializes the calls into the credential store
	mu     sync.Mutex
	writes atomic.Uint64
}

// NewKeyringDB returns a store backed by the OS credential store
// (Keychain, Secret Service or Windows Credential Manager).
func NewKeyringDB(opts *Options) db.PrefDB {
	service := DefaultService
	if opts != nil && opts.Service != "" {
		service = opts.Service
	}
	return &keyringImpl{service: service}
}

// Available reports whether the OS credential store is functional. It is
// false if DPREFS_KEYRING_DISABLED=1 is set, otherwise the store is probed
// with a write, read and delete cycle.
func Available() bool {
	if os.Getenv(DisableEnv) == "1" {
		return false
	}
	const probeService, probeAccount = "dprefs-keyring-probe", "probe"
	if err := zkr.Set(probeService, probeAccount, "ok"); err != nil {
		Logger.Debugf("keyring probe failed: %v", err)
		return false
	}
	_ = zkr.Delete(probeService, probeAccount)
	return true
}

func (k *keyringImpl) serviceOf(scope string) string {
	if scope == "" {
		return k.service
	}
	return k.service + "/" + scope
}

// --------------------------------------------------------------------------
// Basic Operations
// --------------------------------------------------------------------------

func (k *keyringImpl) Set(scope, key string, value codec.Primitive) (bool, error) {
	if !value.Valid() {
		return false, fmt.Errorf("invalid primitive type %d", value.Type)
	}
	text := codec.Coerce(value, codec.StringsOnly).Str
	service := k.serviceOf(scope)

	k.mu.Lock()
	defer k.mu.Unlock()

	old, err := zkr.Get(service, key)
	switch {
	case err == nil && old == text:
		return false, nil
	case err != nil && !errors.Is(err, zkr.ErrNotFound):
		return false, fmt.Errorf("keychain get: %w", err)
	}

	if err := zkr.Set(service, key, text); err != nil {
		return false, fmt.Errorf("keychain set: %w", err)
	}
	k.writes.Add(1)
	return true, nil
}

func (k *keyringImpl) Get(scope, key string) (codec.Primitive, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	text, err := zkr.Get(k.serviceOf(scope), key)
	if errors.Is(err, zkr.ErrNotFound) {
		return codec.Primitive{}, false, nil
	}
	if err != nil {
		return codec.Primitive{}, false, fmt.Errorf("keychain get: %w", err)
	}
	return codec.StringPrimitive(text), true, nil
}

func (k *keyringImpl) Delete(scope, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := zkr.Delete(k.serviceOf(scope), key); err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

func (k *keyringImpl) Has(scope, key string) (bool, error) {
	_, ok, err := k.Get(scope, key)
	return ok, err
}

func (k *keyringImpl) Clear(scope string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := zkr.DeleteAll(k.serviceOf(scope)); err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("keychain delete all: %w", err)
	}
	return nil
}

// Keys is not supported, credential stores can not enumerate accounts portably.
func (k *keyringImpl) Keys(string) ([]string, error) {
	return nil, db.ErrUnsupported
}

// Scopes is not supported, credential stores can not enumerate services portably.
func (k *keyringImpl) Scopes() ([]string, error) {
	return nil, db.ErrUnsupported
}

func (k *keyringImpl) Save(io.Writer) error {
	return db.ErrUnsupported
}

func (k *keyringImpl) Load(io.Reader) error {
	return db.ErrUnsupported
}

// --------------------------------------------------------------------------
// Meta Operations
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureSet | db.FeatureGet | db.FeatureDelete | db.FeatureHas | db.FeatureClear

func (k *keyringImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (k *keyringImpl) GetInfo() db.DatabaseInfo {
	features := make([]db.Feature, 0, len(db.AllFeatures))
	for _, feature := range db.AllFeatures {
		if k.SupportsFeature(feature) {
			features = append(features, feature)
		}
	}

	return db.DatabaseInfo{
		DbType:            db.ImplKeyring,
		SupportedFeatures: features,
		Metadata: map[string]string{
			"service": k.service,
			"writes":  fmt.Sprintf("%d", k.writes.Load()),
		},
	}
}

func (k *keyringImpl) Close() error {
	return nil
}
