package testing

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
)

// DBFactory is a function that creates a new, empty instance of a PrefDB implementation
type DBFactory func() db.PrefDB

// RunPrefDBTests runs a comprehensive test suite for a PrefDB implementation.
func RunPrefDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("ChangeDetection", func(t *testing.T) {
			testChangeDetection(t, factory())
		})

		t.Run("NativePrimitives", func(t *testing.T) {
			testNativePrimitives(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("ScopeIsolation", func(t *testing.T) {
			testScopeIsolation(t, factory())
		})

		t.Run("ClearScoping", func(t *testing.T) {
			testClearScoping(t, factory())
		})

		t.Run("KeysAndScopes", func(t *testing.T) {
			testKeysAndScopes(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.PrefDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustSet stores value and fails the test on error
func mustSet(t testing.TB, database db.PrefDB, scope, key string, value codec.Primitive) bool {
	t.Helper()
	changed, err := database.Set(scope, key, value)
	if err != nil {
		t.Fatalf("Set(%q, %q, %v) failed: %v", scope, key, value, err)
	}
	return changed
}

// mustGet loads a value and fails the test on error
func mustGet(t testing.TB, database db.PrefDB, scope, key string) (codec.Primitive, bool) {
	t.Helper()
	value, ok, err := database.Get(scope, key)
	if err != nil {
		t.Fatalf("Get(%q, %q) failed: %v", scope, key, err)
	}
	return value, ok
}

// mustHas checks a key and fails the test on error
func mustHas(t testing.TB, database db.PrefDB, scope, key string) bool {
	t.Helper()
	ok, err := database.Has(scope, key)
	if err != nil {
		t.Fatalf("Has(%q, %q) failed: %v", scope, key, err)
	}
	return ok
}

// nativeSamples returns one primitive of every type the database stores natively
func nativeSamples(database db.PrefDB) []codec.Primitive {
	all := []codec.Primitive{
		codec.BoolPrimitive(true),
		codec.Int32Primitive(math.MinInt32),
		codec.Int64Primitive(math.MaxInt64),
		codec.Float32Primitive(-1.25),
		codec.Float64Primitive(math.MaxFloat64),
		codec.StringPrimitive("text value"),
	}

	native := db.NativeFunc(database)
	samples := make([]codec.Primitive, 0, len(all))
	for _, p := range all {
		if native(p.Type) {
			samples = append(samples, p)
		}
	}
	return samples
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := codec.StringPrimitive("test-value1")
	testValue2 := codec.StringPrimitive("test-value2")

	mustSet(t, database, "", testKey, testValue1)

	result, exists := mustGet(t, database, "", testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !result.Equal(testValue1) {
		t.Errorf("Expected value %v, got %v", testValue1, result)
	}

	mustSet(t, database, "", testKey, testValue2)

	result, exists = mustGet(t, database, "", testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !result.Equal(testValue2) {
		t.Errorf("Expected value %v, got %v", testValue2, result)
	}

	_, exists = mustGet(t, database, "", "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	_, exists = mustGet(t, database, "nonexistent-scope", testKey)
	if exists {
		t.Errorf("Expected key in nonexistent scope to return exists=false")
	}
}

func testChangeDetection(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	value := codec.StringPrimitive("10")

	if !mustSet(t, database, "", "counter", value) {
		t.Errorf("First Set should report a change")
	}
	if mustSet(t, database, "", "counter", value) {
		t.Errorf("Setting the same value again should not report a change")
	}
	if !mustSet(t, database, "", "counter", codec.StringPrimitive("11")) {
		t.Errorf("Setting a different value should report a change")
	}

	// same payload text but a different primitive type is a change
	native := db.NativeFunc(database)
	if native(codec.PInt64) {
		if !mustSet(t, database, "", "counter", codec.Int64Primitive(11)) {
			t.Errorf("Changing the primitive type should report a change")
		}
		if mustSet(t, database, "", "counter", codec.Int64Primitive(11)) {
			t.Errorf("Setting the same int64 again should not report a change")
		}
	}
}

func testNativePrimitives(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	for i, p := range nativeSamples(database) {
		key := fmt.Sprintf("native-%d", i)
		mustSet(t, database, "", key, p)

		result, exists := mustGet(t, database, "", key)
		if !exists {
			t.Errorf("Expected key %s to exist", key)
			continue
		}
		if !result.Equal(p) {
			t.Errorf("Expected %v to be stored natively, got %v", p, result)
		}
	}
}

func testDelete(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureDelete)
	requireFeature(t, database, db.FeatureHas)

	testKey := "delete-key"
	mustSet(t, database, "", testKey, codec.StringPrimitive("delete-value"))

	if !mustHas(t, database, "", testKey) {
		t.Errorf("Key should exist before deletion")
	}

	if err := database.Delete("", testKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if mustHas(t, database, "", testKey) {
		t.Errorf("Key should not exist after deletion")
	}

	// deleting again and deleting unknown keys is not an error
	if err := database.Delete("", testKey); err != nil {
		t.Errorf("Second Delete should be a no-op, got %v", err)
	}
	if err := database.Delete("nonexistent-scope", "nonexistent-key"); err != nil {
		t.Errorf("Delete of a nonexistent key should be a no-op, got %v", err)
	}

	// a deleted key can be written again
	if !mustSet(t, database, "", testKey, codec.StringPrimitive("delete-value")) {
		t.Errorf("Set after Delete should report a change")
	}
}

func testHas(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureHas)

	if mustHas(t, database, "", "has-key") {
		t.Errorf("Key should not exist before Set")
	}

	mustSet(t, database, "", "has-key", codec.StringPrimitive(""))

	if !mustHas(t, database, "", "has-key") {
		t.Errorf("Key with an empty value should exist")
	}
	if mustHas(t, database, "other", "has-key") {
		t.Errorf("Key should not exist in another scope")
	}
}

func testScopeIsolation(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	scopes := []string{"", "app", "app.user", "user settings"}
	for _, scope := range scopes {
		mustSet(t, database, scope, "theme", codec.StringPrimitive("theme of "+scope))
	}

	for _, scope := range scopes {
		result, exists := mustGet(t, database, scope, "theme")
		if !exists {
			t.Errorf("Expected key theme in scope %q", scope)
			continue
		}
		if result.Str != "theme of "+scope {
			t.Errorf("Scope %q returned value of another scope: %v", scope, result)
		}
	}
}

func testClearScoping(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureHas)
	requireFeature(t, database, db.FeatureClear)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key-%d", i)
		mustSet(t, database, "", key, codec.StringPrimitive("default"))
		mustSet(t, database, "a", key, codec.StringPrimitive("a"))
		mustSet(t, database, "b", key, codec.StringPrimitive("b"))
	}

	if err := database.Clear("a"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key-%d", i)
		if mustHas(t, database, "a", key) {
			t.Errorf("Key %s should be gone from the cleared scope", key)
		}
		if !mustHas(t, database, "", key) {
			t.Errorf("Key %s of the default scope should survive Clear(a)", key)
		}
		if !mustHas(t, database, "b", key) {
			t.Errorf("Key %s of scope b should survive Clear(a)", key)
		}
	}

	// clearing an empty or unknown scope is not an error
	if err := database.Clear("a"); err != nil {
		t.Errorf("Clearing an empty scope failed: %v", err)
	}
	if err := database.Clear("nonexistent-scope"); err != nil {
		t.Errorf("Clearing a nonexistent scope failed: %v", err)
	}

	if err := database.Clear(""); err != nil {
		t.Fatalf("Clear of the default scope failed: %v", err)
	}
	if mustHas(t, database, "", "key-0") {
		t.Errorf("Default scope should be empty after Clear")
	}
	if !mustHas(t, database, "b", "key-0") {
		t.Errorf("Scope b should survive clearing the default scope")
	}
}

func testKeysAndScopes(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureList)

	mustSet(t, database, "", "b", codec.StringPrimitive("1"))
	mustSet(t, database, "", "a", codec.StringPrimitive("2"))
	mustSet(t, database, "", "c", codec.StringPrimitive("3"))
	mustSet(t, database, "x", "only", codec.StringPrimitive("4"))
	mustSet(t, database, "empty", "gone", codec.StringPrimitive("5"))

	if err := database.Delete("empty", "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	keys, err := database.Keys("")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Errorf("Expected sorted keys [a b c], got %v", keys)
	}

	keys, err = database.Keys("nonexistent-scope")
	if err != nil {
		t.Fatalf("Keys of nonexistent scope failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys for nonexistent scope, got %v", keys)
	}

	scopes, err := database.Scopes()
	if err != nil {
		t.Fatalf("Scopes failed: %v", err)
	}
	if !slices.Equal(scopes, []string{"", "x"}) {
		t.Errorf("Expected non-empty scopes [\"\" x], got %q", scopes)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database1 := factory()
	defer database1.Close()

	requireFeature(t, database1, db.FeatureSave)
	requireFeature(t, database1, db.FeatureLoad)

	samples := nativeSamples(database1)
	for i, p := range samples {
		mustSet(t, database1, "", fmt.Sprintf("key-%d", i), p)
		mustSet(t, database1, "scope", fmt.Sprintf("key-%d", i), p)
	}

	var buf bytes.Buffer
	if err := database1.Save(&buf); err != nil {
		t.Fatalf("Failed to save database: %v", err)
	}

	database2 := factory()
	defer database2.Close()

	// pre-existing content is replaced
	mustSet(t, database2, "", "stale", codec.StringPrimitive("stale"))

	if err := database2.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Failed to load database: %v", err)
	}

	for i, p := range samples {
		for _, scope := range []string{"", "scope"} {
			key := fmt.Sprintf("key-%d", i)
			result, exists := mustGet(t, database2, scope, key)
			if !exists {
				t.Errorf("Key %q/%s should exist after load", scope, key)
				continue
			}
			if !result.Equal(p) {
				t.Errorf("Expected %v for %q/%s after load, got %v", p, scope, key, result)
			}
		}
	}

	if _, exists := mustGet(t, database2, "", "stale"); exists {
		t.Errorf("Load should replace existing entries")
	}

	// garbage is rejected
	if err := database2.Load(strings.NewReader("definitely not a snapshot")); err == nil {
		t.Errorf("Loading an invalid snapshot should fail")
	}
}

func testEdgeCases(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	cases := []struct {
		name  string
		scope string
		key   string
		value codec.Primitive
	}{
		{"EmptyValue", "", "empty-value", codec.StringPrimitive("")},
		{"UnicodeKey", "", "schlüssel-ключ-キー", codec.StringPrimitive("unicode")},
		{"UnicodeValue", "", "unicode-value", codec.StringPrimitive("wert-значение-値 ✓")},
		{"SpecialCharacters", "", "key with spaces/and:colons", codec.StringPrimitive("line1\nline2\t\"quoted\"")},
		{"ScopeWithSeparators", "com.example/app", "key", codec.StringPrimitive("scoped")},
		{"LargeValue", "", "large-value", codec.StringPrimitive(strings.Repeat("x", 2048))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mustSet(t, database, tc.scope, tc.key, tc.value)

			result, exists := mustGet(t, database, tc.scope, tc.key)
			if !exists {
				t.Fatalf("Expected key %q in scope %q to exist", tc.key, tc.scope)
			}
			if !result.Equal(tc.value) {
				t.Errorf("Expected %v, got %v", tc.value, result)
			}
		})
	}
}

func testConcurrency(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	const (
		goroutines = 8
		perRoutine = 25
	)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			scope := fmt.Sprintf("scope-%d", g%2)
			for i := 0; i < perRoutine; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i)
				if _, err := database.Set(scope, key, codec.StringPrimitive(key)); err != nil {
					errs <- err
					return
				}
				if _, _, err := database.Get(scope, key); err != nil {
					errs <- err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Concurrent operation failed: %v", err)
	}

	for g := 0; g < goroutines; g++ {
		scope := fmt.Sprintf("scope-%d", g%2)
		for i := 0; i < perRoutine; i++ {
			key := fmt.Sprintf("key-%d-%d", g, i)
			result, exists := mustGet(t, database, scope, key)
			if !exists || result.Str != key {
				t.Errorf("Expected %s to hold its own key after concurrent writes, got %v (exists=%v)", key, result, exists)
			}
		}
	}
}

// testRealisticUsage mirrors how an application uses a preference store:
// read a counter, increment it, write it back, clear on logout.
func testRealisticUsage(t *testing.T, database db.PrefDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureClear)

	const scope = "session"
	read := func() int {
		p, ok := mustGet(t, database, scope, "launches")
		if !ok {
			return 0
		}
		var n int
		if _, err := fmt.Sscan(p.Text(), &n); err != nil {
			t.Fatalf("stored counter %v is not a number: %v", p, err)
		}
		return n
	}

	for i := 0; i < 10; i++ {
		mustSet(t, database, scope, "launches", codec.StringPrimitive(fmt.Sprint(read()+1)))
	}
	mustSet(t, database, "", "launches-total", codec.StringPrimitive("10"))

	if n := read(); n != 10 {
		t.Errorf("Expected counter 10, got %d", n)
	}

	if err := database.Clear(scope); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if n := read(); n != 0 {
		t.Errorf("Expected counter to fall back to 0 after Clear, got %d", n)
	}
	if _, exists := mustGet(t, database, "", "launches-total"); !exists {
		t.Errorf("Default scope should be untouched by clearing %q", scope)
	}
}
