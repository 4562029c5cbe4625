// Package store provides the typed settings facade. ISettings wraps one
// db.PrefDB, encodes typed values with the codec before they reach the
// database and decodes them on the way back.
//
// The package focuses on:
//   - A small interface for getting, setting, removing and listing typed settings
//   - Safe by default reads: a failed read returns the supplied default
//   - One explicit error policy for database failures
//
// Key Components:
//
//   - ISettings Interface: GetValueOrDefault, AddOrUpdateValue, Remove, Clear,
//     Contains, Export and Import. There is no global instance: callers build
//     one with NewSettings and pass it around. Every call takes one lock per
//     instance, so concurrent callers block instead of interleaving.
//
//   - Typed accessors: Get[T] and Set[T] pick the kind from the static type
//     of the default or value. GetBool, SetTime, SetStringPtr and friends wrap
//     them for plain Go types.
//
//   - Error System: Every error is a *Error with a RetCode. Errors unwrap to
//     their cause, so errors.Is(err, db.ErrUnsupported) and the codec
//     predicates work on facade errors.
//
// Behavior:
//
//   - Reading an absent key returns the default without touching the codec.
//     A read or decode failure returns the default together with the error.
//   - Values stored by older versions in a legacy form are rewritten in their
//     canonical form when read (Options.ResaveLegacyValues).
//   - Writing a codec.Null of a nullable kind (string, uuid) removes the key.
//     A null of any other kind is rejected before the database is touched.
//   - Database failures during Remove and Clear are returned when
//     Options.PropagateStoreErrors is set, otherwise they are logged and
//     dropped. Failures of reads and writes are always returned.
//
// Metrics:
//
//	Every operation updates dprefs_operations_total, dprefs_operation_errors_total
//	and the dprefs_operation_duration_seconds histogram (label op) in the
//	default github.com/VictoriaMetrics/metrics set.
package store
