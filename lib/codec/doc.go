// Package codec converts typed setting values into the primitives a preference
// store can persist, and back. It performs no I/O.
//
// The package focuses on:
//   - A closed set of value kinds (bool, int32, int64, float32, float64,
//     decimal, string, time, uuid) modelled as the sealed Value sum type
//   - Store independent encoding: kinds whose natural primitive a store can
//     not hold natively are written in a culture independent textual form
//   - Lenient decoding of values written by older stores
//
// Key Components:
//
//   - Value: One Go type per kind (Bool, Int32, ..., UUID) plus Null, the
//     typed absence of a value. Writing a Null of a nullable kind (string,
//     uuid) is a removal, any other Null is an error.
//
//   - Primitive: The tagged value a store persists. Exactly one of bool,
//     int32, int64, float32, float64 or string.
//
//   - Codec: Encode maps a Value onto a Primitive given the target store's
//     native types (NativeFunc). Decode maps a Primitive back onto the
//     requested Kind and reports whether the stored form is stale.
//
// Encoding Rules:
//
//   - float64, decimal and uuid are always stored as strings. Floats use the
//     shortest representation that parses back to the same bits.
//   - Times are stored as a negative int64: the UTC tick count (100ns units
//     since 0001-01-01T00:00:00Z), negated. A non-negative stored tick count
//     was written by the legacy scheme, which recorded the local wall clock.
//     Such values are decoded as that wall clock in Options.LegacyLocation.
//     Sub-tick precision is lost.
//
// Decoding Fallbacks:
//
//   - A float64 that is out of range snaps to +/-math.MaxFloat64. The
//     canonical MaxValue/MinValue strings (including the 15 digit form
//     "1.79769313486232E+308") are recognized.
//   - float64 and decimal values that a store kept as native integers decode
//     with stale = true so that callers can re-save them as strings.
//   - An unparsable UUID decodes to uuid.Nil.
//
// Usage Example:
//
//	c := codec.NewCodec(nil)
//	p, err := c.Encode(codec.Float64(1.5), codec.AllNative)
//	// p == codec.StringPrimitive("1.5")
//	v, stale, err := c.Decode(codec.KindFloat64, p)
package codec
