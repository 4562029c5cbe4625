package codec

import (
	"fmt"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Tick arithmetic
// --------------------------------------------------------------------------

// A tick is 100 nanoseconds. Tick counts are measured from 0001-01-01T00:00:00.
const (
	TicksPerSecond = 10_000_000
	nanosPerTick   = 100

	// seconds between 0001-01-01 and 1970-01-01
	unixEpochOffsetSeconds = 62_135_596_800

	// MaxTicks is the tick count of 9999-12-31T23:59:59.9999999
	MaxTicks int64 = 3_155_378_975_999_999_999
)

// TicksFromTime returns the number of ticks between 0001-01-01T00:00:00Z and t.
// Sub-tick precision is truncated.
func TicksFromTime(t time.Time) (int64, error) {
	sec := t.Unix() + unixEpochOffsetSeconds
	if sec < 0 || sec > MaxTicks/TicksPerSecond {
		return 0, newError(ErrCOutOfRange, KindTime, fmt.Sprintf("%s is outside the tick range", t.UTC().Format(time.RFC3339Nano)), nil)
	}
	ticks := sec*TicksPerSecond + int64(t.Nanosecond()/nanosPerTick)
	if ticks > MaxTicks {
		return 0, newError(ErrCOutOfRange, KindTime, fmt.Sprintf("%s is outside the tick range", t.UTC().Format(time.RFC3339Nano)), nil)
	}
	return ticks, nil
}

// TimeFromTicks returns the UTC instant ticks after 0001-01-01T00:00:00Z.
func TimeFromTicks(ticks int64) (time.Time, error) {
	if ticks < 0 || ticks > MaxTicks {
		return time.Time{}, newError(ErrCOutOfRange, KindTime, fmt.Sprintf("tick count %d is out of range", ticks), nil)
	}
	sec := ticks/TicksPerSecond - unixEpochOffsetSeconds
	nsec := (ticks % TicksPerSecond) * nanosPerTick
	return time.Unix(sec, nsec).UTC(), nil
}

// --------------------------------------------------------------------------
// Stored tick encoding
// --------------------------------------------------------------------------

// EncodeTicks returns the stored representation of t: its UTC tick count, negated.
// The result is always negative. Instants at or before 0001-01-01T00:00:00Z
// can not be encoded because their negation would not be negative.
func EncodeTicks(t time.Time) (int64, error) {
	ticks, err := TicksFromTime(t)
	if err != nil {
		return 0, err
	}
	if ticks == 0 {
		return 0, newError(ErrCOutOfRange, KindTime, "the tick epoch itself can not be encoded", nil)
	}
	return -ticks, nil
}

// DecodeTicks interprets a stored tick count.
//
// Negative values are the current scheme: UTC epoch plus -raw ticks.
// Non-negative values were written by the legacy scheme, which stored the wall
// clock reading without a zone. They are decoded as that wall clock reading in loc.
func DecodeTicks(raw int64, loc *time.Location) (time.Time, error) {
	if raw < 0 {
		if raw == math.MinInt64 {
			return time.Time{}, newError(ErrCOutOfRange, KindTime, "tick count overflows", nil)
		}
		return TimeFromTicks(-raw)
	}

	wall, err := TimeFromTicks(raw)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc), nil
}
