package util

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestHashStringSeed tests that the seed changes the hash but not its determinism
func TestHashStringSeed(t *testing.T) {
	a := HashString("theme", 1)
	b := HashString("theme", 1)
	c := HashString("theme", 2)

	if a != b {
		t.Errorf("same input and seed should hash equally, got %d and %d", a, b)
	}
	if a == c {
		t.Errorf("different seeds should produce different hashes, both were %d", a)
	}
}

// TestShardIndexRange tests that every hash maps into [0, n)
func TestShardIndexRange(t *testing.T) {
	seed := GenerateSeed()
	for _, n := range []int{0, 1, 3, 8, 17} {
		for i := 0; i < 1000; i++ {
			idx := ShardIndex(HashString(string(rune(i))+"key", seed), n)
			if idx < 0 || (n > 0 && idx >= n) || (n <= 1 && idx != 0) {
				t.Fatalf("ShardIndex out of range for n=%d: %d", n, idx)
			}
		}
	}
}

// TestNewStats tests the basic statistics
func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if s.Mean != 5 {
		t.Errorf("expected mean 5, got %f", s.Mean)
	}
	if s.StdDeviation != 2 {
		t.Errorf("expected std deviation 2, got %f", s.StdDeviation)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("expected min 2 and max 9, got %f and %f", s.Min, s.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("expected zero stats for no values, got %+v", empty)
	}
}

// TestDistributionQuality tests that an even distribution rates higher than a skewed one
func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	skewed := NewDistributionStats([]float64{40, 0, 0, 0})

	if math.Abs(even.DistributionQuality-1) > 1e-9 {
		t.Errorf("expected quality 1 for an even distribution, got %f", even.DistributionQuality)
	}
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed distribution rated %f, even %f", skewed.DistributionQuality, even.DistributionQuality)
	}
}

// TestSizeHistogram tests sample counting and the estimators
func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 {
		t.Error("empty histogram should estimate 0")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(8)
	}
	for i := 0; i < 10; i++ {
		h.AddSample(2000)
	}

	if h.GetCount() != 100 {
		t.Errorf("expected 100 samples, got %d", h.GetCount())
	}
	if h.TotalSize() != 90*8+10*2000 {
		t.Errorf("unexpected total %d", h.TotalSize())
	}
	if m := h.MedianEstimate(); m > 8 {
		t.Errorf("median should fall into the small bucket, got %d", m)
	}
	if p := h.GetPercentileEstimate(95); p < 1024 {
		t.Errorf("p95 should fall into the large bucket, got %d", p)
	}

	sum := h.Summary()
	if sum.Count != 100 || sum.Average != h.AverageSize() {
		t.Errorf("summary does not match histogram: %+v", sum)
	}

	h.Reset()
	if h.GetCount() != 0 || h.TotalSize() != 0 {
		t.Error("reset should clear the histogram")
	}
}

// TestAtomicWriteFile tests that the target is replaced and a failed write leaves no trace
func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.bin")

	write := func(content string) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		}
	}

	if err := AtomicWriteFile(path, 0o600, write("first")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWriteFile(path, 0o600, write("second")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("expected %q, got %q", "second", data)
	}

	boom := errors.New("boom")
	err = AtomicWriteFile(path, 0o600, func(io.Writer) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected the write error, got %v", err)
	}

	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("failed write must not touch the target, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temp files to remain, found %d entries", len(entries))
	}
}
