package util

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the population standard deviation, minimum, maximum
// and mean of values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min, max := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	minMaxRatio := 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          min,
		Max:          max,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly entries are spread over buckets
// (shards, scopes). A quality of 1 means perfectly even.
func NewDistributionStats(bucketSizes []float64) DistributionStats {
	stats := NewStats(bucketSizes)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	// lower CV and higher min/max ratio indicate better distribution
	quality := (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: quality,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets. Setting values
// are small, so the resolution is highest below one kilobyte.
var sizeBoundaries = []int{
	1, 4, 8, 16, 32, 64, 128, 256, 512, // up to 512B
	1024, 4096, 16384, 65536, // up to 64KB
	1 << 20, // 1MB
}

// SizeHistogram tracks the distribution of value sizes with fixed buckets.
// It is safe for concurrent use.
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets []int64 // one per boundary plus one for larger values
	count   int64
	sum     int64
}

// SizeSummary is the JSON friendly digest of a SizeHistogram
type SizeSummary struct {
	Count   int64 `json:"count"`
	Total   int64 `json:"total_bytes"`
	Average int   `json:"average_bytes"`
	Median  int   `json:"median_bytes"`
	P95     int   `json:"p95_bytes"`
}

func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample adds a size sample to the histogram
func (h *SizeHistogram) AddSample(size int) {
	idx := len(sizeBoundaries)
	for i, boundary := range sizeBoundaries {
		if size <= boundary {
			idx = i
			break
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buckets[idx]++
	h.count++
	h.sum += int64(size)
}

// GetCount returns the total number of samples
func (h *SizeHistogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// TotalSize returns the sum of all samples
func (h *SizeHistogram) TotalSize() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}

// AverageSize returns the average size across all samples
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size based on the histogram
func (h *SizeHistogram) MedianEstimate() int {
	return h.GetPercentileEstimate(50)
}

// GetPercentileEstimate returns an estimate for the given percentile (0-100).
// The estimate is the midpoint of the bucket the percentile falls into.
func (h *SizeHistogram) GetPercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	if target == 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range h.buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0]
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			// open ended bucket
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}

	return int(h.sum / h.count)
}

// Reset clears all histogram data
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count = 0
	h.sum = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// Summary returns count, total, average, median and 95th percentile.
func (h *SizeHistogram) Summary() SizeSummary {
	return SizeSummary{
		Count:   h.GetCount(),
		Total:   h.TotalSize(),
		Average: h.AverageSize(),
		Median:  h.MedianEstimate(),
		P95:     h.GetPercentileEstimate(95),
	}
}
