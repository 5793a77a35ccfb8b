package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// Outlier detection defaults. Thresholds are specific-gravity distances.
const (
	DefaultRollingWindow         = 7
	DefaultMidRunThreshold       = 0.010
	DefaultSmallDatasetThreshold = 0.020
	DefaultEdgeCheckSize         = 5
	DefaultEdgeReferenceSize     = 8

	// smallDatasetLimit is the reading count below which head/tail trimming
	// is skipped and only neighbor comparison applies.
	smallDatasetLimit = 14

	// minReadings is the count below which there is no signal at all.
	minReadings = 3
)

// OutlierOptions tunes the detector. Zero values fall back to the defaults
// above.
type OutlierOptions struct {
	RollingWindow         int
	MidRunThreshold       float64
	SmallDatasetThreshold float64
	EdgeCheckSize         int
	EdgeReferenceSize     int
}

func (o OutlierOptions) withDefaults() OutlierOptions {
	if o.RollingWindow <= 0 {
		o.RollingWindow = DefaultRollingWindow
	}
	if o.MidRunThreshold <= 0 {
		o.MidRunThreshold = DefaultMidRunThreshold
	}
	if o.SmallDatasetThreshold <= 0 {
		o.SmallDatasetThreshold = DefaultSmallDatasetThreshold
	}
	if o.EdgeCheckSize <= 0 {
		o.EdgeCheckSize = DefaultEdgeCheckSize
	}
	if o.EdgeReferenceSize <= 0 {
		o.EdgeReferenceSize = DefaultEdgeReferenceSize
	}
	return o
}

// OutlierResult is the full cleanup suggestion for one batch's readings.
// TailOutliers are stored nearest-to-end first.
type OutlierResult struct {
	CleanRangeStart *time.Time
	CleanRangeEnd   *time.Time
	HeadOutliers    []model.OutlierFlag
	TailOutliers    []model.OutlierFlag
	MidLogOutliers  []model.OutlierFlag
	TotalFlagged    int
}

// DetectOutliers scans an ascending-by-time reading series and flags sensor
// artifacts: settling transients at the head and tail of the series and
// mid-run spikes that deviate from a local rolling median. The input must
// include previously-excluded readings so prior decisions stay visible. The
// function is pure; persisting confirmed exclusions is the caller's job.
func DetectOutliers(readings []model.Reading, opts OutlierOptions) OutlierResult {
	opts = opts.withDefaults()

	var result OutlierResult
	if len(readings) < minReadings {
		return result
	}

	if len(readings) < smallDatasetLimit {
		result.MidLogOutliers = detectNeighborOutliers(readings, opts.SmallDatasetThreshold)
		result.TotalFlagged = len(result.MidLogOutliers)
		return result
	}

	flagged := make([]bool, len(readings))

	result.HeadOutliers = detectHeadOutliers(readings, opts, flagged)
	result.TailOutliers = detectTailOutliers(readings, opts, flagged)
	result.MidLogOutliers = detectMidRunOutliers(readings, opts, flagged)

	if n := len(result.HeadOutliers); n > 0 {
		start := readings[n].RecordedAt
		result.CleanRangeStart = &start
	}
	if n := len(result.TailOutliers); n > 0 {
		end := readings[len(readings)-n-1].RecordedAt
		result.CleanRangeEnd = &end
	}

	result.TotalFlagged = len(result.HeadOutliers) + len(result.TailOutliers) + len(result.MidLogOutliers)
	return result
}

// detectNeighborOutliers handles small datasets: each reading is compared only
// to the median of its immediate neighbors.
func detectNeighborOutliers(readings []model.Reading, threshold float64) []model.OutlierFlag {
	var flags []model.OutlierFlag
	for i, r := range readings {
		neighbors := make([]float64, 0, 2)
		if i > 0 {
			neighbors = append(neighbors, readings[i-1].Gravity)
		}
		if i < len(readings)-1 {
			neighbors = append(neighbors, readings[i+1].Gravity)
		}
		deviation := r.Gravity - median(neighbors)
		if math.Abs(deviation) > threshold {
			flags = append(flags, newFlag(r, deviation, model.ExcludeOutlierAuto))
		}
	}
	return flags
}

// detectHeadOutliers scans forward from the start against the median of a
// reference window just past the head-check region. The scan stops at the
// first in-tolerance reading, so head outliers are always a contiguous prefix.
func detectHeadOutliers(readings []model.Reading, opts OutlierOptions, flagged []bool) []model.OutlierFlag {
	refStart := opts.EdgeCheckSize
	if refStart > len(readings) {
		refStart = len(readings)
	}
	refEnd := refStart + opts.EdgeReferenceSize
	if refEnd > len(readings) {
		refEnd = len(readings)
	}
	if refStart == refEnd {
		// A check window covering the whole series leaves no readings to
		// reference against.
		return nil
	}
	ref := medianGravity(readings[refStart:refEnd])

	var flags []model.OutlierFlag
	for i := 0; i < opts.EdgeCheckSize && i < len(readings); i++ {
		deviation := readings[i].Gravity - ref
		if math.Abs(deviation) <= opts.MidRunThreshold {
			break
		}
		flagged[i] = true
		flags = append(flags, newFlag(readings[i], deviation, model.ExcludeHeadTrim))
	}
	return flags
}

// detectTailOutliers is the symmetric backward scan from the end. Flags are
// appended nearest-to-end first.
func detectTailOutliers(readings []model.Reading, opts OutlierOptions, flagged []bool) []model.OutlierFlag {
	n := len(readings)
	refEnd := n - opts.EdgeCheckSize
	if refEnd < 0 {
		refEnd = 0
	}
	refStart := refEnd - opts.EdgeReferenceSize
	if refStart < 0 {
		refStart = 0
	}
	if refStart == refEnd {
		return nil
	}
	ref := medianGravity(readings[refStart:refEnd])

	var flags []model.OutlierFlag
	for i := n - 1; i >= n-opts.EdgeCheckSize && i >= 0; i-- {
		deviation := readings[i].Gravity - ref
		if math.Abs(deviation) <= opts.MidRunThreshold {
			break
		}
		flagged[i] = true
		flags = append(flags, newFlag(readings[i], deviation, model.ExcludeTailTrim))
	}
	return flags
}

// detectMidRunOutliers compares each unflagged reading to the median of a
// window centered on it.
func detectMidRunOutliers(readings []model.Reading, opts OutlierOptions, flagged []bool) []model.OutlierFlag {
	half := opts.RollingWindow / 2

	var flags []model.OutlierFlag
	for i, r := range readings {
		if flagged[i] {
			continue
		}
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(readings)-1 {
			hi = len(readings) - 1
		}
		deviation := r.Gravity - medianGravity(readings[lo:hi+1])
		if math.Abs(deviation) > opts.MidRunThreshold {
			flags = append(flags, newFlag(r, deviation, model.ExcludeOutlierAuto))
		}
	}
	return flags
}

func newFlag(r model.Reading, deviation float64, reason model.ExcludeReason) model.OutlierFlag {
	return model.OutlierFlag{
		ReadingID:  r.ID,
		Gravity:    r.Gravity,
		RecordedAt: r.RecordedAt,
		Deviation:  deviation,
		Reason:     reason,
	}
}

func medianGravity(readings []model.Reading) float64 {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Gravity
	}
	return median(values)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
