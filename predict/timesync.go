package predict

import "sort"

// TimeSample is one round-trip clock-sync probe.
type TimeSample struct {
	SentLocal     int64
	ServerTime    int64
	ReceivedLocal int64
}

// maxSamplesForMean caps how many of the most recent samples are retained
// for the filtered mean; older samples fall off the front.
const maxSamplesForMean = 32

const needsMoreSamplesThreshold = 8
const meanAfterSamples = 5

// Estimator tracks clock skew between the local clock and the relay's
// authoritative clock, and nudges the local tick rate toward the relay's
// cadence.
type Estimator struct {
	synced      bool
	samples     []sampleWithLatency
	delta       int64 // server_time - local_time, in the same units as inputs
	tickRateMul float64

	tickInterval    int64
	serverStartTime int64
}

type sampleWithLatency struct {
	delta   int64
	latency int64
}

// NewEstimator constructs an Estimator for the given nominal tick interval
// (wall-clock units, e.g. milliseconds) and the relay's reported
// simulation start time in the same units.
func NewEstimator(tickInterval, serverStartTime int64) *Estimator {
	return &Estimator{
		tickRateMul:     1.0,
		tickInterval:    tickInterval,
		serverStartTime: serverStartTime,
	}
}

// AddSample ingests one round-trip probe.
func (e *Estimator) AddSample(s TimeSample) {
	latency := (s.ReceivedLocal - s.SentLocal) / 2
	delta := s.ServerTime - s.ReceivedLocal + latency

	if !e.synced {
		e.synced = true
		e.delta = delta
		e.samples = append(e.samples, sampleWithLatency{delta: delta, latency: latency})
		return
	}

	e.samples = append(e.samples, sampleWithLatency{delta: delta, latency: latency})
	if len(e.samples) > maxSamplesForMean {
		e.samples = e.samples[len(e.samples)-maxSamplesForMean:]
	}

	if len(e.samples) >= meanAfterSamples {
		e.delta = filteredMeanDelta(e.samples)
	}
}

// filteredMeanDelta sorts by latency and averages the lowest three
// quartiles, discarding the top quartile as likely outliers.
func filteredMeanDelta(samples []sampleWithLatency) int64 {
	sorted := make([]sampleWithLatency, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].latency < sorted[j].latency })

	keep := len(sorted) - len(sorted)/4
	if keep < 1 {
		keep = 1
	}
	var sum int64
	for _, s := range sorted[:keep] {
		sum += s.delta
	}
	return sum / int64(keep)
}

// NeedsMoreSamples reports whether fewer than 8 samples have been
// collected yet.
func (e *Estimator) NeedsMoreSamples() bool {
	return len(e.samples) < needsMoreSamplesThreshold
}

// Synced reports whether at least one sample has been adopted.
func (e *Estimator) Synced() bool { return e.synced }

// Delta returns the current best estimate of server_time - local_time.
func (e *Estimator) Delta() int64 { return e.delta }

// NudgeTickRate updates the tick-rate multiplier from the observed
// inter-tick arrival interval. Each call computes the multiplier afresh
// from that interval and clamps it to [0.95, 1.05], i.e. within ±5% of the
// nominal rate; the previous multiplier does not limit the change.
func (e *Estimator) NudgeTickRate(observedInterval int64) float64 {
	if e.tickInterval <= 0 {
		return e.tickRateMul
	}
	ratio := float64(e.tickInterval) / float64(observedInterval)

	const maxStep = 0.05
	if ratio > 1+maxStep {
		ratio = 1 + maxStep
	} else if ratio < 1-maxStep {
		ratio = 1 - maxStep
	}

	const minMul, maxMul = 0.95, 1.05
	if ratio < minMul {
		ratio = minMul
	} else if ratio > maxMul {
		ratio = maxMul
	}

	e.tickRateMul = ratio
	return e.tickRateMul
}

// TickRateMultiplier returns the most recent nudge result (1.0 until the
// first NudgeTickRate call).
func (e *Estimator) TickRateMultiplier() float64 { return e.tickRateMul }

// TargetFrame computes floor((server_now - server_start) / tick_interval)
// for serverNow in the same wall-clock units as the constructor's
// serverStartTime.
func (e *Estimator) TargetFrame(serverNow int64) uint64 {
	if e.tickInterval <= 0 {
		return 0
	}
	elapsed := serverNow - e.serverStartTime
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / e.tickInterval)
}

// LocalToServerTime converts a local timestamp to the estimated
// corresponding server timestamp using the current delta.
func (e *Estimator) LocalToServerTime(local int64) int64 {
	return local + e.delta
}
