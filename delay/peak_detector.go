package delay

import "github.com/sirupsen/logrus"

const (
	// peakHeightMs is the inter-arrival excess, in milliseconds, that
	// qualifies as a delay peak.
	peakHeightMs = 78
	// maxPeakPeriodMs is the longest spacing between spikes still treated
	// as a recurring peak pattern.
	maxPeakPeriodMs = 10000
	// maxNumPeaks bounds the peak history.
	maxNumPeaks = 8
	// minPeaksToTrigger is the number of tracked peaks required before the
	// detector reports peak mode.
	minPeaksToTrigger = 2
)

type peak struct {
	periodMs      int64
	heightPackets int
}

// PeakDetector recognizes recurring delay spikes in the packet arrival
// process. While in peak mode the delay target is inflated to the tallest
// tracked peak so that periodic network bursts do not cause periodic
// underruns.
type PeakDetector struct {
	peakHistory     []peak
	peakFound       bool
	periodCounterMs int64
	thresholdPkt    int
	counting        bool
}

// NewPeakDetector creates a detector with an empty history.
func NewPeakDetector() *PeakDetector {
	return &PeakDetector{thresholdPkt: 2}
}

// Reset drops all peak state.
func (d *PeakDetector) Reset() {
	d.peakHistory = nil
	d.peakFound = false
	d.periodCounterMs = 0
	d.counting = false
}

// SetPacketAudioLength adapts the peak threshold to the packet duration.
func (d *PeakDetector) SetPacketAudioLength(lengthMs int) {
	if lengthMs > 0 {
		d.thresholdPkt = peakHeightMs / lengthMs
	}
}

// ElapseTime advances the peak period clock; called once per output tick.
func (d *PeakDetector) ElapseTime(ms int) {
	if d.counting {
		d.periodCounterMs += int64(ms)
	}
}

// Update feeds one inter-arrival observation (in packets) together with the
// current target level. It returns true when the detector is in peak mode.
func (d *PeakDetector) Update(iatPackets, targetLevel int) bool {
	if iatPackets > targetLevel+d.thresholdPkt || iatPackets > 2*targetLevel {
		// A delay peak is observed.
		if !d.counting {
			// First peak; start measuring the period to the next one.
			d.counting = true
			d.periodCounterMs = 0
		} else if d.periodCounterMs <= maxPeakPeriodMs {
			d.peakHistory = append(d.peakHistory, peak{
				periodMs:      d.periodCounterMs,
				heightPackets: iatPackets,
			})
			if len(d.peakHistory) > maxNumPeaks {
				d.peakHistory = d.peakHistory[1:]
			}
			d.periodCounterMs = 0
			logrus.WithFields(logrus.Fields{
				"function":    "PeakDetector.Update",
				"iat_packets": iatPackets,
				"peaks":       len(d.peakHistory),
			}).Debug("Registered delay peak")
		} else if d.periodCounterMs <= 2*maxPeakPeriodMs {
			// Too long since the last peak; restart the period measurement.
			d.periodCounterMs = 0
		} else {
			// The network pattern has changed; drop the history.
			d.Reset()
			d.counting = true
		}
	}
	return d.checkPeakConditions()
}

func (d *PeakDetector) checkPeakConditions() bool {
	if len(d.peakHistory) >= minPeaksToTrigger && d.periodCounterMs <= 2*maxPeakPeriodMs {
		d.peakFound = true
	} else {
		d.peakFound = false
	}
	return d.peakFound
}

// PeakFound reports whether the detector is currently in peak mode.
func (d *PeakDetector) PeakFound() bool { return d.peakFound }

// NumPeaks returns the number of peaks currently tracked.
func (d *PeakDetector) NumPeaks() int { return len(d.peakHistory) }

// MaxPeakHeight returns the tallest tracked peak in packets, or 0.
func (d *PeakDetector) MaxPeakHeight() int {
	maxHeight := 0
	for _, p := range d.peakHistory {
		if p.heightPackets > maxHeight {
			maxHeight = p.heightPackets
		}
	}
	return maxHeight
}
