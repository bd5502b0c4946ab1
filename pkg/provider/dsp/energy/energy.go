// Package energy implements the dsp.Engine interface with a pure-Go
// average-amplitude silence detector.
//
// A frame is silent when the mean absolute amplitude of its signed-linear
// samples falls below the configured threshold. Silent frames extend a running
// silence streak measured in milliseconds; the first voiced frame resets it.
// This mirrors the classic telephony DSP behaviour where the detector reports
// the total length of the silence currently standing, not a per-frame flag.
package energy

import (
	"fmt"

	"github.com/dialsift/dialsift/pkg/audio"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
)

// DefaultThreshold is the average-amplitude level below which a frame counts
// as silence. 256 suits signed-linear telephony audio with typical line noise.
const DefaultThreshold = 256

// Engine creates average-amplitude detectors. The zero value is ready to use.
type Engine struct{}

// NewDetector returns a detector using the given energy threshold. A
// threshold of 0 or less selects [DefaultThreshold].
func (Engine) NewDetector(threshold int) (dsp.Detector, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 32767 {
		return nil, fmt.Errorf("%w: threshold %d exceeds sample range", dsp.ErrDetectorUnavailable, threshold)
	}
	return &detector{threshold: threshold}, nil
}

// Ensure Engine implements dsp.Engine at compile time.
var _ dsp.Engine = Engine{}

type detector struct {
	threshold int
	silenceMS int
	closed    bool
}

func (d *detector) MeasureSilence(f audio.Frame) int {
	if d.closed || f.Kind != audio.KindVoice || len(f.Samples) == 0 {
		return d.silenceMS
	}

	var sum int64
	for _, s := range f.Samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	avg := int(sum / int64(len(f.Samples)))

	if avg < d.threshold {
		d.silenceMS += f.DurationMS()
		return d.silenceMS
	}
	d.silenceMS = 0
	return 0
}

func (d *detector) Close() error {
	d.closed = true
	return nil
}
