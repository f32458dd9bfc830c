package codecfilter

import (
	"github.com/meshsfu/router/internal/seqts"
	"github.com/meshsfu/router/internal/wire"
)

const (
	rtpSeqMax = 1 << 16
	rtpTsMax  = 1 << 32

	// DefaultRewriteTolerance is how many recently dropped seq/ts values
	// the rewriters remember, absent an explicit configured value.
	DefaultRewriteTolerance = 60
)

// TargetMode selects the Selector's emission policy.
type TargetMode int

const (
	// TargetWaitStart holds emission without resetting the filter.
	TargetWaitStart TargetMode = iota
	// TargetPause stops emission and resets the filter's internal state.
	TargetPause
	// TargetSingle selects a single-layer or passthrough stream.
	TargetSingle
	// TargetScalable selects a simulcast/SVC (spatial, temporal) layer.
	TargetScalable
)

// Target is the receiver-facing layer/quality selection applied by
// Selector.SetTarget.
type Target struct {
	Mode     TargetMode
	Spatial  uint8
	Temporal uint8
	KeyOnly  bool
}

// Selector is the per-receiver codec packet selector (C2): it drives a
// codec-specific ScalableFilter and rewrites the top-level seq/ts fields
// of every forwarded packet so the receiver sees a monotonic stream
// across layer switches.
type Selector struct {
	filter ScalableFilter
	seqRW  *seqts.SeqRewrite
	tsRW   *seqts.TsRewrite
	paused bool
}

// NewSelector returns a Selector driving filter, with a seq rewriter over
// the standard 16-bit RTP sequence space and a timestamp rewriter at the
// given codec sample rate. seqTolerance/tsTolerance configure how many
// recently dropped values each rewriter remembers (<=0 falls back to
// DefaultRewriteTolerance).
func NewSelector(filter ScalableFilter, sampleRate uint64, seqTolerance, tsTolerance int) *Selector {
	if seqTolerance <= 0 {
		seqTolerance = DefaultRewriteTolerance
	}
	if tsTolerance <= 0 {
		tsTolerance = DefaultRewriteTolerance
	}
	return &Selector{
		filter: filter,
		seqRW:  seqts.New(rtpSeqMax, seqTolerance),
		tsRW:   seqts.NewTs(rtpTsMax, tsTolerance, sampleRate),
	}
}

// SetTarget applies a new target mode, returning true when the change
// requires a keyframe from the publisher before it can take effect.
func (s *Selector) SetTarget(t Target) (keyframeNeeded bool) {
	switch t.Mode {
	case TargetPause:
		s.paused = true
		s.filter.Pause()
		return false
	case TargetWaitStart:
		s.paused = true
		return false
	default:
		wasPaused := s.paused
		s.paused = false
		if wasPaused {
			s.filter.Resume()
		}
		return s.filter.SetTargetLayer(t.Spatial, t.Temporal, t.KeyOnly)
	}
}

// ResetSource reinitializes the seq/ts rewriters and forgets the filter's
// current layer selection, for use when the receiver has switched to a
// new publisher source; the desired target layer is preserved.
func (s *Selector) ResetSource(nowMs int64) {
	s.filter.ResetSource()
	s.seqRW.Reinit()
	s.tsRW.Reinit(nowMs)
}

// Process applies the selector to pkt, returning the rewritten packet to
// forward, or nil if pkt should not be forwarded (dropped or rejected).
func (s *Selector) Process(nowMs int64, pkt *wire.MediaPacket) *wire.MediaPacket {
	if s.paused {
		return nil
	}

	result, streamChanged := s.filter.ShouldSend(pkt)
	if streamChanged {
		s.seqRW.Reinit()
		s.tsRW.Reinit(nowMs)
	}

	switch result {
	case Send:
		outSeq, ok := s.seqRW.Generate(uint64(pkt.Seq))
		if !ok {
			return nil
		}
		outTs, ok := s.tsRW.Generate(nowMs, uint64(pkt.Ts))
		if !ok {
			return nil
		}
		out := pkt.Clone()
		out.Seq = uint16(outSeq)
		out.Ts = uint32(outTs)
		return out
	case Drop:
		s.seqRW.DropValue(uint64(pkt.Seq))
		return nil
	default: // Reject
		return nil
	}
}
