// Package seqts rewrites sequence numbers and timestamps so that a receiver
// sees a monotonic stream across publisher-side layer switches, stream
// restarts, and packet loss, even though the underlying source changes or
// skips values underneath it.
package seqts

// SeqRewrite maps an arbitrary, possibly wrapping, counter space (sequence
// numbers, picture IDs, TL0PICIDX) onto a strictly increasing output space
// modulo max. It is a plain value-holding struct with no goroutines or
// locks: callers that share one across goroutines must serialize access
// themselves, matching the single-threaded-per-owner model the rest of
// this package's callers already assume.
type SeqRewrite struct {
	max       uint64
	tolerance int

	inited  bool
	offset  uint64
	nextOut uint64
	dropped []uint64
}

// New returns a rewriter for a counter space of size max (values wrap at
// max) that remembers up to tolerance recently dropped input values.
func New(max uint64, tolerance int) *SeqRewrite {
	return &SeqRewrite{max: max, tolerance: tolerance, nextOut: 1}
}

func (s *SeqRewrite) modSub(a, b uint64) uint64 {
	return ((a-b)%s.max + s.max) % s.max
}

// Generate accepts an input value and returns its rewritten output, or
// ok=false if input duplicates a value previously passed to DropValue
// within the tolerance window.
func (s *SeqRewrite) Generate(input uint64) (output uint64, ok bool) {
	input %= s.max
	for _, d := range s.dropped {
		if d == input {
			return 0, false
		}
	}

	var out uint64
	if !s.inited {
		s.inited = true
		s.offset = s.modSub(input, s.nextOut)
		out = s.nextOut
	} else {
		out = s.modSub(input, s.offset)
	}
	s.nextOut = (out + 1) % s.max
	return out, true
}

// DropValue records input as deliberately skipped so that it does not
// consume an output slot: the offset shifts to close the gap, and future
// arrivals of the same input (e.g. a retransmit) are recognized and
// rejected rather than double-counted.
func (s *SeqRewrite) DropValue(input uint64) {
	input %= s.max
	s.dropped = append(s.dropped, input)
	if len(s.dropped) > s.tolerance {
		s.dropped = s.dropped[1:]
	}
	if s.inited {
		s.offset = (s.offset + 1) % s.max
	}
}

// Reinit restarts offset tracking. The next accepted Generate call
// synthesizes a +1 advance from the last output rather than resetting to
// the start of the counter space, so a stream switch stays monotonic from
// the receiver's point of view.
func (s *SeqRewrite) Reinit() {
	s.inited = false
	s.dropped = nil
}

// TsRewrite wraps SeqRewrite with sample-rate-aware reinit: when a stream
// switch happens, the synthetic advance is computed from elapsed wall-clock
// time rather than a flat +1, since timestamps run at the codec's sample
// rate rather than one-per-packet.
type TsRewrite struct {
	inner      *SeqRewrite
	sampleRate uint64
	lastNowMs  int64
	haveLast   bool
}

// NewTs returns a timestamp rewriter for a clock of the given sample rate
// (e.g. 90000 for video, 48000 for Opus).
func NewTs(max uint64, tolerance int, sampleRate uint64) *TsRewrite {
	return &TsRewrite{inner: New(max, tolerance), sampleRate: sampleRate}
}

// Generate behaves like SeqRewrite.Generate but additionally tracks
// wall-clock time so a subsequent Reinit can synthesize a proportional
// advance instead of a flat +1.
func (t *TsRewrite) Generate(nowMs int64, input uint64) (output uint64, ok bool) {
	out, ok := t.inner.Generate(input)
	if ok {
		t.lastNowMs = nowMs
		t.haveLast = true
	}
	return out, ok
}

func (t *TsRewrite) DropValue(input uint64) {
	t.inner.DropValue(input)
}

// Reinit restarts offset tracking, synthesizing the next base output as an
// advance proportional to elapsed wall-clock time since the last accepted
// sample, at this rewriter's sample rate.
func (t *TsRewrite) Reinit(nowMs int64) {
	if t.haveLast {
		deltaMs := nowMs - t.lastNowMs
		if deltaMs < 0 {
			deltaMs = 0
		}
		advance := uint64(deltaMs) * t.sampleRate / 1000
		if advance == 0 {
			advance = 1
		}
		lastOut := (t.inner.nextOut + t.inner.max - 1) % t.inner.max
		t.inner.nextOut = (lastOut + advance) % t.inner.max
	}
	t.inner.Reinit()
}
