// Package codecfilter selects, per receiver, which simulcast/SVC layer of
// a publisher's encoded stream to forward, rewriting picture IDs and
// TL0PICIDX so the receiver sees a coherent stream across layer switches.
package codecfilter

import "github.com/meshsfu/router/internal/wire"

// Result is the per-packet decision a ScalableFilter makes.
type Result int

const (
	// Reject means the packet does not belong to any layer this filter
	// currently cares about; no sequence slot is consumed.
	Reject Result = iota
	// Drop means the packet belongs to a tracked layer but is filtered
	// out (e.g. non-key while waiting for a resync point); the seq
	// rewriter must be told via DropValue so it does not leave a gap.
	Drop
	// Send means the packet should be forwarded, after rewriting.
	Send
)

// ScalableFilter is implemented by each codec's layer-selection logic.
// Implementations hold no goroutines or locks; callers own serialization.
type ScalableFilter interface {
	// Pause stops emission and resets any internal rewrite state.
	Pause()
	// Resume re-enables emission after Pause without resetting target.
	Resume()
	// ResetSource forgets the current layer selection (forcing a fresh
	// acquire gated the same way as the very first selection) without
	// forgetting the desired target, for use when the underlying
	// publisher source has changed but the receiver's layer preference
	// has not.
	ResetSource()
	// SetTargetLayer updates the desired layer. It returns true when the
	// change requires a keyframe from the publisher before it can take
	// effect (a spatial change, or no current selection yet).
	SetTargetLayer(spatial, temporal uint8, keyOnly bool) (keyframeNeeded bool)
	// ShouldSend decides the fate of pkt and whether accepting it
	// constitutes a stream switch (forcing seq/ts rewriter reinit).
	ShouldSend(pkt *wire.MediaPacket) (result Result, streamChanged bool)
}
