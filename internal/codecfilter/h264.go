package codecfilter

import "github.com/meshsfu/router/internal/wire"

// H264SimulcastFilter selects one spatial stream out of an H.264 simulcast
// publication. Switches only take effect at a keyframe on the target
// stream; there is no temporal layering or picture-id rewriting at this
// layer, since H.264 simulcast streams are independently encoded.
type H264SimulcastFilter struct {
	hasCurrent    bool
	currentSpatial uint8
	hasTarget     bool
	targetSpatial uint8
	keyOnly       bool
}

// NewH264SimulcastFilter returns a filter with no current or target layer.
func NewH264SimulcastFilter() *H264SimulcastFilter {
	return &H264SimulcastFilter{}
}

func (f *H264SimulcastFilter) Pause() {
	f.hasCurrent = false
	f.hasTarget = false
}

func (f *H264SimulcastFilter) Resume() {}

func (f *H264SimulcastFilter) ResetSource() {
	if f.hasCurrent {
		f.hasTarget = true
		f.targetSpatial = f.currentSpatial
	}
	f.hasCurrent = false
}

func (f *H264SimulcastFilter) SetTargetLayer(spatial, _ uint8, keyOnly bool) bool {
	keyFrameNeeded := !f.hasCurrent || f.currentSpatial != spatial
	if !f.hasCurrent || f.currentSpatial != spatial {
		f.hasTarget = true
		f.targetSpatial = spatial
		f.keyOnly = keyOnly
	}
	return keyFrameNeeded
}

func (f *H264SimulcastFilter) ShouldSend(pkt *wire.MediaPacket) (Result, bool) {
	meta, ok := pkt.Meta.(wire.H264Meta)
	if !ok || meta.Simulcast == nil {
		return Reject, false
	}
	sim := meta.Simulcast

	streamChanged := false
	if f.hasTarget && sim.Spatial == f.targetSpatial && meta.Key {
		streamChanged = !f.hasCurrent || f.currentSpatial != f.targetSpatial
		f.hasCurrent = true
		f.currentSpatial = f.targetSpatial
		f.hasTarget = false
	}

	if !f.hasCurrent {
		return Reject, streamChanged
	}
	if sim.Spatial != f.currentSpatial {
		return Reject, streamChanged
	}
	if f.keyOnly && !meta.Key {
		return Drop, streamChanged
	}
	return Send, streamChanged
}
