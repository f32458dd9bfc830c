package codecfilter

import (
	"github.com/meshsfu/router/internal/seqts"
	"github.com/meshsfu/router/internal/wire"
)

const (
	vp8PictureIDMax = 1 << 15
	vp8TL0IdxMax    = 1 << 8
	vp8RewriteTolerance = 60
)

type vp8Selection struct {
	spatial  uint8
	temporal uint8
	keyOnly  bool
}

func (s vp8Selection) allow(pkt *wire.MediaPacket, picIDRW, tl0RW *seqts.SeqRewrite) Result {
	meta, ok := pkt.Meta.(wire.VP8Meta)
	if !ok || meta.Simulcast == nil {
		return Reject
	}
	sim := meta.Simulcast
	if sim.Spatial != s.spatial {
		return Reject
	}
	if sim.Temporal <= s.temporal && (meta.Key || !s.keyOnly) {
		if sim.TL0PicIdx != nil {
			newTL0, ok := tl0RW.Generate(uint64(*sim.TL0PicIdx))
			if !ok {
				return Drop
			}
			v := uint8(newTL0)
			sim.TL0PicIdx = &v
		}
		if sim.PictureID != nil {
			newPicID, ok := picIDRW.Generate(uint64(*sim.PictureID))
			if !ok {
				return Drop
			}
			v := uint16(newPicID)
			sim.PictureID = &v
		}
		return Send
	}

	if sim.PictureID != nil {
		picIDRW.DropValue(uint64(*sim.PictureID))
	}
	return Drop
}

func (s vp8Selection) shouldSwitch(current *vp8Selection, pkt *wire.MediaPacket) bool {
	meta, ok := pkt.Meta.(wire.VP8Meta)
	if !ok || meta.Simulcast == nil {
		return false
	}
	sim := meta.Simulcast

	if current == nil {
		return sim.Spatial == s.spatial && sim.Temporal <= s.temporal && meta.Key
	}
	if current.spatial == s.spatial {
		if s.temporal > current.temporal {
			// up sample: only at a layer-sync point on the target layer
			return sim.Temporal == s.temporal && sim.LayerSync
		}
		// down sample: apply immediately
		return true
	}
	return sim.Spatial == s.spatial && sim.Temporal <= s.temporal && meta.Key
}

// VP8SimulcastFilter selects a (spatial, temporal) layer out of a VP8
// simulcast publication, gating spatial/temporal upswitches on keyframes
// and layer-sync points respectively.
type VP8SimulcastFilter struct {
	current *vp8Selection
	target  *vp8Selection

	picIDRW *seqts.SeqRewrite
	tl0RW   *seqts.SeqRewrite
}

// NewVP8SimulcastFilter returns a filter with no current or target layer.
func NewVP8SimulcastFilter() *VP8SimulcastFilter {
	return &VP8SimulcastFilter{
		picIDRW: seqts.New(vp8PictureIDMax, vp8RewriteTolerance),
		tl0RW:   seqts.New(vp8TL0IdxMax, vp8RewriteTolerance),
	}
}

func (f *VP8SimulcastFilter) Pause() {
	f.current = nil
	f.target = nil
	f.picIDRW.Reinit()
	f.tl0RW.Reinit()
}

func (f *VP8SimulcastFilter) Resume() {}

func (f *VP8SimulcastFilter) ResetSource() {
	if f.current != nil {
		sel := *f.current
		f.target = &sel
	}
	f.current = nil
	f.picIDRW.Reinit()
	f.tl0RW.Reinit()
}

func (f *VP8SimulcastFilter) SetTargetLayer(spatial, temporal uint8, keyOnly bool) bool {
	var keyFrameNeeded, changed bool
	if f.current != nil {
		keyFrameNeeded = f.current.spatial != spatial
		changed = f.current.spatial != spatial || f.current.temporal != temporal
	} else {
		keyFrameNeeded = true
		changed = true
	}
	if changed {
		sel := vp8Selection{spatial: spatial, temporal: temporal, keyOnly: keyOnly}
		f.target = &sel
	}
	return keyFrameNeeded
}

func (f *VP8SimulcastFilter) ShouldSend(pkt *wire.MediaPacket) (Result, bool) {
	streamChanged := false
	if f.target != nil && f.target.shouldSwitch(f.current, pkt) {
		if f.current != nil {
			streamChanged = f.current.spatial != f.target.spatial
		} else {
			streamChanged = true
		}
		if streamChanged {
			f.picIDRW.Reinit()
			f.tl0RW.Reinit()
		}
		f.current = f.target
		f.target = nil
	}

	if f.current == nil {
		return Reject, streamChanged
	}
	return f.current.allow(pkt, f.picIDRW, f.tl0RW), streamChanged
}
