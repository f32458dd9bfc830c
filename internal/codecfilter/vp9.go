package codecfilter

import (
	"github.com/meshsfu/router/internal/seqts"
	"github.com/meshsfu/router/internal/wire"
)

const (
	vp9PictureIDMax     = 1 << 15
	vp9RewriteTolerance = 60
)

type vp9Selection struct {
	spatial  uint8
	temporal uint8
	keyOnly  bool
}

func (s vp9Selection) allow(pkt *wire.MediaPacket, picIDRW *seqts.SeqRewrite) Result {
	meta, ok := pkt.Meta.(wire.VP9Meta)
	if !ok || meta.SVC == nil {
		return Reject
	}
	svc := meta.SVC
	if svc.Spatial > s.spatial {
		return Reject
	}
	if svc.Temporal <= s.temporal && (meta.Key || !s.keyOnly) {
		if svc.PictureID != nil {
			newPicID, ok := picIDRW.Generate(uint64(*svc.PictureID))
			if !ok {
				return Drop
			}
			v := uint16(newPicID)
			svc.PictureID = &v
		}
		return Send
	}
	if svc.PictureID != nil {
		picIDRW.DropValue(uint64(*svc.PictureID))
	}
	return Drop
}

// shouldSwitch decides whether a pending target selection should take
// over from current at this packet. Spatial changes (including the
// initial selection) require a keyframe at a frame boundary; temporal
// upswitches require a switching point on the target layer; anything else
// (same spatial, equal or lower temporal) applies at the next frame
// boundary with no gating.
func (s vp9Selection) shouldSwitch(current *vp9Selection, pkt *wire.MediaPacket) bool {
	meta, ok := pkt.Meta.(wire.VP9Meta)
	if !ok || meta.SVC == nil {
		return false
	}
	svc := meta.SVC

	// A spatial switch must land on the base layer of a keyframe superframe
	// so every layer 0..target.spatial needed to decode it is still ahead
	// of us, not already passed by.
	if current == nil {
		return meta.Key && svc.Begin && svc.Spatial <= s.spatial && svc.Temporal <= s.temporal
	}
	if current.spatial == s.spatial {
		if s.temporal > current.temporal {
			return svc.Begin && svc.SwitchingPoint && svc.Temporal == s.temporal
		}
		return svc.Begin
	}
	return meta.Key && svc.Begin && svc.Spatial <= s.spatial && svc.Temporal <= s.temporal
}

// VP9SVCFilter selects a (spatial, temporal) layer out of a single VP9
// scalable stream, rewriting picture_id across switches.
type VP9SVCFilter struct {
	current *vp9Selection
	target  *vp9Selection

	picIDRW *seqts.SeqRewrite
}

// NewVP9SVCFilter returns a filter with no current or target layer.
func NewVP9SVCFilter() *VP9SVCFilter {
	return &VP9SVCFilter{picIDRW: seqts.New(vp9PictureIDMax, vp9RewriteTolerance)}
}

func (f *VP9SVCFilter) Pause() {
	f.current = nil
	f.target = nil
	f.picIDRW.Reinit()
}

func (f *VP9SVCFilter) Resume() {}

func (f *VP9SVCFilter) ResetSource() {
	if f.current != nil {
		sel := *f.current
		f.target = &sel
	}
	f.current = nil
	f.picIDRW.Reinit()
}

func (f *VP9SVCFilter) SetTargetLayer(spatial, temporal uint8, keyOnly bool) bool {
	var keyFrameNeeded, changed bool
	if f.current != nil {
		keyFrameNeeded = f.current.spatial != spatial
		changed = f.current.spatial != spatial || f.current.temporal != temporal
	} else {
		keyFrameNeeded = true
		changed = true
	}
	if changed {
		sel := vp9Selection{spatial: spatial, temporal: temporal, keyOnly: keyOnly}
		f.target = &sel
	}
	return keyFrameNeeded
}

func (f *VP9SVCFilter) ShouldSend(pkt *wire.MediaPacket) (Result, bool) {
	streamChanged := false
	if f.target != nil && f.target.shouldSwitch(f.current, pkt) {
		if f.current != nil {
			streamChanged = f.current.spatial != f.target.spatial
		} else {
			streamChanged = true
		}
		if streamChanged {
			f.picIDRW.Reinit()
		}
		f.current = f.target
		f.target = nil
	}

	if f.current == nil {
		return Reject, streamChanged
	}
	return f.current.allow(pkt, f.picIDRW), streamChanged
}
