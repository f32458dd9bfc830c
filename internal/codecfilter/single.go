package codecfilter

import "github.com/meshsfu/router/internal/wire"

// SingleLayerFilter passes a single-layer (non-simulcast, non-SVC) video
// stream through once a resync point (keyframe) has been seen. KeyOnly
// forces every non-key packet to be dropped rather than only the initial
// resync wait.
type SingleLayerFilter struct {
	synced  bool
	keyOnly bool
}

// NewSingleLayerFilter returns a filter waiting for its first keyframe.
func NewSingleLayerFilter(keyOnly bool) *SingleLayerFilter {
	return &SingleLayerFilter{keyOnly: keyOnly}
}

func (f *SingleLayerFilter) Pause() {
	f.synced = false
}

func (f *SingleLayerFilter) Resume() {}

func (f *SingleLayerFilter) ResetSource() {
	f.synced = false
}

func (f *SingleLayerFilter) SetTargetLayer(_, _ uint8, keyOnly bool) bool {
	needKey := !f.synced
	f.keyOnly = keyOnly
	return needKey
}

func (f *SingleLayerFilter) ShouldSend(pkt *wire.MediaPacket) (Result, bool) {
	isKey := pkt.IsKeyFrame()
	streamChanged := false
	if !f.synced {
		if !isKey {
			return Drop, false
		}
		f.synced = true
		streamChanged = true
	}
	if f.keyOnly && !isKey {
		return Drop, streamChanged
	}
	return Send, streamChanged
}

// PassthroughFilter forwards every packet unmodified; used for audio and
// any codec with no layer structure to select over.
type PassthroughFilter struct{}

func NewPassthroughFilter() *PassthroughFilter { return &PassthroughFilter{} }

func (f *PassthroughFilter) Pause()       {}
func (f *PassthroughFilter) Resume()      {}
func (f *PassthroughFilter) ResetSource() {}

func (f *PassthroughFilter) SetTargetLayer(_, _ uint8, _ bool) bool { return false }

func (f *PassthroughFilter) ShouldSend(_ *wire.MediaPacket) (Result, bool) {
	return Send, false
}
