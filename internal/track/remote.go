package track

import (
	"github.com/meshsfu/router/internal/bitrate"
	"github.com/meshsfu/router/internal/wire"
)

const bitrateWindowMs = 2000

// RemoteTrack is the ingress side of one published track: it tracks
// activation, feeds a bitrate measure for video, and translates
// pub/sub feedback (bitrate limit, keyframe request) into either local
// bookkeeping or a request back to the ingress transport.
type RemoteTrack struct {
	ClusterTrackUUID string
	ID               string
	Name             string
	Meta             Meta

	Active         bool
	ConsumersLimit *uint32

	measure   *bitrate.Measure
	lastStats *bitrate.Stats

	out []any
}

// NewRemoteTrack returns an inactive remote track. Video tracks start a
// bitrate measure; audio tracks do not.
func NewRemoteTrack(clusterTrackUUID, id, name string, meta Meta) *RemoteTrack {
	rt := &RemoteTrack{ClusterTrackUUID: clusterTrackUUID, ID: id, Name: name, Meta: meta}
	if meta.Kind == KindVideo {
		rt.measure = bitrate.New(bitrateWindowMs)
	}
	return rt
}

func layerModeOf(pkt *wire.MediaPacket) (mode bitrate.LayerMode, spatial, temporal uint8) {
	switch m := pkt.Meta.(type) {
	case wire.VP8Meta:
		if m.Simulcast != nil {
			return bitrate.ModeSimulcast, m.Simulcast.Spatial, m.Simulcast.Temporal
		}
	case wire.VP9Meta:
		if m.SVC != nil {
			return bitrate.ModeSVC, m.SVC.Spatial, m.SVC.Temporal
		}
	case wire.H264Meta:
		if m.Simulcast != nil {
			return bitrate.ModeSimulcast, m.Simulcast.Spatial, 0
		}
	}
	return bitrate.ModeSingle, 0, 0
}

// OnMedia processes one packet arriving from the ingress transport. It
// activates the track on first arrival, updates the bitrate measure for
// video, and queues the packet for publication.
func (rt *RemoteTrack) OnMedia(nowMs int64, pkt *wire.MediaPacket) {
	if !rt.Active {
		rt.Active = true
		rt.out = append(rt.out, TrackAdded{Name: rt.Name, Meta: rt.Meta})
	}

	if rt.measure != nil {
		mode, spatial, temporal := layerModeOf(pkt)
		if stats, ok := rt.measure.AddSample(nowMs, mode, spatial, temporal, len(pkt.Data)); ok {
			rt.lastStats = stats
			rt.out = append(rt.out, TrackStats{Stats: *stats})
		} else if pkt.IsKeyFrame() && rt.lastStats != nil {
			rt.out = append(rt.out, TrackStats{Stats: *rt.lastStats})
		}
	}

	rt.out = append(rt.out, TrackMedia{Pkt: pkt})
}

// OnTransportToggle handles a publisher-initiated enable/disable. When
// disabled while active, it deactivates and emits TrackRemoved.
func (rt *RemoteTrack) OnTransportToggle(reqID uint64, enable bool) {
	if !enable && rt.Active {
		rt.Active = false
		rt.out = append(rt.out, TrackRemoved{Name: rt.Name})
	}
	rt.out = append(rt.out, ToggleRes{ReqID: reqID, OK: true})
}

// consumerBitrateScale bounds a requested bitrate limit by what has
// actually been observed flowing on this track, so a stale or optimistic
// subscriber request cannot ask a publisher for more than it sends.
func (rt *RemoteTrack) consumerBitrateScale(requestedBps uint64) float64 {
	if rt.lastStats == nil || rt.lastStats.BitrateBps == 0 || requestedBps == 0 {
		return 1
	}
	measured := float64(rt.lastStats.BitrateBps)
	if float64(requestedBps) <= measured {
		return 1
	}
	return measured / float64(requestedBps)
}

// OnClusterFeedback handles feedback routed back from a subscriber via
// the owning channel. A bitrate limit is scaled and stored as the
// track's consumer limit; a keyframe request is forwarded to transport.
func (rt *RemoteTrack) OnClusterFeedback(fb wire.Feedback) {
	switch fb.Kind {
	case wire.FeedbackKeyframeRequest:
		rt.out = append(rt.out, TransportKeyFrameRequest{})
	case wire.FeedbackBitrate:
		scale := rt.consumerBitrateScale(fb.Max)
		limit := uint32(float64(fb.Max) * scale)
		rt.ConsumersLimit = &limit
	}
}

// PopOutput drains the next queued output, if any.
func (rt *RemoteTrack) PopOutput() (any, bool) {
	if len(rt.out) == 0 {
		return nil, false
	}
	o := rt.out[0]
	rt.out = rt.out[1:]
	return o, true
}

// Close deactivates the track if still active, emitting TrackRemoved.
func (rt *RemoteTrack) Close() {
	if rt.Active {
		rt.Active = false
		rt.out = append(rt.out, TrackRemoved{Name: rt.Name})
	}
}
