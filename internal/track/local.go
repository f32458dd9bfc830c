package track

import (
	"github.com/meshsfu/router/internal/codecfilter"
	"github.com/meshsfu/router/internal/wire"
)

// LocalTrack is the egress side of one subscribed track: it owns the
// codec packet selector for this receiver and reacts to transport RPCs
// (Switch/Limit/Disconnect) by changing subscription and target layer.
type LocalTrack struct {
	ID     string
	Name   string
	Meta   Meta
	Source *Source

	selector *codecfilter.Selector

	out []any
}

// NewLocalTrack returns a local track with no source, driving filter at
// the given codec sample rate. seqTolerance/tsTolerance configure the
// selector's seq/ts rewriters (<=0 falls back to
// codecfilter.DefaultRewriteTolerance).
func NewLocalTrack(id, name string, meta Meta, filter codecfilter.ScalableFilter, sampleRate uint64, seqTolerance, tsTolerance int) *LocalTrack {
	return &LocalTrack{
		ID:       id,
		Name:     name,
		Meta:     meta,
		selector: codecfilter.NewSelector(filter, sampleRate, seqTolerance, tsTolerance),
	}
}

// SetTarget applies a new layer/quality target, requesting a keyframe
// from the publisher via the cluster channel when the change requires
// one.
func (lt *LocalTrack) SetTarget(t codecfilter.Target) {
	if lt.selector.SetTarget(t) {
		lt.out = append(lt.out, ClusterKeyFrameRequest{})
	}
}

// SetBitrate requests that the publisher cap its send rate.
func (lt *LocalTrack) SetBitrate(bps uint32) {
	lt.out = append(lt.out, ClusterLimitBitrate{Bps: bps})
}

// OnClusterMedia feeds one packet from the subscribed channel through
// the selector, queuing the rewritten packet for the transport if the
// selector accepts it.
func (lt *LocalTrack) OnClusterMedia(nowMs int64, pkt *wire.MediaPacket) {
	if out := lt.selector.Process(nowMs, pkt); out != nil {
		lt.out = append(lt.out, TrackMedia{Pkt: out})
	}
}

// OnTransportKeyFrameRequest forwards a receiver-initiated keyframe
// request to the publisher via the cluster channel.
func (lt *LocalTrack) OnTransportKeyFrameRequest() {
	lt.out = append(lt.out, ClusterKeyFrameRequest{})
}

// OnTransportSwitch changes the track's source. If the source actually
// differs from the current one, it resets the selector (forgetting the
// acquired layer but not the target), unsubscribes the old source,
// subscribes the new one, and — for video — requests a keyframe.
func (lt *LocalTrack) OnTransportSwitch(nowMs int64, reqID uint64, newSource Source, priority int) {
	if lt.Source == nil || *lt.Source != newSource {
		lt.selector.ResetSource(nowMs)
		old := lt.Source
		src := newSource
		lt.Source = &src
		if old != nil {
			lt.out = append(lt.out, ClusterUnsubscribe{Source: *old})
		}
		lt.out = append(lt.out, ClusterSubscribe{Source: newSource})
		if lt.Meta.Kind == KindVideo {
			lt.out = append(lt.out, ClusterKeyFrameRequest{})
		}
	}

	if lt.Meta.Kind == KindVideo {
		lt.out = append(lt.out, SourceSet{Priority: priority})
	}
	lt.out = append(lt.out, SwitchRes{ReqID: reqID, OK: true})
}

// OnTransportLimit applies a transport-requested bitrate limit.
func (lt *LocalTrack) OnTransportLimit(reqID uint64, limitBps uint32) {
	lt.out = append(lt.out, LimitUpdate{Limit: limitBps})
	lt.out = append(lt.out, LimitRes{ReqID: reqID, OK: true})
}

// OnTransportDisconnect drops the current source, if any.
func (lt *LocalTrack) OnTransportDisconnect(nowMs int64, reqID uint64) {
	if lt.Source != nil {
		lt.selector.ResetSource(nowMs)
		old := *lt.Source
		lt.Source = nil
		lt.out = append(lt.out, ClusterUnsubscribe{Source: old})
		if lt.Meta.Kind == KindVideo {
			lt.out = append(lt.out, SourceRemove{})
		}
	}
	lt.out = append(lt.out, DisconnectRes{ReqID: reqID, OK: true})
}

// PopOutput drains the next queued output, if any.
func (lt *LocalTrack) PopOutput() (any, bool) {
	if len(lt.out) == 0 {
		return nil, false
	}
	o := lt.out[0]
	lt.out = lt.out[1:]
	return o, true
}

// Close unsubscribes from any live source.
func (lt *LocalTrack) Close() {
	if lt.Source != nil {
		old := *lt.Source
		lt.Source = nil
		lt.out = append(lt.out, ClusterUnsubscribe{Source: old})
	}
}
