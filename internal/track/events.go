// Package track implements the ingress (RemoteTrack) and egress
// (LocalTrack) halves of one media track inside an endpoint: activation
// bookkeeping, bitrate measurement, keyframe/bitrate feedback, and the
// codec packet selector driving egress layer selection.
package track

import (
	"github.com/meshsfu/router/internal/bitrate"
	"github.com/meshsfu/router/internal/wire"
)

// Kind distinguishes audio from video tracks.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

// Meta is the track metadata carried alongside its identity.
type Meta struct {
	Kind Kind
}

// Source identifies the (peer, track name) a LocalTrack currently pulls
// media from.
type Source struct {
	Peer  string
	Track string
}

// --- outputs routed to the cluster pub/sub layer ---

// TrackAdded is emitted the first time a RemoteTrack sees media.
type TrackAdded struct {
	Name string
	Meta Meta
}

// TrackRemoved is emitted when a RemoteTrack deactivates.
type TrackRemoved struct {
	Name string
}

// TrackMedia carries one packet to publish (from a RemoteTrack) or to
// hand to the transport (from a LocalTrack).
type TrackMedia struct {
	Pkt *wire.MediaPacket
}

// TrackStats carries a bitrate snapshot to publish alongside a track.
type TrackStats struct {
	Stats bitrate.Stats
}

// ClusterKeyFrameRequest asks the publisher, via the pub/sub channel
// feedback path, for a keyframe.
type ClusterKeyFrameRequest struct{}

// ClusterLimitBitrate asks the publisher to cap its send rate.
type ClusterLimitBitrate struct {
	Bps uint32
}

// ClusterSubscribe/ClusterUnsubscribe request a channel subscription
// change from a LocalTrack.
type ClusterSubscribe struct{ Source }
type ClusterUnsubscribe struct{ Source }

// --- outputs routed back to the transport ---

// TransportKeyFrameRequest asks the ingress transport (publisher side)
// for a keyframe, in response to cluster feedback on a RemoteTrack.
type TransportKeyFrameRequest struct{}

// ToggleRes/SwitchRes/LimitRes/DisconnectRes are RPC responses routed to
// the owning endpoint's transport.
type ToggleRes struct {
	ReqID uint64
	OK    bool
}
type SwitchRes struct {
	ReqID uint64
	OK    bool
}
type LimitRes struct {
	ReqID uint64
	OK    bool
}
type DisconnectRes struct {
	ReqID uint64
	OK    bool
}

// --- outputs routed to the owning endpoint's internal control plane ---

// SourceSet reports a LocalTrack's new source priority, for the
// endpoint's bitrate allocator.
type SourceSet struct {
	Priority int
}

// SourceRemove reports that a LocalTrack lost its source entirely.
type SourceRemove struct{}

// LimitUpdate reports a new bitrate limit request from the transport.
type LimitUpdate struct {
	Limit uint32
}
