package endpoint

import (
	"github.com/meshsfu/router/internal/bitrate"
	"github.com/meshsfu/router/internal/track"
	"github.com/meshsfu/router/internal/wire"
)

// State is the endpoint's transport connection state.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// TransportState is a transport-signalled connection transition fed to
// OnTransportState.
type TransportState int

const (
	TransportConnected TransportState = iota
	TransportReconnecting
	TransportDisconnected
)

// --- RPC requests, dispatched via OnTransportRpc ---

type RpcToggle struct {
	TrackID string
	Enable  bool
}

type RpcSwitch struct {
	TrackID  string
	Source   track.Source
	Priority int
}

type RpcLimit struct {
	TrackID string
	Bps     uint32
}

type RpcDisconnect struct {
	TrackID string
}

// --- pop_output variants ---

// EventOutput carries an event meant for the transport that is not
// itself an RPC response (e.g. a remote peer's track showing up, or a
// keyframe request bubbling up from a RemoteTrack).
type EventOutput struct {
	Event any
}

// RpcResOutput carries exactly one response per RPC request.
type RpcResOutput struct {
	ReqID uint64
	Res   any
}

// ClusterOutput carries a control action destined for the room's
// pub/sub layer.
type ClusterOutput struct {
	Control any
}

// DestroyOutput signals the endpoint has fully torn down and may be
// freed. Reason is empty for a transport-initiated disconnect and
// "timeout" when OnTick forced the teardown after a stuck
// Connecting/Reconnecting state.
type DestroyOutput struct {
	Reason string
}

// --- transport-facing events ---

type PeerTrackAdded struct {
	Peer  string
	Track string
	Meta  track.Meta
}

type PeerTrackRemoved struct {
	Peer  string
	Track string
}

type KeyFrameRequested struct {
	TrackID string
}

// --- cluster-facing control actions ---

type JoinRoomControl struct {
	RoomID string
	PeerID string
}

type LeaveRoomControl struct {
	RoomID string
	PeerID string
}

type PublishTrackControl struct {
	TrackID string
	Name    string
	Meta    track.Meta
}

type UnpublishTrackControl struct {
	TrackID string
	Name    string
}

type TrackDataControl struct {
	TrackID string
	Pkt     *wire.MediaPacket
}

type TrackStatsControl struct {
	TrackID string
	Stats   bitrate.Stats
}

type SubscribeControl struct {
	TrackID string // the local track requesting the subscription
	Source  track.Source
}

type UnsubscribeControl struct {
	TrackID string
	Source  track.Source
}

type LimitBitrateControl struct {
	TrackID string
	Bps     uint32
}

type RequestKeyFrameControl struct {
	TrackID string
	Source  track.Source
}

// success/error helpers for RPC responses.
type RpcOK struct{ OK bool }
type RpcErr struct{ Reason string }
