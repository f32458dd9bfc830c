// Package endpoint implements the per-connection state machine sitting
// between one transport (a WHIP/WHEP/SIP session, out of scope here) and
// the cluster pub/sub layer: connection state, RPC dispatch, and the
// set of RemoteTrack/LocalTrack instances the transport has created.
package endpoint

import (
	"github.com/rs/xid"

	"github.com/meshsfu/router/internal/codecfilter"
	"github.com/meshsfu/router/internal/track"
	"github.com/meshsfu/router/internal/wire"
)

// pendingJoin holds a JoinRoom call received before the transport
// reached Connected; it is replayed once the connection completes.
type pendingJoin struct {
	roomID string
	peerID string
}

// room identifies the cluster room/peer pair this endpoint is a member
// of, once joined.
type room struct {
	roomID string
	peerID string
}

// DefaultTransportTimeoutMs bounds how long an endpoint may sit in
// Connecting or Reconnecting before OnTick forces a timeout disconnect.
const DefaultTransportTimeoutMs int64 = 15_000

// Endpoint owns one connection's remote/local tracks and drives them
// against transport events, cluster events, and transport RPCs. All
// methods are synchronous; callers drain PopOutput after each call.
type Endpoint struct {
	ID string

	state   State
	pending *pendingJoin
	room    *room

	remoteTracks map[string]*track.RemoteTrack
	localTracks  map[string]*track.LocalTrack

	seqTolerance int
	tsTolerance  int

	transportTimeoutMs int64
	stateEnteredAt     int64

	closed bool

	out []any
}

// New returns a new endpoint in the Connecting state, with local
// tracks' seq/ts rewriters defaulted to codecfilter.DefaultRewriteTolerance
// and the connect/reconnect deadline defaulted to DefaultTransportTimeoutMs;
// call SetRewriteTolerances/SetTransportTimeout to apply configured values
// instead.
func New(id string) *Endpoint {
	return &Endpoint{
		ID:                 id,
		state:              StateConnecting,
		remoteTracks:       make(map[string]*track.RemoteTrack),
		localTracks:        make(map[string]*track.LocalTrack),
		seqTolerance:       codecfilter.DefaultRewriteTolerance,
		tsTolerance:        codecfilter.DefaultRewriteTolerance,
		transportTimeoutMs: DefaultTransportTimeoutMs,
		stateEnteredAt:     -1,
	}
}

// SetRewriteTolerances configures the seq/ts rewrite tolerance applied
// to local tracks added after this call (<=0 leaves the current value
// unchanged).
func (e *Endpoint) SetRewriteTolerances(seqTolerance, tsTolerance int) {
	if seqTolerance > 0 {
		e.seqTolerance = seqTolerance
	}
	if tsTolerance > 0 {
		e.tsTolerance = tsTolerance
	}
}

// SetTransportTimeout configures how long OnTick lets a Connecting or
// Reconnecting endpoint sit before forcing a timeout disconnect (<=0
// leaves the current value unchanged).
func (e *Endpoint) SetTransportTimeout(ms int64) {
	if ms > 0 {
		e.transportTimeoutMs = ms
	}
}

// NewWithGeneratedID returns a new endpoint whose id is a freshly
// minted xid, for transports that don't already have a stable
// connection identifier to hand in.
func NewWithGeneratedID() *Endpoint {
	return New(xid.New().String())
}

// State returns the endpoint's current connection state.
func (e *Endpoint) State() State { return e.state }

// JoinRoom requests cluster membership. If the transport has not yet
// reached Connected, the request is buffered and replayed once it does.
func (e *Endpoint) JoinRoom(roomID, peerID string) {
	if e.state != StateConnected {
		e.pending = &pendingJoin{roomID: roomID, peerID: peerID}
		return
	}
	e.doJoin(roomID, peerID)
}

func (e *Endpoint) doJoin(roomID, peerID string) {
	e.room = &room{roomID: roomID, peerID: peerID}
	e.out = append(e.out, ClusterOutput{Control: JoinRoomControl{RoomID: roomID, PeerID: peerID}})
}

func (e *Endpoint) doLeave() {
	if e.room == nil {
		return
	}
	r := e.room
	e.room = nil
	e.out = append(e.out, ClusterOutput{Control: LeaveRoomControl{RoomID: r.roomID, PeerID: r.peerID}})
}

// OnTransportState applies a transport connection transition. A
// transition into Connected replays a buffered JoinRoom, if any, and
// clears the connect/reconnect deadline; a transition into Reconnecting
// starts a fresh deadline; a transition into Disconnected leaves the
// room (if joined) and emits a Destroy output.
func (e *Endpoint) OnTransportState(nowMs int64, s TransportState) {
	switch s {
	case TransportConnected:
		wasConnecting := e.state == StateConnecting
		e.state = StateConnected
		e.stateEnteredAt = -1
		if wasConnecting && e.pending != nil {
			p := e.pending
			e.pending = nil
			e.doJoin(p.roomID, p.peerID)
		}
	case TransportReconnecting:
		e.state = StateReconnecting
		e.stateEnteredAt = nowMs
	case TransportDisconnected:
		e.state = StateDisconnected
		e.stateEnteredAt = -1
		e.doLeave()
		e.out = append(e.out, DestroyOutput{})
	}
}

// AddRemoteTrack registers a new published track, grounded on a
// transport-assigned track id and the filter-free ingress side. It is a
// no-op if the id is already registered.
func (e *Endpoint) AddRemoteTrack(id, name string, meta track.Meta) {
	if _, exists := e.remoteTracks[id]; exists {
		return
	}
	uuid := id
	if e.room != nil {
		uuid = e.room.roomID + "/" + e.room.peerID + "/" + name
	}
	e.remoteTracks[id] = track.NewRemoteTrack(uuid, id, name, meta)
}

// RemoveRemoteTrack tears down a published track, draining any final
// output (a TrackRemoved, if it was active) before discarding it.
func (e *Endpoint) RemoveRemoteTrack(id string) {
	rt, ok := e.remoteTracks[id]
	if !ok {
		return
	}
	rt.Close()
	e.drainRemote(id, rt)
	delete(e.remoteTracks, id)
}

// AddLocalTrack registers a new subscribed track with no source yet.
func (e *Endpoint) AddLocalTrack(id, name string, meta track.Meta, filter codecfilter.ScalableFilter, sampleRate uint64) {
	if _, exists := e.localTracks[id]; exists {
		return
	}
	e.localTracks[id] = track.NewLocalTrack(id, name, meta, filter, sampleRate, e.seqTolerance, e.tsTolerance)
}

// RemoveLocalTrack tears down a subscribed track, unsubscribing its
// live source if any.
func (e *Endpoint) RemoveLocalTrack(id string) {
	lt, ok := e.localTracks[id]
	if !ok {
		return
	}
	lt.Close()
	e.drainLocal(id, lt)
	delete(e.localTracks, id)
}

// OnTransportMedia feeds one ingress packet into the named remote
// track.
func (e *Endpoint) OnTransportMedia(nowMs int64, trackID string, pkt *wire.MediaPacket) {
	rt, ok := e.remoteTracks[trackID]
	if !ok {
		return
	}
	rt.OnMedia(nowMs, pkt)
	e.drainRemote(trackID, rt)
}

// OnClusterMedia feeds one packet arriving on a subscribed channel into
// the named local track.
func (e *Endpoint) OnClusterMedia(nowMs int64, trackID string, pkt *wire.MediaPacket) {
	lt, ok := e.localTracks[trackID]
	if !ok {
		return
	}
	lt.OnClusterMedia(nowMs, pkt)
	e.drainLocal(trackID, lt)
}

// OnClusterFeedback routes feedback addressed to one published track
// back to its RemoteTrack.
func (e *Endpoint) OnClusterFeedback(trackID string, fb wire.Feedback) {
	rt, ok := e.remoteTracks[trackID]
	if !ok {
		return
	}
	rt.OnClusterFeedback(fb)
	e.drainRemote(trackID, rt)
}

// OnClusterPeerTrack notifies the transport that a remote peer in the
// same room published or unpublished a track, so the client can decide
// whether to subscribe.
func (e *Endpoint) OnClusterPeerTrack(added bool, peer, trackName string, meta track.Meta) {
	if added {
		e.out = append(e.out, EventOutput{Event: PeerTrackAdded{Peer: peer, Track: trackName, Meta: meta}})
		return
	}
	e.out = append(e.out, EventOutput{Event: PeerTrackRemoved{Peer: peer, Track: trackName}})
}

// OnTransportRpc dispatches one transport RPC request to the matching
// track and guarantees exactly one RpcRes is queued in response, even
// when the named track does not exist.
func (e *Endpoint) OnTransportRpc(nowMs int64, reqID uint64, req any) {
	switch r := req.(type) {
	case RpcToggle:
		rt, ok := e.remoteTracks[r.TrackID]
		if !ok {
			e.out = append(e.out, RpcResOutput{ReqID: reqID, Res: RpcErr{Reason: "unknown track"}})
			return
		}
		rt.OnTransportToggle(reqID, r.Enable)
		e.drainRemote(r.TrackID, rt)

	case RpcSwitch:
		lt, ok := e.localTracks[r.TrackID]
		if !ok {
			e.out = append(e.out, RpcResOutput{ReqID: reqID, Res: RpcErr{Reason: "unknown track"}})
			return
		}
		lt.OnTransportSwitch(nowMs, reqID, r.Source, r.Priority)
		e.drainLocal(r.TrackID, lt)

	case RpcLimit:
		lt, ok := e.localTracks[r.TrackID]
		if !ok {
			e.out = append(e.out, RpcResOutput{ReqID: reqID, Res: RpcErr{Reason: "unknown track"}})
			return
		}
		lt.OnTransportLimit(reqID, r.Bps)
		e.drainLocal(r.TrackID, lt)

	case RpcDisconnect:
		lt, ok := e.localTracks[r.TrackID]
		if !ok {
			e.out = append(e.out, RpcResOutput{ReqID: reqID, Res: RpcErr{Reason: "unknown track"}})
			return
		}
		lt.OnTransportDisconnect(nowMs, reqID)
		e.drainLocal(r.TrackID, lt)

	default:
		e.out = append(e.out, RpcResOutput{ReqID: reqID, Res: RpcErr{Reason: "unsupported request"}})
	}
}

// drainRemote forwards a RemoteTrack's queued outputs to the endpoint's
// own queue, translating each to the matching Cluster/Event/RpcRes
// output and tagging it with the owning track id.
func (e *Endpoint) drainRemote(trackID string, rt *track.RemoteTrack) {
	for {
		o, ok := rt.PopOutput()
		if !ok {
			return
		}
		switch v := o.(type) {
		case track.TrackAdded:
			e.out = append(e.out, ClusterOutput{Control: PublishTrackControl{TrackID: trackID, Name: v.Name, Meta: v.Meta}})
		case track.TrackRemoved:
			e.out = append(e.out, ClusterOutput{Control: UnpublishTrackControl{TrackID: trackID, Name: v.Name}})
		case track.TrackMedia:
			e.out = append(e.out, ClusterOutput{Control: TrackDataControl{TrackID: trackID, Pkt: v.Pkt}})
		case track.TrackStats:
			e.out = append(e.out, ClusterOutput{Control: TrackStatsControl{TrackID: trackID, Stats: v.Stats}})
		case track.TransportKeyFrameRequest:
			e.out = append(e.out, EventOutput{Event: KeyFrameRequested{TrackID: trackID}})
		case track.ToggleRes:
			e.out = append(e.out, RpcResOutput{ReqID: v.ReqID, Res: RpcOK{OK: v.OK}})
		}
	}
}

// drainLocal forwards a LocalTrack's queued outputs to the endpoint's
// own queue, in the same fashion as drainRemote.
func (e *Endpoint) drainLocal(trackID string, lt *track.LocalTrack) {
	for {
		o, ok := lt.PopOutput()
		if !ok {
			return
		}
		switch v := o.(type) {
		case track.TrackMedia:
			e.out = append(e.out, EventOutput{Event: TrackDataControl{TrackID: trackID, Pkt: v.Pkt}})
		case track.ClusterKeyFrameRequest:
			e.out = append(e.out, ClusterOutput{Control: RequestKeyFrameControl{TrackID: trackID, Source: derefSource(lt.Source)}})
		case track.ClusterLimitBitrate:
			e.out = append(e.out, ClusterOutput{Control: LimitBitrateControl{TrackID: trackID, Bps: v.Bps}})
		case track.ClusterSubscribe:
			e.out = append(e.out, ClusterOutput{Control: SubscribeControl{TrackID: trackID, Source: v.Source}})
		case track.ClusterUnsubscribe:
			e.out = append(e.out, ClusterOutput{Control: UnsubscribeControl{TrackID: trackID, Source: v.Source}})
		case track.SwitchRes:
			e.out = append(e.out, RpcResOutput{ReqID: v.ReqID, Res: RpcOK{OK: v.OK}})
		case track.LimitRes:
			e.out = append(e.out, RpcResOutput{ReqID: v.ReqID, Res: RpcOK{OK: v.OK}})
		case track.DisconnectRes:
			e.out = append(e.out, RpcResOutput{ReqID: v.ReqID, Res: RpcOK{OK: v.OK}})
		case track.SourceSet, track.SourceRemove, track.LimitUpdate:
			// internal bookkeeping only; no endpoint-level output.
		}
	}
}

func derefSource(s *track.Source) track.Source {
	if s == nil {
		return track.Source{}
	}
	return *s
}

// OnTick runs periodic, time-driven bookkeeping: an endpoint stuck in
// Connecting or Reconnecting past the configured transport timeout is
// forced to Disconnected and destroyed. The deadline is armed lazily on
// the first tick observed in either state, so the clock starts from
// whatever nowMs OnTick first sees rather than from construction time.
func (e *Endpoint) OnTick(nowMs int64) {
	if e.state != StateConnecting && e.state != StateReconnecting {
		return
	}
	if e.stateEnteredAt < 0 {
		e.stateEnteredAt = nowMs
		return
	}
	if nowMs-e.stateEnteredAt < e.transportTimeoutMs {
		return
	}
	e.state = StateDisconnected
	e.stateEnteredAt = -1
	e.doLeave()
	e.out = append(e.out, DestroyOutput{Reason: "timeout"})
}

// PopOutput drains the next queued output, if any.
func (e *Endpoint) PopOutput() (any, bool) {
	if len(e.out) == 0 {
		return nil, false
	}
	o := e.out[0]
	e.out = e.out[1:]
	return o, true
}

// Close tears down every track and leaves the room, if joined. Safe to
// call more than once.
func (e *Endpoint) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for id := range e.remoteTracks {
		e.RemoveRemoteTrack(id)
	}
	for id := range e.localTracks {
		e.RemoveLocalTrack(id)
	}
	e.doLeave()
	e.out = append(e.out, DestroyOutput{})
}
