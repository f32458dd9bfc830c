package endpoint

import (
	"testing"

	"github.com/meshsfu/router/internal/codecfilter"
	"github.com/meshsfu/router/internal/track"
	"github.com/meshsfu/router/internal/wire"
)

func TestNewWithGeneratedIDAssignsNonEmptyID(t *testing.T) {
	a := NewWithGeneratedID()
	b := NewWithGeneratedID()
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected a non-empty generated id")
	}
	if a.ID == b.ID {
		t.Fatal("expected two generated ids to differ")
	}
}

func TestSetRewriteTolerancesIgnoresNonPositiveValues(t *testing.T) {
	ep := New("ep1")
	ep.SetRewriteTolerances(500, 0)
	if ep.seqTolerance != 500 {
		t.Fatalf("got seqTolerance=%d, want 500", ep.seqTolerance)
	}
	if ep.tsTolerance != codecfilter.DefaultRewriteTolerance {
		t.Fatalf("got tsTolerance=%d, want unchanged default %d", ep.tsTolerance, codecfilter.DefaultRewriteTolerance)
	}
}

func TestOnTickForcesTimeoutWhileStuckConnecting(t *testing.T) {
	ep := New("ep1")
	ep.SetTransportTimeout(1000)

	ep.OnTick(0) // arms the deadline at t=0
	if ep.State() != StateConnecting {
		t.Fatalf("got state %v, want still Connecting before the deadline", ep.State())
	}

	ep.OnTick(999)
	if ep.State() != StateConnecting {
		t.Fatalf("got state %v, want still Connecting just under the deadline", ep.State())
	}
	if _, ok := ep.PopOutput(); ok {
		t.Fatal("expected no output before the deadline")
	}

	ep.OnTick(1000)
	if ep.State() != StateDisconnected {
		t.Fatalf("got state %v, want Disconnected after the deadline", ep.State())
	}
	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected a Destroy output once the deadline passes")
	}
	destroy, ok := out.(DestroyOutput)
	if !ok || destroy.Reason != "timeout" {
		t.Fatalf("got %#v, want DestroyOutput{Reason:\"timeout\"}", out)
	}
}

func TestOnTickDeadlineResetsOnReconnectAndClearsOnConnect(t *testing.T) {
	ep := New("ep1")
	ep.SetTransportTimeout(1000)
	ep.OnTransportState(0, TransportConnected)

	ep.OnTransportState(500, TransportReconnecting)
	ep.OnTick(1499) // < 500+1000, still within the fresh reconnect deadline
	if ep.State() != StateReconnecting {
		t.Fatalf("got state %v, want still Reconnecting", ep.State())
	}

	ep.OnTransportState(1500, TransportConnected)
	ep.OnTick(999_999)
	if ep.State() != StateConnected {
		t.Fatalf("got state %v, want Connected (deadline cleared on reconnect success)", ep.State())
	}
}

func TestJoinRoomBufferedUntilConnected(t *testing.T) {
	ep := New("ep1")
	ep.JoinRoom("room1", "peer1")

	if _, ok := ep.PopOutput(); ok {
		t.Fatal("expected no cluster output while still connecting")
	}

	ep.OnTransportState(0, TransportConnected)

	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected the buffered join to fire on connect")
	}
	join, ok := out.(ClusterOutput).Control.(JoinRoomControl)
	if !ok || join.RoomID != "room1" || join.PeerID != "peer1" {
		t.Fatalf("got %#v, want JoinRoomControl{room1,peer1}", out)
	}
}

func TestJoinRoomImmediateWhenAlreadyConnected(t *testing.T) {
	ep := New("ep1")
	ep.OnTransportState(0, TransportConnected)
	ep.JoinRoom("room1", "peer1")

	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected an immediate join output")
	}
	if _, ok := out.(ClusterOutput).Control.(JoinRoomControl); !ok {
		t.Fatalf("got %#v, want JoinRoomControl", out)
	}
}

func TestDisconnectLeavesRoomAndDestroys(t *testing.T) {
	ep := New("ep1")
	ep.OnTransportState(0, TransportConnected)
	ep.JoinRoom("room1", "peer1")
	ep.PopOutput() // JoinRoomControl

	ep.OnTransportState(0, TransportDisconnected)

	out, _ := ep.PopOutput()
	if leave, ok := out.(ClusterOutput).Control.(LeaveRoomControl); !ok || leave.RoomID != "room1" {
		t.Fatalf("got %#v, want LeaveRoomControl{room1,peer1}", out)
	}
	out, _ = ep.PopOutput()
	if _, ok := out.(DestroyOutput); !ok {
		t.Fatalf("got %#v, want DestroyOutput", out)
	}
	if ep.State() != StateDisconnected {
		t.Fatalf("got state %v, want Disconnected", ep.State())
	}
}

func TestRemoteTrackMediaRoutesToClusterPublish(t *testing.T) {
	ep := New("ep1")
	ep.AddRemoteTrack("rt1", "audio_main", track.Meta{Kind: track.KindAudio})

	ep.OnTransportMedia(0, "rt1", &wire.MediaPacket{Codec: wire.CodecOpus, Seq: 1, Ts: 0, Meta: wire.OpusMeta{}})

	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected a PublishTrackControl output")
	}
	pub, ok := out.(ClusterOutput).Control.(PublishTrackControl)
	if !ok || pub.TrackID != "rt1" || pub.Name != "audio_main" {
		t.Fatalf("got %#v, want PublishTrackControl{rt1,audio_main}", out)
	}
	out, ok = ep.PopOutput()
	if !ok {
		t.Fatal("expected a TrackDataControl output")
	}
	if data, ok := out.(ClusterOutput).Control.(TrackDataControl); !ok || data.TrackID != "rt1" {
		t.Fatalf("got %#v, want TrackDataControl{rt1}", out)
	}
}

func TestTransportRpcToggleUnknownTrackStillGetsOneResponse(t *testing.T) {
	ep := New("ep1")
	ep.OnTransportRpc(0, 42, RpcToggle{TrackID: "missing", Enable: false})

	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected an RpcRes even for an unknown track")
	}
	res, ok := out.(RpcResOutput)
	if !ok || res.ReqID != 42 {
		t.Fatalf("got %#v, want RpcResOutput{ReqID:42}", out)
	}
	if _, ok := res.Res.(RpcErr); !ok {
		t.Fatalf("got %#v, want RpcErr", res.Res)
	}
	if _, ok := ep.PopOutput(); ok {
		t.Fatal("expected exactly one output for an unknown-track RPC")
	}
}

func TestLocalTrackSwitchRoutesSubscribeAndRpcRes(t *testing.T) {
	ep := New("ep1")
	ep.AddLocalTrack("lt1", "video_main", track.Meta{Kind: track.KindVideo}, codecfilter.NewVP8SimulcastFilter(), 90000)

	ep.OnTransportRpc(0, 1, RpcSwitch{TrackID: "lt1", Source: track.Source{Peer: "peer2", Track: "video_main"}, Priority: 50})

	out, _ := ep.PopOutput()
	sub, ok := out.(ClusterOutput).Control.(SubscribeControl)
	if !ok || sub.Source.Peer != "peer2" {
		t.Fatalf("got %#v, want SubscribeControl{peer2}", out)
	}
	out, _ = ep.PopOutput()
	if _, ok := out.(ClusterOutput).Control.(RequestKeyFrameControl); !ok {
		t.Fatalf("got %#v, want RequestKeyFrameControl", out)
	}
	// next output is internal SourceSet bookkeeping, dropped silently; last is RpcRes.
	out, ok = ep.PopOutput()
	if !ok {
		t.Fatal("expected the RpcRes for the switch")
	}
	if res, ok := out.(RpcResOutput); ok {
		if _, ok := res.Res.(RpcOK); !ok {
			t.Fatalf("got %#v, want RpcOK", res.Res)
		}
		if res.ReqID != 1 {
			t.Fatalf("got reqID %d, want 1", res.ReqID)
		}
	} else {
		t.Fatalf("got %#v, want RpcResOutput", out)
	}
}

func TestTrackFeedbackRoutesBackThroughRemoteTrack(t *testing.T) {
	ep := New("ep1")
	ep.AddRemoteTrack("rt1", "video_main", track.Meta{Kind: track.KindVideo})
	ep.OnClusterFeedback("rt1", wire.Feedback{Kind: wire.FeedbackKeyframeRequest})

	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected an EventOutput for the keyframe request")
	}
	ev, ok := out.(EventOutput).Event.(KeyFrameRequested)
	if !ok || ev.TrackID != "rt1" {
		t.Fatalf("got %#v, want KeyFrameRequested{rt1}", out)
	}
}

func TestCloseIsIdempotentAndTearsDownTracks(t *testing.T) {
	ep := New("ep1")
	ep.OnTransportState(0, TransportConnected)
	ep.JoinRoom("room1", "peer1")
	ep.PopOutput()
	ep.AddRemoteTrack("rt1", "audio_main", track.Meta{Kind: track.KindAudio})
	ep.OnTransportMedia(0, "rt1", &wire.MediaPacket{Codec: wire.CodecOpus, Seq: 1, Ts: 0, Meta: wire.OpusMeta{}})
	ep.PopOutput() // PublishTrackControl
	ep.PopOutput() // TrackDataControl

	ep.Close()
	out, ok := ep.PopOutput()
	if !ok {
		t.Fatal("expected an UnpublishTrackControl on close")
	}
	if _, ok := out.(ClusterOutput).Control.(UnpublishTrackControl); !ok {
		t.Fatalf("got %#v, want UnpublishTrackControl", out)
	}
	out, _ = ep.PopOutput()
	if _, ok := out.(ClusterOutput).Control.(LeaveRoomControl); !ok {
		t.Fatalf("got %#v, want LeaveRoomControl", out)
	}
	out, _ = ep.PopOutput()
	if _, ok := out.(DestroyOutput); !ok {
		t.Fatalf("got %#v, want DestroyOutput", out)
	}

	ep.Close() // idempotent: no further output
	if _, ok := ep.PopOutput(); ok {
		t.Fatal("expected Close to be a no-op the second time")
	}
}
