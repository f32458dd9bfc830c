package track

import (
	"testing"

	"github.com/meshsfu/router/internal/wire"
)

func audioPkt(seq uint16, ts uint32, data []byte) *wire.MediaPacket {
	return &wire.MediaPacket{Codec: wire.CodecOpus, Seq: seq, Ts: ts, Data: data, Meta: wire.OpusMeta{}}
}

func TestRemoteTrackActivatesOnFirstMedia(t *testing.T) {
	rt := NewRemoteTrack("uuid-1", "t1", "audio_main", Meta{Kind: KindAudio})

	rt.OnMedia(0, audioPkt(1, 0, []byte{1, 2, 3}))

	out, ok := rt.PopOutput()
	if !ok {
		t.Fatal("expected a queued output")
	}
	added, ok := out.(TrackAdded)
	if !ok || added.Name != "audio_main" {
		t.Fatalf("got %#v, want TrackAdded{audio_main}", out)
	}

	out, ok = rt.PopOutput()
	if !ok {
		t.Fatal("expected a second queued output")
	}
	if _, ok := out.(TrackMedia); !ok {
		t.Fatalf("got %#v, want TrackMedia", out)
	}

	if _, ok := rt.PopOutput(); ok {
		t.Fatal("expected no further output")
	}

	// second packet: already active, no second TrackAdded.
	rt.OnMedia(20, audioPkt(2, 160, []byte{4}))
	out, ok = rt.PopOutput()
	if !ok {
		t.Fatal("expected an output for the second packet")
	}
	if _, ok := out.(TrackMedia); !ok {
		t.Fatalf("got %#v, want TrackMedia", out)
	}
	if _, ok := rt.PopOutput(); ok {
		t.Fatal("expected no TrackAdded on a second packet")
	}
}

func TestRemoteTrackToggleOffDeactivates(t *testing.T) {
	rt := NewRemoteTrack("uuid-1", "t1", "audio_main", Meta{Kind: KindAudio})
	rt.OnMedia(0, audioPkt(1, 0, nil))
	rt.PopOutput() // TrackAdded
	rt.PopOutput() // TrackMedia

	rt.OnTransportToggle(7, false)

	out, _ := rt.PopOutput()
	if _, ok := out.(TrackRemoved); !ok {
		t.Fatalf("got %#v, want TrackRemoved", out)
	}
	out, _ = rt.PopOutput()
	res, ok := out.(ToggleRes)
	if !ok || res.ReqID != 7 || !res.OK {
		t.Fatalf("got %#v, want ToggleRes{7,true}", out)
	}
	if rt.Active {
		t.Fatal("expected track to be inactive after toggle off")
	}
}

func TestRemoteTrackKeyframeFeedbackForwardsToTransport(t *testing.T) {
	rt := NewRemoteTrack("uuid-1", "t1", "video_main", Meta{Kind: KindVideo})
	rt.OnClusterFeedback(wire.Feedback{Kind: wire.FeedbackKeyframeRequest})

	out, ok := rt.PopOutput()
	if !ok {
		t.Fatal("expected a queued output")
	}
	if _, ok := out.(TransportKeyFrameRequest); !ok {
		t.Fatalf("got %#v, want TransportKeyFrameRequest", out)
	}
}

func TestRemoteTrackBitrateFeedbackStoresConsumerLimit(t *testing.T) {
	rt := NewRemoteTrack("uuid-1", "t1", "video_main", Meta{Kind: KindVideo})

	rt.OnClusterFeedback(wire.Feedback{Kind: wire.FeedbackBitrate, Min: 1000, Max: 5000})

	if rt.ConsumersLimit == nil {
		t.Fatal("expected a consumers limit to be set")
	}
	if *rt.ConsumersLimit != 5000 {
		t.Fatalf("got %d, want 5000 (no measurement yet, scale defaults to 1)", *rt.ConsumersLimit)
	}
}

func TestRemoteTrackCloseEmitsTrackRemovedOnlyIfActive(t *testing.T) {
	rt := NewRemoteTrack("uuid-1", "t1", "audio_main", Meta{Kind: KindAudio})
	rt.Close()
	if _, ok := rt.PopOutput(); ok {
		t.Fatal("expected no output closing an inactive track")
	}

	rt.OnMedia(0, audioPkt(1, 0, nil))
	rt.PopOutput()
	rt.PopOutput()

	rt.Close()
	out, ok := rt.PopOutput()
	if !ok {
		t.Fatal("expected TrackRemoved closing an active track")
	}
	if _, ok := out.(TrackRemoved); !ok {
		t.Fatalf("got %#v, want TrackRemoved", out)
	}
}
