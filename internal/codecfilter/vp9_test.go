package codecfilter

import (
	"testing"

	"github.com/meshsfu/router/internal/wire"
)

func vp9Packet(isKey bool, spatial, temporal uint8, begin, switching bool, picID *uint16) *wire.MediaPacket {
	return &wire.MediaPacket{
		Codec: wire.CodecVP9,
		Meta: wire.VP9Meta{
			Key: isKey,
			SVC: &wire.VP9SVC{
				Spatial:        spatial,
				Temporal:       temporal,
				Begin:          begin,
				End:            true,
				SwitchingPoint: switching,
				PictureID:      picID,
			},
		},
	}
}

func TestVP9SVCSpatialUpswitchRequiresKeyframe(t *testing.T) {
	f := NewVP9SVCFilter()
	f.SetTargetLayer(0, 0, false)

	res, changed := f.ShouldSend(vp9Packet(true, 0, 0, true, true, nil))
	if res != Send || !changed {
		t.Fatalf("initial keyframe: got (%v,%v)", res, changed)
	}

	f.SetTargetLayer(1, 0, false)

	res, changed = f.ShouldSend(vp9Packet(false, 1, 0, true, true, nil))
	if res != Reject {
		t.Fatalf("non-key spatial switch attempt: got (%v,%v), want Reject", res, changed)
	}
	if res, _ = f.ShouldSend(vp9Packet(false, 0, 0, true, false, nil)); res != Send {
		t.Fatalf("old layer should keep sending: got %v", res)
	}

	// The switch must land on the keyframe's base layer (spatial 0), not
	// the target layer itself, so the base layer the decoder needs is
	// still ahead of us and gets forwarded rather than skipped.
	res, changed = f.ShouldSend(vp9Packet(true, 0, 0, true, true, nil))
	if res != Send || !changed {
		t.Fatalf("keyframe base layer triggers the switch: got (%v,%v), want (Send,true)", res, changed)
	}

	res, changed = f.ShouldSend(vp9Packet(true, 1, 0, false, false, nil))
	if res != Send || changed {
		t.Fatalf("target spatial layer of the same keyframe: got (%v,%v), want (Send,false)", res, changed)
	}
}

func TestVP9SVCAllowForwardsBaseLayersUpToTarget(t *testing.T) {
	f := NewVP9SVCFilter()
	f.SetTargetLayer(2, 0, false)

	if res, _ := f.ShouldSend(vp9Packet(true, 0, 0, true, true, nil)); res != Send {
		t.Fatalf("base layer (spatial 0) below target should forward: got %v", res)
	}
	if res, _ := f.ShouldSend(vp9Packet(true, 1, 0, false, false, nil)); res != Send {
		t.Fatalf("mid layer (spatial 1) below target should forward: got %v", res)
	}
	if res, _ := f.ShouldSend(vp9Packet(true, 2, 0, false, false, nil)); res != Send {
		t.Fatalf("target layer (spatial 2) itself should forward: got %v", res)
	}
	if res, _ := f.ShouldSend(vp9Packet(true, 3, 0, false, false, nil)); res != Reject {
		t.Fatalf("layer above target (spatial 3) should be rejected: got %v", res)
	}
}

func TestVP9SVCTemporalUpswitchRequiresSwitchingPoint(t *testing.T) {
	f := NewVP9SVCFilter()
	f.SetTargetLayer(0, 0, false)
	f.ShouldSend(vp9Packet(true, 0, 0, true, true, nil))

	f.SetTargetLayer(0, 1, false)

	if res, _ := f.ShouldSend(vp9Packet(false, 0, 1, true, false, nil)); res != Drop {
		t.Fatalf("temporal upswitch without switching point should stay on old layer and drop: got %v", res)
	}

	res, changed := f.ShouldSend(vp9Packet(false, 0, 1, true, true, nil))
	if res != Send || changed {
		t.Fatalf("temporal upswitch at switching point: got (%v,%v), want (Send,false)", res, changed)
	}
}

func TestVP9SVCPictureIDRewrite(t *testing.T) {
	f := NewVP9SVCFilter()
	f.SetTargetLayer(0, 0, false)

	id1 := uint16(500)
	pkt := vp9Packet(true, 0, 0, true, true, &id1)
	f.ShouldSend(pkt)
	if *pkt.Meta.(wire.VP9Meta).SVC.PictureID != 1 {
		t.Fatalf("first accepted picture id should rewrite to 1, got %d", *pkt.Meta.(wire.VP9Meta).SVC.PictureID)
	}

	id2 := uint16(501)
	pkt2 := vp9Packet(false, 0, 0, true, false, &id2)
	f.ShouldSend(pkt2)
	if *pkt2.Meta.(wire.VP9Meta).SVC.PictureID != 2 {
		t.Fatalf("second picture id should rewrite to 2, got %d", *pkt2.Meta.(wire.VP9Meta).SVC.PictureID)
	}
}
