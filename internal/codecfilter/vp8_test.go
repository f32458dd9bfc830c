package codecfilter

import (
	"testing"

	"github.com/meshsfu/router/internal/wire"
)

func vp8Packet(isKey bool, spatial, temporal uint8, picID, tl0 *uint16pair) *wire.MediaPacket {
	var pictureID *uint16
	var tl0idx *uint8
	if picID != nil {
		v := picID.asUint16()
		pictureID = &v
	}
	if tl0 != nil {
		v := uint8(tl0.asUint16())
		tl0idx = &v
	}
	return &wire.MediaPacket{
		Codec: wire.CodecVP8,
		Meta: wire.VP8Meta{
			Key: isKey,
			Simulcast: &wire.VP8Simulcast{
				Spatial:   spatial,
				Temporal:  temporal,
				LayerSync: false,
				PictureID: pictureID,
				TL0PicIdx: tl0idx,
			},
		},
	}
}

// uint16pair is a tiny adapter so call sites can write nil or a literal.
type uint16pair uint16

func (u uint16pair) asUint16() uint16 { return uint16(u) }

func p(v uint16) *uint16pair {
	u := uint16pair(v)
	return &u
}

func vp8PacketSync(isKey bool, spatial, temporal uint8, picID, tl0 *uint16pair, layerSync bool) *wire.MediaPacket {
	pkt := vp8Packet(isKey, spatial, temporal, picID, tl0)
	pkt.Meta.(wire.VP8Meta).Simulcast.LayerSync = layerSync
	return pkt
}

func vp8PicID(pkt *wire.MediaPacket) *uint16 {
	return pkt.Meta.(wire.VP8Meta).Simulcast.PictureID
}

func vp8TL0(pkt *wire.MediaPacket) *uint8 {
	return pkt.Meta.(wire.VP8Meta).Simulcast.TL0PicIdx
}

func assertU16Eq(t *testing.T, index int, got *uint16, want *uint16pair) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Fatalf("index %d: got %d, want nil", index, *got)
		}
		return
	}
	if got == nil || *got != want.asUint16() {
		t.Fatalf("index %d: got %v, want %d", index, got, want.asUint16())
	}
}

func assertU8Eq(t *testing.T, index int, got *uint8, want *uint16pair) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Fatalf("index %d: got %d, want nil", index, *got)
		}
		return
	}
	if got == nil || uint16(*got) != want.asUint16() {
		t.Fatalf("index %d: got %v, want %d", index, got, want.asUint16())
	}
}

func TestVP8SimulcastSimpleGating(t *testing.T) {
	f := NewVP8SimulcastFilter()

	if need := f.SetTargetLayer(0, 1, false); !need {
		t.Fatal("expected keyframe request on first SetTargetLayer")
	}

	pkt := vp8Packet(false, 0, 0, nil, nil)
	res, changed := f.ShouldSend(pkt)
	if res != Reject || changed {
		t.Fatalf("index 1: got (%v,%v), want (Reject,false)", res, changed)
	}

	pkt = vp8PacketSync(true, 0, 0, nil, nil, true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || !changed {
		t.Fatalf("index 2: got (%v,%v), want (Send,true)", res, changed)
	}

	pkt = vp8PacketSync(true, 0, 2, nil, nil, true)
	res, changed = f.ShouldSend(pkt)
	if res != Drop || changed {
		t.Fatalf("index 3: got (%v,%v), want (Drop,false)", res, changed)
	}

	if need := f.SetTargetLayer(1, 2, false); !need {
		t.Fatal("expected keyframe request on spatial change")
	}

	pkt = vp8Packet(false, 0, 0, nil, nil)
	res, changed = f.ShouldSend(pkt)
	if res != Send || changed {
		t.Fatalf("index 5: got (%v,%v), want (Send,false)", res, changed)
	}

	pkt = vp8PacketSync(false, 1, 0, nil, nil, true)
	res, changed = f.ShouldSend(pkt)
	if res != Reject || changed {
		t.Fatalf("index 6: got (%v,%v), want (Reject,false)", res, changed)
	}

	pkt = vp8PacketSync(true, 1, 0, nil, nil, true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || !changed {
		t.Fatalf("index 7: got (%v,%v), want (Send,true)", res, changed)
	}

	pkt = vp8PacketSync(true, 1, 2, nil, nil, true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || changed {
		t.Fatalf("index 8: got (%v,%v), want (Send,false)", res, changed)
	}
}

func TestVP8SimulcastRewritePictureIDTemporalIncrease(t *testing.T) {
	f := NewVP8SimulcastFilter()
	f.SetTargetLayer(0, 1, false)

	pkt := vp8Packet(false, 0, 0, p(1), p(1))
	res, changed := f.ShouldSend(pkt)
	if res != Reject || changed {
		t.Fatalf("pkt1: got (%v,%v)", res, changed)
	}

	pkt = vp8PacketSync(true, 0, 0, p(2), p(2), true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || !changed {
		t.Fatalf("pkt2: got (%v,%v)", res, changed)
	}
	assertU16Eq(t, 2, vp8PicID(pkt), p(1))
	assertU8Eq(t, 2, vp8TL0(pkt), p(1))

	pkt = vp8PacketSync(false, 0, 1, p(3), p(2), true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || changed {
		t.Fatalf("pkt3: got (%v,%v)", res, changed)
	}
	assertU16Eq(t, 3, vp8PicID(pkt), p(2))
	assertU8Eq(t, 3, vp8TL0(pkt), p(1))

	f.SetTargetLayer(0, 2, false)

	pkt = vp8Packet(false, 0, 2, p(4), p(2))
	res, changed = f.ShouldSend(pkt)
	if res != Drop || changed {
		t.Fatalf("pkt4: got (%v,%v), want (Drop,false)", res, changed)
	}

	pkt = vp8PacketSync(false, 0, 2, p(5), p(2), true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || changed {
		t.Fatalf("pkt5: got (%v,%v)", res, changed)
	}
	assertU16Eq(t, 5, vp8PicID(pkt), p(3))
	assertU8Eq(t, 5, vp8TL0(pkt), p(1))

	pkt = vp8PacketSync(false, 0, 0, p(6), p(3), true)
	res, changed = f.ShouldSend(pkt)
	if res != Send || changed {
		t.Fatalf("pkt6: got (%v,%v)", res, changed)
	}
	assertU16Eq(t, 6, vp8PicID(pkt), p(4))
	assertU8Eq(t, 6, vp8TL0(pkt), p(2))
}
