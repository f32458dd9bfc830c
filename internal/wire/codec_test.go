package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeOpus(t *testing.T) {
	level := int8(-30)
	pkt := &MediaPacket{
		Codec:  CodecOpus,
		Seq:    42,
		Ts:     123456,
		Marker: true,
		Meta:   OpusMeta{AudioLevel: &level},
		Data:   []byte{1, 2, 3, 4},
	}

	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Seq != pkt.Seq || decoded.Ts != pkt.Ts || decoded.Marker != pkt.Marker {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.Data, pkt.Data) {
		t.Fatalf("payload mismatch: got %v want %v", decoded.Data, pkt.Data)
	}
	meta, ok := decoded.Meta.(OpusMeta)
	if !ok || meta.AudioLevel == nil || *meta.AudioLevel != level {
		t.Fatalf("meta mismatch: %+v", decoded.Meta)
	}
}

func TestEncodeDecodeVP8Simulcast(t *testing.T) {
	picID := uint16(12345)
	tl0 := uint8(7)
	pkt := &MediaPacket{
		Codec: CodecVP8,
		Seq:   1,
		Ts:    90000,
		Meta: VP8Meta{
			Key: true,
			Simulcast: &VP8Simulcast{
				Spatial:   1,
				Temporal:  2,
				LayerSync: true,
				PictureID: &picID,
				TL0PicIdx: &tl0,
			},
		},
		Data: []byte{0xAA, 0xBB},
	}

	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	meta, ok := decoded.Meta.(VP8Meta)
	if !ok || !meta.Key || meta.Simulcast == nil {
		t.Fatalf("meta mismatch: %+v", decoded.Meta)
	}
	if meta.Simulcast.Spatial != 1 || meta.Simulcast.Temporal != 2 || !meta.Simulcast.LayerSync {
		t.Fatalf("simulcast mismatch: %+v", meta.Simulcast)
	}
	if meta.Simulcast.PictureID == nil || *meta.Simulcast.PictureID != picID {
		t.Fatalf("picture id mismatch: %+v", meta.Simulcast.PictureID)
	}
	if meta.Simulcast.TL0PicIdx == nil || *meta.Simulcast.TL0PicIdx != tl0 {
		t.Fatalf("tl0 mismatch: %+v", meta.Simulcast.TL0PicIdx)
	}
}

func TestEncodeDecodeWithLayers(t *testing.T) {
	pkt := &MediaPacket{
		Codec: CodecVP9,
		Seq:   7,
		Ts:    1,
		Meta:  VP9Meta{Key: false, Profile: 0},
		Data:  []byte{1},
		Layers: []LayerBitrate{
			{Spatial: 0, Temporal: 0, Kbps: 150},
			{Spatial: 1, Temporal: 1, Kbps: 600},
		},
	}

	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(decoded.Layers))
	}
	if decoded.Layers[1].Kbps != 600 {
		t.Fatalf("got kbps %d, want 600", decoded.Layers[1].Kbps)
	}
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	if _, err := Decode([]byte{byte(CodecOpus)}); err == nil {
		t.Fatal("expected error decoding truncated packet")
	}
}

func TestFeedbackRoundtrip(t *testing.T) {
	fb := Feedback{Kind: FeedbackBitrate, Min: 1000, Max: 1000}
	decoded, err := DecodeFeedback(EncodeFeedback(fb))
	if err != nil {
		t.Fatalf("DecodeFeedback: %v", err)
	}
	if decoded != fb {
		t.Fatalf("got %+v, want %+v", decoded, fb)
	}

	kf := Feedback{Kind: FeedbackKeyframeRequest}
	decoded, err = DecodeFeedback(EncodeFeedback(kf))
	if err != nil {
		t.Fatalf("DecodeFeedback: %v", err)
	}
	if decoded.Kind != FeedbackKeyframeRequest {
		t.Fatalf("got %+v, want keyframe request", decoded)
	}
}
