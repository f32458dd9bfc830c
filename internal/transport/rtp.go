package transport

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/meshsfu/router/internal/wire"
)

// codecForPayloadType maps the static payload types this engine
// registers back to the internal codec enum.
func codecForPayloadType(pt uint8) (wire.Codec, bool) {
	switch pt {
	case PayloadTypeOpus:
		return wire.CodecOpus, true
	case PayloadTypeVP8:
		return wire.CodecVP8, true
	case PayloadTypeVP9:
		return wire.CodecVP9, true
	case PayloadTypeH264:
		return wire.CodecH264, true
	default:
		return 0, false
	}
}

// FromRTP decodes a received RTP packet into the engine's internal
// MediaPacket representation, parsing the codec-specific payload
// descriptor (VP9 SVC layer indices) and the RFC 6464 audio level
// header extension where present.
func FromRTP(pkt *rtp.Packet) (*wire.MediaPacket, error) {
	codec, ok := codecForPayloadType(pkt.PayloadType)
	if !ok {
		return nil, fmt.Errorf("transport: unknown payload type %d", pkt.PayloadType)
	}

	out := &wire.MediaPacket{
		Codec:    codec,
		PT:       pkt.PayloadType,
		Seq:      pkt.SequenceNumber,
		Ts:       pkt.Timestamp,
		Marker:   pkt.Marker,
		Nackable: codec != wire.CodecOpus,
		Data:     pkt.Payload,
	}

	switch codec {
	case wire.CodecOpus:
		out.Meta = wire.OpusMeta{AudioLevel: parseAudioLevel(pkt)}
	case wire.CodecVP9:
		out.Meta = decodeVP9Meta(pkt.Payload)
	case wire.CodecVP8:
		out.Meta = decodeVP8Meta(pkt.Payload)
	case wire.CodecH264:
		out.Meta = wire.H264Meta{}
	}
	return out, nil
}

// ToRTP re-encodes an internal MediaPacket as an RTP packet for
// delivery to a subscriber, stamping the seq/ts the caller has already
// rewritten for that subscriber.
func ToRTP(pkt *wire.MediaPacket, ssrc uint32) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pkt.PT,
			SequenceNumber: pkt.Seq,
			Timestamp:      pkt.Ts,
			SSRC:           ssrc,
			Marker:         pkt.Marker,
		},
		Payload: pkt.Data,
	}
}

// parseAudioLevel extracts the RFC 6464 audio level from the RTP
// header extension this engine registers at AudioLevelExtensionID and
// negates it, so 0 is loudest and -127 is silence.
func parseAudioLevel(pkt *rtp.Packet) *int8 {
	raw := pkt.Header.GetExtension(AudioLevelExtensionID)
	if raw == nil {
		return nil
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(raw); err != nil {
		return nil
	}
	level := -int8(ext.Level)
	return &level
}

// decodeVP9Meta parses the VP9 payload descriptor to recover the SVC
// spatial/temporal layer indices C2's VP9 filter selects on.
func decodeVP9Meta(payload []byte) wire.VP9Meta {
	var vp9 codecs.VP9Packet
	if _, err := vp9.Unmarshal(payload); err != nil {
		return wire.VP9Meta{}
	}
	return wire.VP9Meta{
		Key: vp9.B && !vp9.P && vp9.SID == 0,
		SVC: &wire.VP9SVC{
			Spatial:        vp9.SID,
			Temporal:       vp9.TID,
			Begin:          vp9.B,
			End:            vp9.E,
			SwitchingPoint: vp9.U,
		},
	}
}

// decodeVP8Meta parses the VP8 payload descriptor for its simulcast
// temporal layer index.
func decodeVP8Meta(payload []byte) wire.VP8Meta {
	var vp8 codecs.VP8Packet
	if _, err := vp8.Unmarshal(payload); err != nil {
		return wire.VP8Meta{}
	}
	return wire.VP8Meta{
		Key: vp8.S == 1 && vp8.PID == 0,
		Simulcast: &wire.VP8Simulcast{
			Temporal: vp8.TID,
		},
	}
}
