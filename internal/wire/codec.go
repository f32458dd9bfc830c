package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPacket is returned by Decode when the input cannot be parsed
// as a MediaPacket; callers should drop the packet and increment a counter
// rather than propagate it further, per the ChannelSerializeError policy.
var ErrMalformedPacket = errors.New("wire: malformed media packet")

const (
	flagMarker      = 1 << 0
	flagNackable    = 1 << 1
	flagHasLayers   = 1 << 2
	vp8FlagKey      = 1 << 0
	vp8FlagSim      = 1 << 1
	vp8FlagLayerSyn = 1 << 0
	vp8FlagHasPicID = 1 << 1
	vp8FlagHasTL0   = 1 << 2
	vp9FlagKey      = 1 << 0
	vp9FlagSVC      = 1 << 1
	vp9FlagBegin    = 1 << 0
	vp9FlagEnd      = 1 << 1
	vp9FlagSwitch   = 1 << 2
	vp9FlagHasPicID = 1 << 3
	vp9FlagHasSS    = 1 << 4
	h264FlagKey     = 1 << 0
	h264FlagSim     = 1 << 1
	opusFlagHasAL   = 1 << 0
)

// Encode serializes pkt per the on-wire MediaPacket layout: codec
// discriminator, codec-specific metadata, big-endian timestamp and
// sequence number, a flags byte, length-prefixed payload, and an optional
// layer-bitrate TLV.
func Encode(pkt *MediaPacket) ([]byte, error) {
	var buf []byte
	buf = append(buf, byte(pkt.Codec))

	meta, err := encodeMeta(pkt.Codec, pkt.Meta)
	if err != nil {
		return nil, err
	}
	buf = append(buf, meta...)

	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], pkt.Ts)
	buf = append(buf, tsBuf[:]...)

	var seqBuf [2]byte
	binary.BigEndian.PutUint16(seqBuf[:], pkt.Seq)
	buf = append(buf, seqBuf[:]...)

	flags := byte(0)
	if pkt.Marker {
		flags |= flagMarker
	}
	if pkt.Nackable {
		flags |= flagNackable
	}
	if len(pkt.Layers) > 0 {
		flags |= flagHasLayers
	}
	buf = append(buf, flags)

	if len(pkt.Data) > 0xFFFF {
		return nil, fmt.Errorf("%w: payload too large (%d bytes)", ErrMalformedPacket, len(pkt.Data))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(pkt.Data)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, pkt.Data...)

	if len(pkt.Layers) > 0 {
		if len(pkt.Layers) > 9 {
			return nil, fmt.Errorf("%w: too many layer entries (%d)", ErrMalformedPacket, len(pkt.Layers))
		}
		buf = append(buf, byte(len(pkt.Layers)))
		for _, l := range pkt.Layers {
			var kbpsBuf [2]byte
			binary.BigEndian.PutUint16(kbpsBuf[:], l.Kbps)
			buf = append(buf, l.Spatial, l.Temporal, kbpsBuf[0], kbpsBuf[1])
		}
	}

	return buf, nil
}

func encodeMeta(codec Codec, meta any) ([]byte, error) {
	switch codec {
	case CodecOpus:
		m, _ := meta.(OpusMeta)
		if m.AudioLevel == nil {
			return []byte{0}, nil
		}
		return []byte{opusFlagHasAL, byte(*m.AudioLevel)}, nil

	case CodecVP8:
		m, _ := meta.(VP8Meta)
		flags := byte(0)
		if m.Key {
			flags |= vp8FlagKey
		}
		if m.Simulcast != nil {
			flags |= vp8FlagSim
		}
		out := []byte{flags}
		if m.Simulcast == nil {
			return out, nil
		}
		s := m.Simulcast
		simFlags := byte(0)
		if s.LayerSync {
			simFlags |= vp8FlagLayerSyn
		}
		if s.PictureID != nil {
			simFlags |= vp8FlagHasPicID
		}
		if s.TL0PicIdx != nil {
			simFlags |= vp8FlagHasTL0
		}
		out = append(out, s.Spatial, s.Temporal, simFlags)
		if s.PictureID != nil {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], *s.PictureID)
			out = append(out, b[:]...)
		}
		if s.TL0PicIdx != nil {
			out = append(out, *s.TL0PicIdx)
		}
		return out, nil

	case CodecVP9:
		m, _ := meta.(VP9Meta)
		flags := byte(0)
		if m.Key {
			flags |= vp9FlagKey
		}
		if m.SVC != nil {
			flags |= vp9FlagSVC
		}
		out := []byte{flags, m.Profile}
		if m.SVC == nil {
			return out, nil
		}
		s := m.SVC
		svcFlags := byte(0)
		if s.Begin {
			svcFlags |= vp9FlagBegin
		}
		if s.End {
			svcFlags |= vp9FlagEnd
		}
		if s.SwitchingPoint {
			svcFlags |= vp9FlagSwitch
		}
		if s.PictureID != nil {
			svcFlags |= vp9FlagHasPicID
		}
		if s.SS != nil {
			svcFlags |= vp9FlagHasSS
		}
		out = append(out, s.Spatial, s.Temporal, svcFlags)
		if s.PictureID != nil {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], *s.PictureID)
			out = append(out, b[:]...)
		}
		if s.SS != nil {
			out = append(out, s.SS.NumSpatialLayers)
			for i := 0; i < int(s.SS.NumSpatialLayers); i++ {
				var w, h uint16
				if i < len(s.SS.Widths) {
					w = s.SS.Widths[i]
				}
				if i < len(s.SS.Heights) {
					h = s.SS.Heights[i]
				}
				var wb, hb [2]byte
				binary.BigEndian.PutUint16(wb[:], w)
				binary.BigEndian.PutUint16(hb[:], h)
				out = append(out, wb[:]...)
				out = append(out, hb[:]...)
			}
		}
		return out, nil

	case CodecH264:
		m, _ := meta.(H264Meta)
		flags := byte(0)
		if m.Key {
			flags |= h264FlagKey
		}
		if m.Simulcast != nil {
			flags |= h264FlagSim
		}
		out := []byte{flags, m.Profile}
		if m.Simulcast != nil {
			out = append(out, m.Simulcast.Spatial)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrMalformedPacket, codec)
	}
}

// Decode parses a byte slice produced by Encode back into a MediaPacket.
func Decode(data []byte) (*MediaPacket, error) {
	r := &reader{buf: data}

	codecByte, err := r.byte1()
	if err != nil {
		return nil, err
	}
	codec := Codec(codecByte)

	meta, err := decodeMeta(r, codec)
	if err != nil {
		return nil, err
	}

	ts, err := r.u32()
	if err != nil {
		return nil, err
	}
	seq, err := r.u16()
	if err != nil {
		return nil, err
	}
	flags, err := r.byte1()
	if err != nil {
		return nil, err
	}
	payloadLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	payload, err := r.bytes(int(payloadLen))
	if err != nil {
		return nil, err
	}

	pkt := &MediaPacket{
		Codec:    codec,
		Seq:      seq,
		Ts:       ts,
		Marker:   flags&flagMarker != 0,
		Nackable: flags&flagNackable != 0,
		Meta:     meta,
		Data:     payload,
	}

	if flags&flagHasLayers != 0 {
		count, err := r.byte1()
		if err != nil {
			return nil, err
		}
		layers := make([]LayerBitrate, 0, count)
		for i := 0; i < int(count); i++ {
			spatial, err := r.byte1()
			if err != nil {
				return nil, err
			}
			temporal, err := r.byte1()
			if err != nil {
				return nil, err
			}
			kbps, err := r.u16()
			if err != nil {
				return nil, err
			}
			layers = append(layers, LayerBitrate{Spatial: spatial, Temporal: temporal, Kbps: kbps})
		}
		pkt.Layers = layers
	}

	return pkt, nil
}

func decodeMeta(r *reader, codec Codec) (any, error) {
	switch codec {
	case CodecOpus:
		flags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		m := OpusMeta{}
		if flags&opusFlagHasAL != 0 {
			b, err := r.byte1()
			if err != nil {
				return nil, err
			}
			level := int8(b)
			m.AudioLevel = &level
		}
		return m, nil

	case CodecVP8:
		flags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		m := VP8Meta{Key: flags&vp8FlagKey != 0}
		if flags&vp8FlagSim == 0 {
			return m, nil
		}
		spatial, err := r.byte1()
		if err != nil {
			return nil, err
		}
		temporal, err := r.byte1()
		if err != nil {
			return nil, err
		}
		simFlags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		sim := &VP8Simulcast{Spatial: spatial, Temporal: temporal, LayerSync: simFlags&vp8FlagLayerSyn != 0}
		if simFlags&vp8FlagHasPicID != 0 {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			sim.PictureID = &v
		}
		if simFlags&vp8FlagHasTL0 != 0 {
			v, err := r.byte1()
			if err != nil {
				return nil, err
			}
			sim.TL0PicIdx = &v
		}
		m.Simulcast = sim
		return m, nil

	case CodecVP9:
		flags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		profile, err := r.byte1()
		if err != nil {
			return nil, err
		}
		m := VP9Meta{Key: flags&vp9FlagKey != 0, Profile: profile}
		if flags&vp9FlagSVC == 0 {
			return m, nil
		}
		spatial, err := r.byte1()
		if err != nil {
			return nil, err
		}
		temporal, err := r.byte1()
		if err != nil {
			return nil, err
		}
		svcFlags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		svc := &VP9SVC{
			Spatial:        spatial,
			Temporal:       temporal,
			Begin:          svcFlags&vp9FlagBegin != 0,
			End:            svcFlags&vp9FlagEnd != 0,
			SwitchingPoint: svcFlags&vp9FlagSwitch != 0,
		}
		if svcFlags&vp9FlagHasPicID != 0 {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			svc.PictureID = &v
		}
		if svcFlags&vp9FlagHasSS != 0 {
			n, err := r.byte1()
			if err != nil {
				return nil, err
			}
			ss := &VP9ScalabilityStructure{NumSpatialLayers: n}
			for i := 0; i < int(n); i++ {
				w, err := r.u16()
				if err != nil {
					return nil, err
				}
				h, err := r.u16()
				if err != nil {
					return nil, err
				}
				ss.Widths = append(ss.Widths, w)
				ss.Heights = append(ss.Heights, h)
			}
			svc.SS = ss
		}
		m.SVC = svc
		return m, nil

	case CodecH264:
		flags, err := r.byte1()
		if err != nil {
			return nil, err
		}
		profile, err := r.byte1()
		if err != nil {
			return nil, err
		}
		m := H264Meta{Key: flags&h264FlagKey != 0, Profile: profile}
		if flags&h264FlagSim != 0 {
			spatial, err := r.byte1()
			if err != nil {
				return nil, err
			}
			m.Simulcast = &H264Simulcast{Spatial: spatial}
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrMalformedPacket, codec)
	}
}

// reader is a minimal bounds-checked byte cursor used by Decode.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte1() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrMalformedPacket)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrMalformedPacket)
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrMalformedPacket)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated", ErrMalformedPacket)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
