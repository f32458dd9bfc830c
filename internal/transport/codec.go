// Package transport is the thin boundary between raw RTP/RTCP on the
// wire and the wire.MediaPacket representation the
// routing engine operates on: codec/header-extension registration,
// packet conversion, and keyframe-request encoding. It does not
// terminate ICE/DTLS or negotiate SDP — those stay with whatever
// embeds this engine.
package transport

import "github.com/pion/webrtc/v4"

// Payload type assignments match the static set this engine expects on
// the wire; a real deployment negotiates these via SDP before traffic
// ever reaches this package.
const (
	PayloadTypeOpus = 111
	PayloadTypeVP8  = 96
	PayloadTypeVP9  = 98
	PayloadTypeH264 = 102
	PayloadTypeAV1  = 35
)

// AudioLevelExtensionID is the RTP header extension id this engine
// registers and expects for RFC 6464 audio level reporting.
const AudioLevelExtensionID = 1

// NewMediaEngine returns a pion MediaEngine with the codec set and RTP
// header extensions this engine understands registered on it.
func NewMediaEngine() (*webrtc.MediaEngine, error) {
	me := &webrtc.MediaEngine{}

	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    "audio/opus",
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: PayloadTypeOpus,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	videoCodecs := []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: "video/VP8", ClockRate: 90000},
			PayloadType:        PayloadTypeVP8,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: "video/VP9", ClockRate: 90000, SDPFmtpLine: "profile-id=0"},
			PayloadType:        PayloadTypeVP9,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    "video/H264",
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
			PayloadType: PayloadTypeH264,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: "video/AV1", ClockRate: 90000},
			PayloadType:        PayloadTypeAV1,
		},
	}
	for _, codec := range videoCodecs {
		if err := me.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, err
		}
	}

	if err := me.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: "urn:ietf:params:rtp-hdrext:ssrc-audio-level"},
		webrtc.RTPCodecTypeAudio,
	); err != nil {
		return nil, err
	}
	if err := me.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: "urn:ietf:params:rtp-hdrext:sdes:mid"},
		webrtc.RTPCodecTypeVideo,
	); err != nil {
		return nil, err
	}
	if err := me.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id"},
		webrtc.RTPCodecTypeVideo,
	); err != nil {
		return nil, err
	}

	return me, nil
}

// NewAPI returns a pion API built from NewMediaEngine, ready to hand to
// whatever owns PeerConnection setup.
func NewAPI() (*webrtc.API, error) {
	me, err := NewMediaEngine()
	if err != nil {
		return nil, err
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(me)), nil
}
