package wire

import (
	"encoding/binary"
	"fmt"
)

// FeedbackKind discriminates the pub/sub channel feedback wire format.
type FeedbackKind uint8

const (
	FeedbackBitrate          FeedbackKind = 0
	FeedbackKeyframeRequest  FeedbackKind = 1
)

// Feedback travels subscriber → publisher over a channel: either a
// bitrate constraint or a keyframe request.
type Feedback struct {
	Kind FeedbackKind
	Min  uint64
	Max  uint64
}

// EncodeFeedback serializes fb as kind:u8 followed by min/max (Bitrate) or
// nothing (KeyframeRequest).
func EncodeFeedback(fb Feedback) []byte {
	if fb.Kind == FeedbackKeyframeRequest {
		return []byte{byte(fb.Kind)}
	}
	buf := make([]byte, 17)
	buf[0] = byte(fb.Kind)
	binary.BigEndian.PutUint64(buf[1:9], fb.Min)
	binary.BigEndian.PutUint64(buf[9:17], fb.Max)
	return buf
}

// DecodeFeedback parses bytes produced by EncodeFeedback.
func DecodeFeedback(data []byte) (Feedback, error) {
	if len(data) < 1 {
		return Feedback{}, fmt.Errorf("%w: empty feedback", ErrMalformedPacket)
	}
	kind := FeedbackKind(data[0])
	switch kind {
	case FeedbackKeyframeRequest:
		return Feedback{Kind: kind}, nil
	case FeedbackBitrate:
		if len(data) < 17 {
			return Feedback{}, fmt.Errorf("%w: truncated bitrate feedback", ErrMalformedPacket)
		}
		return Feedback{
			Kind: kind,
			Min:  binary.BigEndian.Uint64(data[1:9]),
			Max:  binary.BigEndian.Uint64(data[9:17]),
		}, nil
	default:
		return Feedback{}, fmt.Errorf("%w: unknown feedback kind %d", ErrMalformedPacket, kind)
	}
}
