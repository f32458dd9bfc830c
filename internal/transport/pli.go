package transport

import "github.com/pion/rtcp"

// EncodePLI marshals a Picture Loss Indication from senderSSRC for
// mediaSSRC, the RTCP feedback C5/C6's keyframe-request policy asks
// the transport to send upstream to a publisher.
func EncodePLI(senderSSRC, mediaSSRC uint32) ([]byte, error) {
	return (&rtcp.PictureLossIndication{SenderSSRC: senderSSRC, MediaSSRC: mediaSSRC}).Marshal()
}
