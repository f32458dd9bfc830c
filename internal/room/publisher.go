package room

import "github.com/meshsfu/router/internal/wire"

// endpointTrack identifies one remote track within one endpoint.
type endpointTrack struct {
	Endpoint      string
	RemoteTrackID string
}

type publication struct {
	PeerID    string
	TrackName string
	Channel   ChannelID
}

// PubStart/PubStop/PubData/OnResourceEmpty are the outputs a Publisher
// queues for the pub/sub fabric.
type PubStart struct{ Channel ChannelID }
type PubStop struct{ Channel ChannelID }
type PubData struct {
	Channel ChannelID
	Data    []byte
}
type OnResourceEmpty struct{}

// Publisher is the per-room table of published tracks: a bijective
// mapping between (endpoint, remote track) and ChannelID, kept with
// identical cardinality in both directions.
type Publisher struct {
	RoomID string

	byTrack   map[endpointTrack]publication
	byChannel map[ChannelID]endpointTrack

	out []any
}

// NewPublisher returns an empty publisher table for one room.
func NewPublisher(roomID string) *Publisher {
	return &Publisher{
		RoomID:    roomID,
		byTrack:   make(map[endpointTrack]publication),
		byChannel: make(map[ChannelID]endpointTrack),
	}
}

// TrackPublish registers a newly activated remote track and queues
// PubStart. Calling it again for the same (endpoint, remote track) pair
// is a no-op that returns the existing channel id.
func (p *Publisher) TrackPublish(endpoint, remoteTrackID, peerID, trackName string) ChannelID {
	key := endpointTrack{endpoint, remoteTrackID}
	if existing, ok := p.byTrack[key]; ok {
		return existing.Channel
	}
	channel := ChannelIDFor(p.RoomID, peerID, trackName)
	p.byTrack[key] = publication{PeerID: peerID, TrackName: trackName, Channel: channel}
	p.byChannel[channel] = key
	p.out = append(p.out, PubStart{Channel: channel})
	return channel
}

// TrackData serializes and queues one packet for publication on the
// channel backing the given remote track. A track not currently
// published is silently ignored (it may have raced an unpublish).
func (p *Publisher) TrackData(endpoint, remoteTrackID string, pkt *wire.MediaPacket) error {
	key := endpointTrack{endpoint, remoteTrackID}
	pub, ok := p.byTrack[key]
	if !ok {
		return nil
	}
	data, err := wire.Encode(pkt)
	if err != nil {
		return err
	}
	p.out = append(p.out, PubData{Channel: pub.Channel, Data: data})
	return nil
}

// TrackUnpublish removes a published track and queues PubStop. Once the
// last track is removed, OnResourceEmpty is queued exactly once.
func (p *Publisher) TrackUnpublish(endpoint, remoteTrackID string) {
	key := endpointTrack{endpoint, remoteTrackID}
	pub, ok := p.byTrack[key]
	if !ok {
		return
	}
	delete(p.byTrack, key)
	delete(p.byChannel, pub.Channel)
	p.out = append(p.out, PubStop{Channel: pub.Channel})
	if len(p.byTrack) == 0 {
		p.out = append(p.out, OnResourceEmpty{})
	}
}

// RouteFeedback resolves the (endpoint, remote track) a channel's
// feedback is addressed to, for the caller to forward to the owning
// RemoteTrack via Endpoint.OnClusterFeedback.
func (p *Publisher) RouteFeedback(channel ChannelID) (endpoint, remoteTrackID string, ok bool) {
	key, ok := p.byChannel[channel]
	return key.Endpoint, key.RemoteTrackID, ok
}

// Len returns the number of currently published tracks.
func (p *Publisher) Len() int { return len(p.byTrack) }

// PopOutput drains the next queued output, if any.
func (p *Publisher) PopOutput() (any, bool) {
	if len(p.out) == 0 {
		return nil, false
	}
	o := p.out[0]
	p.out = p.out[1:]
	return o, true
}
