package room

import "github.com/meshsfu/router/internal/wire"

// SubAuto/UnsubAuto are the outputs a Subscriber queues for the pub/sub
// fabric: subscription interest changes only at the first/last
// subscriber, not on every individual endpoint subscribe/unsubscribe.
type SubAuto struct{ Channel ChannelID }
type UnsubAuto struct{ Channel ChannelID }

// Subscriber refcounts subscribing endpoints per channel and fans out
// incoming channel data to the current subscriber set.
type Subscriber struct {
	subs map[ChannelID]map[string]struct{}
	out  []any
}

// NewSubscriber returns an empty subscriber table.
func NewSubscriber() *Subscriber {
	return &Subscriber{subs: make(map[ChannelID]map[string]struct{})}
}

// Subscribe adds one endpoint's interest in a channel, queuing SubAuto
// the first time any endpoint subscribes to it.
func (s *Subscriber) Subscribe(channel ChannelID, endpoint string) {
	set, ok := s.subs[channel]
	if !ok {
		set = make(map[string]struct{})
		s.subs[channel] = set
		s.out = append(s.out, SubAuto{Channel: channel})
	}
	set[endpoint] = struct{}{}
}

// Unsubscribe removes one endpoint's interest, queuing UnsubAuto once
// the last subscriber leaves.
func (s *Subscriber) Unsubscribe(channel ChannelID, endpoint string) {
	set, ok := s.subs[channel]
	if !ok {
		return
	}
	delete(set, endpoint)
	if len(set) == 0 {
		delete(s.subs, channel)
		s.out = append(s.out, UnsubAuto{Channel: channel})
	}
}

// Subscribers returns the endpoints currently subscribed to a channel.
func (s *Subscriber) Subscribers(channel ChannelID) []string {
	set, ok := s.subs[channel]
	if !ok {
		return nil
	}
	endpoints := make([]string, 0, len(set))
	for e := range set {
		endpoints = append(endpoints, e)
	}
	return endpoints
}

// OnChannelData deserializes one incoming channel payload and returns
// it alongside the current subscriber set, for the caller to fan out to
// each subscriber's LocalTrack via Endpoint.OnClusterMedia.
func (s *Subscriber) OnChannelData(channel ChannelID, data []byte) (*wire.MediaPacket, []string, error) {
	pkt, err := wire.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return pkt, s.Subscribers(channel), nil
}

// PopOutput drains the next queued output, if any.
func (s *Subscriber) PopOutput() (any, bool) {
	if len(s.out) == 0 {
		return nil, false
	}
	o := s.out[0]
	s.out = s.out[1:]
	return o, true
}
