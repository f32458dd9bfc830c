// Package room binds endpoint tracks to cluster pub/sub channels: a
// publisher side that maps (endpoint, remote track) to a stable channel
// id and fans out feedback, a subscriber side that refcounts interest
// per channel, and a mix-minus middleware that synthesizes a per-slot
// room-audio-minus-self track on top of the audio mixer.
package room

import "hash/fnv"

// ChannelID addresses one published stream, derived deterministically
// from the (room, peer, track name) tuple so every node in the cluster
// computes the same id without a lookup round trip.
type ChannelID uint64

// ChannelIDFor hashes a (room, peer, track) tuple into a stable 64-bit
// channel id.
func ChannelIDFor(roomID, peerID, trackName string) ChannelID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(roomID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(peerID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(trackName))
	return ChannelID(h.Sum64())
}
