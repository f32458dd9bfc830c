package room

import (
	"fmt"

	"github.com/meshsfu/router/internal/audiomixer"
	"github.com/meshsfu/router/internal/seqts"
	"github.com/meshsfu/router/internal/wire"
)

const (
	mixMinusSeqMax     = 1 << 16
	mixMinusTsMax      = 1 << 32
	mixMinusSampleRate = 48000

	// DefaultSeqTolerance/DefaultTsTolerance are the mix-minus slot
	// rewriters' dropped-value memory, absent an explicit configured value.
	DefaultSeqTolerance = 1000
	DefaultTsTolerance  = 10
)

// MixMode selects how a MixMinus middleware decides which room audio
// sources to mix in.
type MixMode int

const (
	// AllAudioStreams auto-mixes every audio track that appears in the
	// room, as peers come and go.
	AllAudioStreams MixMode = iota
	// ManualAudioStreams only mixes sources the client explicitly adds.
	ManualAudioStreams
)

// MixMinusTrackName returns the synthesized local track name a client
// switches to in order to receive output slot i's mix.
func MixMinusTrackName(baseName string, slot int) string {
	return fmt.Sprintf("mix_minus_%s_%d", baseName, slot)
}

type sourceRef struct {
	Peer  string
	Track string
}

type mixSlot struct {
	localTrackID string
	seq          *seqts.SeqRewrite
	ts           *seqts.TsRewrite
}

func newMixSlot(seqTolerance, tsTolerance int) *mixSlot {
	if seqTolerance <= 0 {
		seqTolerance = DefaultSeqTolerance
	}
	if tsTolerance <= 0 {
		tsTolerance = DefaultTsTolerance
	}
	return &mixSlot{
		seq: seqts.New(mixMinusSeqMax, seqTolerance),
		ts:  seqts.NewTs(mixMinusTsMax, tsTolerance, mixMinusSampleRate),
	}
}

// --- outputs ---

// MixMinusSubscribe/Unsubscribe request the room subscribe a mixed-in
// source's channel on the middleware's behalf.
type MixMinusSubscribe struct{ Peer, Track string }
type MixMinusUnsubscribe struct{ Peer, Track string }

// MixMinusMedia carries one mixed-and-rewritten packet for delivery to
// the local track bound to an output slot.
type MixMinusMedia struct {
	LocalTrackID string
	Pkt          *wire.MediaPacket
}

// MixMinus synthesizes one audio track per output slot of a fixed-size
// AudioMixer, excluding the owning peer's own audio (mix "minus self" is
// achieved simply by the caller never routing the peer's own channel
// into OnChannelAudio). Each slot rewrites seq/ts independently so a
// source switch underneath a slot still looks like one coherent stream.
type MixMinus struct {
	Room string
	Name string
	Mode MixMode

	mixer *audiomixer.Mixer[ChannelID]
	slots []*mixSlot

	sources map[ChannelID]sourceRef

	out []any
}

// NewMixMinus returns a mix-minus middleware with the given number of
// output slots. seqTolerance/tsTolerance configure each slot's seq/ts
// rewriters and switchThreshold/slotTimeoutMs configure the underlying
// audio mixer (all <=0 fall back to their package defaults).
func NewMixMinus(room, name string, mode MixMode, slotCount int, seqTolerance, tsTolerance int, switchThreshold int16, slotTimeoutMs int64) *MixMinus {
	slots := make([]*mixSlot, slotCount)
	for i := range slots {
		slots[i] = newMixSlot(seqTolerance, tsTolerance)
	}
	return &MixMinus{
		Room:    room,
		Name:    name,
		Mode:    mode,
		mixer:   audiomixer.New[ChannelID](slotCount, switchThreshold, slotTimeoutMs),
		slots:   slots,
		sources: make(map[ChannelID]sourceRef),
	}
}

// Slots returns the number of output slots.
func (mm *MixMinus) Slots() int { return len(mm.slots) }

// BindSlot attaches a local track id to output slot i, in response to a
// client Switch request naming mix_minus_<name>_<i>.
func (mm *MixMinus) BindSlot(slot int, localTrackID string) bool {
	if slot < 0 || slot >= len(mm.slots) {
		return false
	}
	mm.slots[slot].localTrackID = localTrackID
	return true
}

// UnbindSlot detaches whichever slot currently holds localTrackID, in
// response to a client Disconnect.
func (mm *MixMinus) UnbindSlot(localTrackID string) bool {
	for _, s := range mm.slots {
		if s.localTrackID == localTrackID {
			s.localTrackID = ""
			return true
		}
	}
	return false
}

// OnPeerTrackAdded reacts to a new room-wide audio track. In
// AllAudioStreams mode it is auto-mixed in; in ManualAudioStreams mode
// this is a no-op and the client must call AddManualSource.
func (mm *MixMinus) OnPeerTrackAdded(peer, trackName string) {
	if mm.Mode != AllAudioStreams {
		return
	}
	mm.addSource(peer, trackName)
}

// OnPeerTrackRemoved mirrors OnPeerTrackAdded for track removal.
func (mm *MixMinus) OnPeerTrackRemoved(peer, trackName string) {
	if mm.Mode != AllAudioStreams {
		return
	}
	mm.removeSource(peer, trackName)
}

// AddManualSource explicitly adds one source to the mix. Only valid in
// ManualAudioStreams mode.
func (mm *MixMinus) AddManualSource(peer, trackName string) bool {
	if mm.Mode != ManualAudioStreams {
		return false
	}
	mm.addSource(peer, trackName)
	return true
}

// RemoveManualSource mirrors AddManualSource for removal.
func (mm *MixMinus) RemoveManualSource(peer, trackName string) bool {
	if mm.Mode != ManualAudioStreams {
		return false
	}
	mm.removeSource(peer, trackName)
	return true
}

func (mm *MixMinus) addSource(peer, trackName string) {
	channel := ChannelIDFor(mm.Room, peer, trackName)
	mm.sources[channel] = sourceRef{Peer: peer, Track: trackName}
	mm.out = append(mm.out, MixMinusSubscribe{Peer: peer, Track: trackName})
}

func (mm *MixMinus) removeSource(peer, trackName string) {
	channel := ChannelIDFor(mm.Room, peer, trackName)
	delete(mm.sources, channel)
	mm.out = append(mm.out, MixMinusUnsubscribe{Peer: peer, Track: trackName})
}

// OnChannelAudio feeds one incoming packet from a mixed-in source
// channel through the audio mixer. A slot whose source changed gets its
// seq/ts rewriters reinitialized so its output stream stays coherent
// across the switch.
func (mm *MixMinus) OnChannelAudio(nowMs int64, channel ChannelID, pkt *wire.MediaPacket) {
	var level *int8
	if m, ok := pkt.Meta.(wire.OpusMeta); ok {
		level = m.AudioLevel
	}

	slotIdx, changed, ok := mm.mixer.OnPkt(nowMs, channel, level)
	if !ok {
		return
	}
	slot := mm.slots[slotIdx]
	if changed {
		slot.seq.Reinit()
		slot.ts.Reinit(nowMs)
	}
	if slot.localTrackID == "" {
		return
	}

	seqOut, ok := slot.seq.Generate(uint64(pkt.Seq))
	if !ok {
		return
	}
	tsOut, _ := slot.ts.Generate(nowMs, uint64(pkt.Ts))

	out := pkt.Clone()
	out.Seq = uint16(seqOut)
	out.Ts = uint32(tsOut)
	mm.out = append(mm.out, MixMinusMedia{LocalTrackID: slot.localTrackID, Pkt: out})
}

// OnTick evicts sources that have gone silent from the mixer.
func (mm *MixMinus) OnTick(nowMs int64) {
	mm.mixer.OnTick(nowMs)
}

// PopOutput drains the next queued output, if any.
func (mm *MixMinus) PopOutput() (any, bool) {
	if len(mm.out) == 0 {
		return nil, false
	}
	o := mm.out[0]
	mm.out = mm.out[1:]
	return o, true
}
