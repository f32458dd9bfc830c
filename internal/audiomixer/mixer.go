// Package audiomixer selects the N loudest active audio sources and
// assigns each to one of a fixed set of output slots, with hysteresis so
// a momentarily louder source does not thrash an already-assigned slot.
package audiomixer

// SilentLevel is the audio level used when a source has not reported
// one. Levels are negated RFC 6464 values: 0 is loudest, -127 is silence.
const SilentLevel int8 = -127

// DefaultSwitchThreshold is the minimum amount, in the same units as
// audio level, that an incoming source must exceed the currently lowest
// occupied slot by before it is allowed to preempt it, absent an
// explicit configured value.
const DefaultSwitchThreshold int16 = 30

// DefaultSlotTimeoutMs is how long a source may go without a packet
// before it is evicted from the mixer entirely, absent an explicit
// configured value.
const DefaultSlotTimeoutMs int64 = 1000

type sourceState struct {
	lastChangedAt int64
	slot          int
	hasSlot       bool
}

type outputSlotState[Src comparable] struct {
	audioLevel int8
	source     Src
}

// Mixer assigns up to N sources to N fixed output slots, picking the
// loudest speakers and evicting silent or stale ones. Src is typically a
// peer or channel identifier.
type Mixer[Src comparable] struct {
	outputs []*outputSlotState[Src]
	sources map[Src]*sourceState

	switchThreshold int16
	slotTimeoutMs   int64
}

// New returns a mixer with the given number of output slots.
// switchThreshold/slotTimeoutMs configure preemption hysteresis and
// silence eviction (<=0 falls back to DefaultSwitchThreshold/
// DefaultSlotTimeoutMs).
func New[Src comparable](slots int, switchThreshold int16, slotTimeoutMs int64) *Mixer[Src] {
	if switchThreshold <= 0 {
		switchThreshold = DefaultSwitchThreshold
	}
	if slotTimeoutMs <= 0 {
		slotTimeoutMs = DefaultSlotTimeoutMs
	}
	return &Mixer[Src]{
		outputs:         make([]*outputSlotState[Src], slots),
		sources:         make(map[Src]*sourceState),
		switchThreshold: switchThreshold,
		slotTimeoutMs:   slotTimeoutMs,
	}
}

func resolveLevel(level *int8) int8 {
	if level == nil {
		return SilentLevel
	}
	return *level
}

func (m *Mixer[Src]) findEmptySlot() (int, bool) {
	for i, o := range m.outputs {
		if o == nil {
			return i, true
		}
	}
	return 0, false
}

func (m *Mixer[Src]) findLowestSlot() (int, int8) {
	lowestIdx := -1
	var lowestLevel int8
	for i, o := range m.outputs {
		if o == nil {
			continue
		}
		if lowestIdx == -1 || o.audioLevel < lowestLevel {
			lowestIdx = i
			lowestLevel = o.audioLevel
		}
	}
	return lowestIdx, lowestLevel
}

// OnPkt processes one arrival of audio from source with the given
// RFC 6464 level (nil if unreported). It returns the slot index the
// source occupies and whether that constitutes a new assignment, or
// ok=false if the source was not assigned any slot (all slots full and
// the incoming level does not exceed the quietest occupant's level by
// the switch threshold).
func (m *Mixer[Src]) OnPkt(nowMs int64, source Src, level *int8) (slot int, changed bool, ok bool) {
	incoming := resolveLevel(level)

	st, known := m.sources[source]
	if !known {
		st = &sourceState{}
		m.sources[source] = st
	}
	st.lastChangedAt = nowMs

	if st.hasSlot {
		m.outputs[st.slot].audioLevel = incoming
		return st.slot, false, true
	}

	if idx, found := m.findEmptySlot(); found {
		st.hasSlot = true
		st.slot = idx
		m.outputs[idx] = &outputSlotState[Src]{audioLevel: incoming, source: source}
		return idx, true, true
	}

	lowestIdx, lowestLevel := m.findLowestSlot()
	if lowestIdx == -1 {
		// Zero slots configured.
		return 0, false, false
	}
	if int16(incoming) >= int16(lowestLevel)+m.switchThreshold {
		evicted := m.outputs[lowestIdx].source
		if evictedState, ok := m.sources[evicted]; ok {
			evictedState.hasSlot = false
		}
		m.outputs[lowestIdx] = &outputSlotState[Src]{audioLevel: incoming, source: source}
		st.hasSlot = true
		st.slot = lowestIdx
		return lowestIdx, true, true
	}

	return 0, false, false
}

// OnTick evicts sources that have gone silent for longer than the
// configured slot timeout, freeing their slots. It returns the freed
// slot indices, or ok=false if nothing was freed.
func (m *Mixer[Src]) OnTick(nowMs int64) (freed []int, ok bool) {
	for src, st := range m.sources {
		if nowMs-st.lastChangedAt <= m.slotTimeoutMs {
			continue
		}
		if st.hasSlot {
			m.outputs[st.slot] = nil
			freed = append(freed, st.slot)
		}
		delete(m.sources, src)
	}
	if len(freed) == 0 {
		return nil, false
	}
	return freed, true
}

// Len returns the number of occupied output slots. Sources that are
// tracked but hold no slot are not counted.
func (m *Mixer[Src]) Len() int {
	n := 0
	for _, o := range m.outputs {
		if o != nil {
			n++
		}
	}
	return n
}

// SlotSource returns the source currently occupying slot i, if any.
func (m *Mixer[Src]) SlotSource(i int) (src Src, ok bool) {
	if i < 0 || i >= len(m.outputs) || m.outputs[i] == nil {
		return src, false
	}
	return m.outputs[i].source, true
}
