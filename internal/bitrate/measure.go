// Package bitrate estimates per-layer send bitrate over a tumbling window,
// producing a bitrate/layer snapshot each time the window elapses and
// feeding the bitrate-scale decision used to translate a subscriber's
// requested bitrate limit into a sender-side consumer limit.
package bitrate

// LayerMode describes how per-layer samples accumulate into a cumulative
// bitrate for reporting: a simulcast stream sums temporal sub-layers
// within a spatial layer, an SVC stream additionally sums spatial layers
// beneath it, and a single stream carries no layer structure at all.
type LayerMode int

const (
	ModeSingle LayerMode = iota
	ModeSimulcast
	ModeSVC
)

const maxLayers = 3

type streamSum struct {
	bytes int
}

func (s *streamSum) add(n int) { s.bytes += n }

func (s *streamSum) takeBps(windowMs int64) uint32 {
	if s.bytes == 0 || windowMs <= 0 {
		return 0
	}
	bps := uint32((int64(s.bytes) * 8 * 1000) / windowMs)
	s.bytes = 0
	return bps
}

// Stats is a bitrate snapshot taken when a measurement window elapses.
type Stats struct {
	BitrateBps uint32
	Layers     [maxLayers][maxLayers]uint32 // [spatial][temporal], cumulative
}

// Measure accumulates byte counts for one track over a window, in bytes
// per (spatial, temporal) layer, and emits a Stats snapshot each time the
// window elapses.
type Measure struct {
	windowMs     int64
	lastMeasure  int64
	haveLast     bool
	total        streamSum
	layers       [maxLayers][maxLayers]streamSum
}

// New returns a bitrate estimator with the given tumbling window, in
// milliseconds. A zero windowMs uses a 2-second window.
func New(windowMs int64) *Measure {
	if windowMs <= 0 {
		windowMs = 2000
	}
	return &Measure{windowMs: windowMs}
}

func (m *Measure) cumulativeLayers(mode LayerMode) [maxLayers][maxLayers]uint32 {
	var out [maxLayers][maxLayers]uint32
	for i := 0; i < maxLayers; i++ {
		for j := 0; j < maxLayers; j++ {
			out[i][j] = m.layers[i][j].takeBps(m.windowMs)
		}
	}

	for i := 0; i < maxLayers; i++ {
		if out[i][0] == 0 {
			continue
		}
		for j := 1; j < maxLayers; j++ {
			if out[i][j] == 0 {
				break
			}
			out[i][j] += out[i][j-1]
		}
	}

	if mode == ModeSVC {
		for i := 1; i < maxLayers; i++ {
			if out[i][0] == 0 {
				continue
			}
			for j := 0; j < maxLayers; j++ {
				if out[i][j] == 0 {
					break
				}
				out[i][j] += out[i-1][j]
			}
		}
	}
	return out
}

// AddSample records byteLen bytes at nowMs for the given layer (spatial
// and temporal are ignored for ModeSingle) and, if the window has
// elapsed, returns the snapshot for the just-completed window.
func (m *Measure) AddSample(nowMs int64, mode LayerMode, spatial, temporal uint8, byteLen int) (stats *Stats, ok bool) {
	if !m.haveLast {
		m.lastMeasure = nowMs
		m.haveLast = true
	}

	if nowMs-m.lastMeasure >= m.windowMs {
		bps := m.total.takeBps(m.windowMs)
		m.lastMeasure = nowMs
		if mode == ModeSingle {
			stats = &Stats{BitrateBps: bps}
		} else {
			layers := m.cumulativeLayers(mode)
			stats = &Stats{BitrateBps: bps, Layers: layers}
		}
		ok = true
	}

	m.total.add(byteLen)
	if mode != ModeSingle && int(spatial) < maxLayers && int(temporal) < maxLayers {
		m.layers[spatial][temporal].add(byteLen)
	}
	return stats, ok
}
