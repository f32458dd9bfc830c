// Package gateway tracks the fleet's media nodes (ping gossip, zone and
// load state) and selects the best node to hand a new session to,
// scoring by geographic proximity and current load.
package gateway

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNodeTimeoutMs is how long a node may go without a ping before
// the store evicts it, absent an explicit configured value.
const DefaultNodeTimeoutMs int64 = 10_000

// DefaultZoneWeight/DefaultLoadWeight are the scoring coefficients used
// when a Store is constructed with zero weights.
const (
	DefaultZoneWeight = 1.0
	DefaultLoadWeight = 50.0
)

// Location is a node's geographic position.
type Location struct {
	Lat float64
	Lon float64
}

// Thresholds bounds node eligibility for selection.
type Thresholds struct {
	MaxCPU    uint8
	MaxMemory uint8
	MaxDisk   uint8
}

// NodeInfo is one fleet member's last-reported state.
type NodeInfo struct {
	NodeID       string
	ZoneID       string
	Location     Location
	CPU          uint8
	Memory       uint8
	Disk         uint8
	ServiceLive  uint32
	ServiceMax   uint32
	LastPingAtMs int64
}

func (n *NodeInfo) eligible(th Thresholds) bool {
	return n.CPU <= th.MaxCPU && n.Memory <= th.MaxMemory && n.Disk <= th.MaxDisk && n.ServiceLive < n.ServiceMax
}

// Store is the fleet-wide node registry for one service kind (e.g.
// "webrtc"): a flat map of node id to last-reported NodeInfo, evicted by
// ping timeout and scored for selection by zone distance and load.
type Store struct {
	ZoneWeight float64
	LoadWeight float64

	// DefaultThresholds is the configured eligibility bound BestForDefault
	// tries first, before falling back to an unbounded selection.
	DefaultThresholds Thresholds

	nodeTimeoutMs int64

	nodes map[string]*NodeInfo

	liveGauge prometheus.Gauge
	maxGauge  prometheus.Gauge
}

// NewStore returns an empty store for one service kind, with gauges
// registered under that kind's label. zoneWeight/loadWeight configure
// the scoring coefficients (<=0 falls back to DefaultZoneWeight/
// DefaultLoadWeight); maxCPU/maxMemory/maxDisk become DefaultThresholds;
// nodeTimeoutMs bounds how long a node may go without a ping before
// OnTick evicts it (<=0 falls back to DefaultNodeTimeoutMs).
func NewStore(reg prometheus.Registerer, serviceKind string, zoneWeight, loadWeight float64, maxCPU, maxMemory, maxDisk uint8, nodeTimeoutMs int64) *Store {
	if zoneWeight <= 0 {
		zoneWeight = DefaultZoneWeight
	}
	if loadWeight <= 0 {
		loadWeight = DefaultLoadWeight
	}
	if nodeTimeoutMs <= 0 {
		nodeTimeoutMs = DefaultNodeTimeoutMs
	}
	s := &Store{
		ZoneWeight:        zoneWeight,
		LoadWeight:        loadWeight,
		DefaultThresholds: Thresholds{MaxCPU: maxCPU, MaxMemory: maxMemory, MaxDisk: maxDisk},
		nodeTimeoutMs:     nodeTimeoutMs,
		nodes:             make(map[string]*NodeInfo),
		liveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "router", Subsystem: "gateway", Name: "sessions_live",
			ConstLabels: prometheus.Labels{"service": serviceKind},
		}),
		maxGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "router", Subsystem: "gateway", Name: "sessions_max",
			ConstLabels: prometheus.Labels{"service": serviceKind},
		}),
	}
	if reg != nil {
		reg.MustRegister(s.liveGauge, s.maxGauge)
	}
	return s
}

// OnPing records (or refreshes) one node's reported state.
func (s *Store) OnPing(nowMs int64, nodeID, zoneID string, loc Location, cpu, memory, disk uint8, live, max uint32) {
	s.nodes[nodeID] = &NodeInfo{
		NodeID: nodeID, ZoneID: zoneID, Location: loc,
		CPU: cpu, Memory: memory, Disk: disk,
		ServiceLive: live, ServiceMax: max,
		LastPingAtMs: nowMs,
	}
}

// OnTick evicts nodes silent for longer than the configured node
// timeout and refreshes the aggregate live/max gauges.
func (s *Store) OnTick(nowMs int64) {
	for id, n := range s.nodes {
		if nowMs-n.LastPingAtMs > s.nodeTimeoutMs {
			delete(s.nodes, id)
		}
	}
	var liveSum, maxSum uint32
	for _, n := range s.nodes {
		liveSum += n.ServiceLive
		maxSum += n.ServiceMax
	}
	s.liveGauge.Set(float64(liveSum))
	s.maxGauge.Set(float64(maxSum))
}

// haversineKm returns the great-circle distance between two locations
// in kilometers.
func haversineKm(a, b Location) float64 {
	const earthRadiusKm = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func (s *Store) score(loc Location, n *NodeInfo) float64 {
	loadRatio := float64(n.ServiceLive) / float64(n.ServiceMax)
	return s.ZoneWeight*haversineKm(loc, n.Location) + s.LoadWeight*loadRatio
}

func (s *Store) bestWithThresholds(loc Location, th Thresholds) (string, bool) {
	var candidates []*NodeInfo
	for _, n := range s.nodes {
		if n.eligible(th) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := s.score(loc, candidates[i]), s.score(loc, candidates[j])
		if si != sj {
			return si < sj
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})
	return candidates[0].NodeID, true
}

// BestFor selects the best eligible node for a new session at loc,
// trying strict thresholds first and falling back to looser ones if no
// node qualifies. It returns ok=false (NodePoolEmpty, in the caller's
// terms) if no node passes even the fallback thresholds.
func (s *Store) BestFor(loc Location, strict, fallback Thresholds) (nodeID string, ok bool) {
	if id, ok := s.bestWithThresholds(loc, strict); ok {
		return id, true
	}
	return s.bestWithThresholds(loc, fallback)
}

// BestForDefault selects the best eligible node using DefaultThresholds
// as the strict bound, falling back to an unbounded selection (any node
// with spare capacity) if none qualifies.
func (s *Store) BestForDefault(loc Location) (nodeID string, ok bool) {
	return s.BestFor(loc, s.DefaultThresholds, Thresholds{MaxCPU: 100, MaxMemory: 100, MaxDisk: 100})
}

// Len returns the number of nodes currently tracked.
func (s *Store) Len() int { return len(s.nodes) }
