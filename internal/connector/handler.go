package connector

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDedupeCapacity matches the upstream aggregator's LRU sizing for
// the request-dedupe cache, absent an explicit configured value.
const DefaultDedupeCapacity = 10000

// reqUUID identifies one connector request uniquely across the
// cluster: the sending node, its timestamp, and its per-sender req id.
type reqUUID struct {
	Node  string
	TsMs  int64
	ReqID ReqID
}

// Request is one inbound connector event, addressed by the sending
// node so the handler can route a response and dedupe retries.
type Request struct {
	Node  string
	TsMs  int64
	ReqID ReqID
	Event any
}

// Response is the reply routed back to the sending node.
type Response struct {
	ReqID ReqID
	OK    bool
}

// Handler is the aggregator-side idempotent receiver: a duplicate
// (node, ts, req_id) triple is not forwarded again, but still gets a
// Success reply so a resend (the sender never saw the first ack) stops
// retrying; a first-seen request is forwarded to the subscriber and
// unconditionally acknowledged.
type Handler struct {
	dedupe *lru.Cache[reqUUID, struct{}]
	out    []any
}

// Forwarded is queued for whatever downstream subscriber consumes
// connector events (e.g. persistence, analytics — both out of scope
// here, so this is just the routing seam).
type Forwarded struct {
	Request Request
}

// Acked is queued as the reply owed to the sending node.
type Acked struct {
	Response Response
}

// NewHandler returns a handler whose dedupe cache holds capacity
// entries (<=0 falls back to DefaultDedupeCapacity).
func NewHandler(capacity int) *Handler {
	if capacity <= 0 {
		capacity = DefaultDedupeCapacity
	}
	cache, _ := lru.New[reqUUID, struct{}](capacity)
	return &Handler{dedupe: cache}
}

// OnRequest processes one inbound request. A request with no source
// node is rejected outright (no output at all, per the "requests
// without a source are rejected" contract). A duplicate triple is not
// forwarded again but still gets a success response queued, since the
// resend means the sender missed the first ack. Otherwise the request
// is forwarded and a success response queued.
func (h *Handler) OnRequest(req Request) {
	if req.Node == "" {
		return
	}
	key := reqUUID{Node: req.Node, TsMs: req.TsMs, ReqID: req.ReqID}
	if h.dedupe.Contains(key) {
		h.out = append(h.out, Acked{Response: Response{ReqID: req.ReqID, OK: true}})
		return
	}
	h.dedupe.Add(key, struct{}{})

	h.out = append(h.out, Forwarded{Request: req})
	h.out = append(h.out, Acked{Response: Response{ReqID: req.ReqID, OK: true}})
}

// PopOutput drains the next queued output, if any.
func (h *Handler) PopOutput() (any, bool) {
	if len(h.out) == 0 {
		return nil, false
	}
	o := h.out[0]
	h.out = h.out[1:]
	return o, true
}
