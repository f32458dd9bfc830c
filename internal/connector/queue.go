// Package connector implements at-least-once delivery of connector
// events from a media node to the cluster aggregator (Queue), and the
// aggregator-side idempotent receipt of those events (Handler).
package connector

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// DefaultMaxRetries bounds how many times an unacked message is
// retried before it is dropped, absent an explicit configured value.
const DefaultMaxRetries = 8

// DefaultRetryBackoffMs is the base delay before a message's first
// retry, absent an explicit configured value; subsequent retries back
// off linearly with the attempt count.
const DefaultRetryBackoffMs int64 = 1000

// ReqID identifies one queued message, assigned in monotonically
// increasing order by the owning Queue.
type ReqID uint64

// Message is one event awaiting delivery to the aggregator.
type Message struct {
	ReqID ReqID
	TsMs  int64
	Event any
}

type inflightEntry struct {
	msg           Message
	retries       int
	nextAttemptAt int64
}

var errDeliveryFailed = errors.New("connector: delivery failed")

// Queue is the agent-side outbound message queue: push enqueues new
// events, pop hands the next deliverable message (new, or an expired
// retry) to the caller's transport, and on_ack retires it once the
// aggregator confirms receipt. A circuit breaker gates pop() so a
// persistently unreachable aggregator does not spin the retry loop.
type Queue struct {
	nextReqID uint64
	waiting   []Message
	inflight  map[ReqID]*inflightEntry
	ackedN    int
	dropped   int

	maxRetries     int
	retryBackoffMs int64

	breaker *gobreaker.CircuitBreaker[any]

	depthGauge    prometheus.Gauge
	inflightGauge prometheus.Gauge
	ackedGauge    prometheus.Gauge
}

// NewQueue returns an empty queue. metricLabel distinguishes this
// queue's gauges when more than one is registered (e.g. per node).
// maxRetries and retryBackoffMs configure the retry policy below; pass
// DefaultMaxRetries/DefaultRetryBackoffMs for the standard policy, or
// <=0 for either to fall back to those defaults.
func NewQueue(reg prometheus.Registerer, metricLabel string, maxRetries int, retryBackoffMs int64) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryBackoffMs <= 0 {
		retryBackoffMs = DefaultRetryBackoffMs
	}
	st := gobreaker.Settings{
		Name:        "connector-queue-" + metricLabel,
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	q := &Queue{
		inflight:       make(map[ReqID]*inflightEntry),
		maxRetries:     maxRetries,
		retryBackoffMs: retryBackoffMs,
		breaker:        gobreaker.NewCircuitBreaker[any](st),
		depthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "router", Subsystem: "connector", Name: "queue_depth",
			ConstLabels: prometheus.Labels{"queue": metricLabel},
		}),
		inflightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "router", Subsystem: "connector", Name: "inflight",
			ConstLabels: prometheus.Labels{"queue": metricLabel},
		}),
		ackedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "router", Subsystem: "connector", Name: "acked_total",
			ConstLabels: prometheus.Labels{"queue": metricLabel},
		}),
	}
	if reg != nil {
		reg.MustRegister(q.depthGauge, q.inflightGauge, q.ackedGauge)
	}
	return q
}

// Push enqueues a new event and returns its assigned request id.
func (q *Queue) Push(nowMs int64, event any) ReqID {
	id := ReqID(q.nextReqID)
	q.nextReqID++
	q.waiting = append(q.waiting, Message{ReqID: id, TsMs: nowMs, Event: event})
	q.depthGaugeSet()
	return id
}

// Pop returns the next message that is either brand new or whose retry
// timer has expired, or ok=false if none is ready or the circuit
// breaker has tripped open. A returned message moves to inflight.
func (q *Queue) Pop(nowMs int64) (msg Message, ok bool) {
	if q.breaker.State() == gobreaker.StateOpen {
		return Message{}, false
	}

	if len(q.waiting) > 0 {
		msg = q.waiting[0]
		q.waiting = q.waiting[1:]
		q.inflight[msg.ReqID] = &inflightEntry{msg: msg, nextAttemptAt: nowMs + q.retryBackoffMs}
		q.depthGaugeSet()
		q.inflightGaugeSet()
		return msg, true
	}

	for id, entry := range q.inflight {
		if nowMs < entry.nextAttemptAt {
			continue
		}
		entry.retries++
		if entry.retries > q.maxRetries {
			delete(q.inflight, id)
			q.dropped++
			_, _ = q.breaker.Execute(func() (any, error) { return nil, errDeliveryFailed })
			q.inflightGaugeSet()
			continue
		}
		entry.nextAttemptAt = nowMs + q.retryBackoffMs*int64(entry.retries+1)
		return entry.msg, true
	}
	return Message{}, false
}

// OnAck retires an inflight message once the aggregator confirms
// receipt, and records the delivery as a circuit-breaker success.
func (q *Queue) OnAck(reqID ReqID) {
	if _, ok := q.inflight[reqID]; !ok {
		return
	}
	delete(q.inflight, reqID)
	q.ackedN++
	_, _ = q.breaker.Execute(func() (any, error) { return nil, nil })
	q.inflightGaugeSet()
	q.ackedGauge.Set(float64(q.ackedN))
}

// Waits returns the number of messages never yet attempted.
func (q *Queue) Waits() int { return len(q.waiting) }

// Inflight returns the number of messages attempted but not yet acked.
func (q *Queue) Inflight() int { return len(q.inflight) }

// Acked returns the cumulative count of acknowledged messages.
func (q *Queue) Acked() int { return q.ackedN }

// Dropped returns the cumulative count of messages that exceeded the
// configured retry limit without being acked.
func (q *Queue) Dropped() int { return q.dropped }

func (q *Queue) depthGaugeSet()    { q.depthGauge.Set(float64(len(q.waiting))) }
func (q *Queue) inflightGaugeSet() { q.inflightGauge.Set(float64(len(q.inflight))) }
