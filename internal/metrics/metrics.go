package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Set holds the server's counters. All methods are safe for concurrent
// use; the hot-path increments are single atomic adds.
type Set struct {
	start time.Time

	connectionsOpened  atomic.Int64
	connectionsActive  atomic.Int64
	handshakesRejected atomic.Int64
	framesReceived     atomic.Int64
	publishes          atomic.Int64
	eventsDelivered    atomic.Int64
	deliveryFailures   atomic.Int64
	historyRecorded    atomic.Int64
	bridgePublished    atomic.Int64
	bridgeReceived     atomic.Int64
}

func New() *Set {
	return &Set{start: time.Now()}
}

func (s *Set) ConnOpened() {
	s.connectionsOpened.Add(1)
	s.connectionsActive.Add(1)
}

func (s *Set) ConnClosed() {
	s.connectionsActive.Add(-1)
}

func (s *Set) HandshakeRejected() {
	s.handshakesRejected.Add(1)
}

func (s *Set) FrameReceived() {
	s.framesReceived.Add(1)
}

// Publish records one fan-out: how many members received the frame and
// how many failed.
func (s *Set) Publish(delivered, failed int) {
	s.publishes.Add(1)
	s.eventsDelivered.Add(int64(delivered))
	s.deliveryFailures.Add(int64(failed))
}

func (s *Set) HistoryRecorded() {
	s.historyRecorded.Add(1)
}

func (s *Set) BridgePublished() {
	s.bridgePublished.Add(1)
}

func (s *Set) BridgeReceived() {
	s.bridgeReceived.Add(1)
}

// Snapshot is a point-in-time copy of every counter, used by the stats
// endpoint.
type Snapshot struct {
	ConnectionsOpened  int64
	ConnectionsActive  int64
	HandshakesRejected int64
	FramesReceived     int64
	Publishes          int64
	EventsDelivered    int64
	DeliveryFailures   int64
	HistoryRecorded    int64
	BridgePublished    int64
	BridgeReceived     int64
	UptimeSeconds      float64
}

func (s *Set) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsOpened:  s.connectionsOpened.Load(),
		ConnectionsActive:  s.connectionsActive.Load(),
		HandshakesRejected: s.handshakesRejected.Load(),
		FramesReceived:     s.framesReceived.Load(),
		Publishes:          s.publishes.Load(),
		EventsDelivered:    s.eventsDelivered.Load(),
		DeliveryFailures:   s.deliveryFailures.Load(),
		HistoryRecorded:    s.historyRecorded.Load(),
		BridgePublished:    s.bridgePublished.Load(),
		BridgeReceived:     s.bridgeReceived.Load(),
		UptimeSeconds:      time.Since(s.start).Seconds(),
	}
}

// ServeHTTP writes every counter in the exposition format negotiated
// with the scraper.
func (s *Set) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()
	families := []*dto.MetricFamily{
		counter("pulsewire_connections_opened_total", "WebSocket connections accepted since start.", snap.ConnectionsOpened),
		gauge("pulsewire_connections_active", "WebSocket connections currently open.", snap.ConnectionsActive),
		counter("pulsewire_handshakes_rejected_total", "WebSocket handshakes rejected before upgrade.", snap.HandshakesRejected),
		counter("pulsewire_frames_received_total", "Inbound frames read from peers.", snap.FramesReceived),
		counter("pulsewire_publishes_total", "Events published to groups.", snap.Publishes),
		counter("pulsewire_events_delivered_total", "Per-member deliveries that succeeded.", snap.EventsDelivered),
		counter("pulsewire_delivery_failures_total", "Per-member deliveries that failed.", snap.DeliveryFailures),
		counter("pulsewire_history_recorded_total", "Chat messages recorded to history.", snap.HistoryRecorded),
		counter("pulsewire_bridge_published_total", "Envelopes forwarded to the cluster bridge.", snap.BridgePublished),
		counter("pulsewire_bridge_received_total", "Envelopes received from the cluster bridge.", snap.BridgeReceived),
		gaugeFloat("pulsewire_uptime_seconds", "Seconds since the server started.", snap.UptimeSeconds),
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		_ = closer.Close()
	}
}

// --- family builders ---

func counter(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(float64(v))}},
		},
	}
}

func gauge(name, help string, v int64) *dto.MetricFamily {
	return gaugeFloat(name, help, float64(v))
}

func gaugeFloat(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(v)}},
		},
	}
}
