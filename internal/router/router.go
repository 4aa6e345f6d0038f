package router

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pulsewire/pulsewire/internal/event"
	"github.com/pulsewire/pulsewire/internal/metrics"
	"github.com/pulsewire/pulsewire/internal/protocol"
	"github.com/pulsewire/pulsewire/internal/registry"
)

// Relay forwards locally published frames to peer instances. Forward
// is called with the router's publish lock held and must not block.
type Relay interface {
	Forward(group, kind string, data []byte)
}

// Result reports one fan-out. Recipients is the snapshot size,
// Delivered the sends that were accepted, Failed the IDs of members
// whose send was refused.
type Result struct {
	Recipients int
	Delivered  int
	Failed     []string
}

// Router delivers events to group members. Publishes are serialized,
// so events published to the same group reach every member in the same
// order. A failed member never blocks delivery to the rest.
type Router struct {
	reg *registry.Registry
	met *metrics.Set

	mu    sync.Mutex
	relay Relay
}

func New(reg *registry.Registry, met *metrics.Set) *Router {
	return &Router{reg: reg, met: met}
}

// SetRelay attaches a cluster relay. Pass nil to detach.
func (rt *Router) SetRelay(r Relay) {
	rt.mu.Lock()
	rt.relay = r
	rt.mu.Unlock()
}

// Publish encodes ev once and delivers the frame to every member of
// group as of the moment of publish. Members that join mid-delivery
// see only later events; members that leave may still receive this
// one. An event with no registered encoder is rejected before any
// member sees it.
func (rt *Router) Publish(group string, ev event.Event) (Result, error) {
	data, err := protocol.Encode(ev)
	if err != nil {
		return Result{}, fmt.Errorf("publish to %s: %w", group, err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	res := rt.fanout(group, data)
	if rt.relay != nil {
		rt.relay.Forward(group, ev.Kind, data)
	}
	return res, nil
}

// Fanout delivers an already-encoded frame to local members only. The
// cluster bridge uses it for frames published by other instances;
// those are never re-relayed.
func (rt *Router) Fanout(group string, data []byte) Result {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.fanout(group, data)
}

func (rt *Router) fanout(group string, data []byte) Result {
	snap := rt.reg.Snapshot(group)
	res := Result{Recipients: len(snap)}
	for _, m := range snap {
		if err := m.Sender.Send(data); err != nil {
			res.Failed = append(res.Failed, m.ID)
			slog.Warn("delivery failed", "group", group, "conn", m.ID, "err", err)
			continue
		}
		res.Delivered++
	}
	if rt.met != nil {
		rt.met.Publish(res.Delivered, len(res.Failed))
	}
	return res
}
