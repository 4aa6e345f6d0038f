package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsewire/pulsewire/internal/config"
	"github.com/pulsewire/pulsewire/internal/event"
	"github.com/pulsewire/pulsewire/internal/metrics"
	"github.com/pulsewire/pulsewire/internal/router"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	publishBuffer     = 256
)

// Envelope is the wire format on the Redis channel. Data is the frame
// exactly as local members received it.
type Envelope struct {
	Origin string          `json:"origin"`
	Group  string          `json:"group"`
	Kind   string          `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

// Bridge relays published frames between instances over one Redis
// pub/sub channel. Forward() is non-blocking; when the outbound buffer
// is full the oldest envelope is evicted. Run() must be called in a
// goroutine to drain the buffer and maintain the subscription.
type Bridge struct {
	rdb     *redis.Client
	channel string
	origin  string
	rt      *router.Router
	met     *metrics.Set
	out     chan Envelope
}

// New creates a Bridge from the cluster config. The Redis connection
// is not opened until Run.
func New(cfg config.ClusterConfig, rt *router.Router, met *metrics.Set) *Bridge {
	origin := cfg.InstanceID
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Bridge{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.Password(),
		}),
		channel: cfg.EffectiveChannel(),
		origin:  origin,
		rt:      rt,
		met:     met,
		out:     make(chan Envelope, publishBuffer),
	}
}

// Origin returns this instance's envelope origin ID.
func (b *Bridge) Origin() string { return b.origin }

// Forward enqueues a locally published frame for the channel. It is
// called with the router's publish lock held and never blocks; when
// the buffer is full the oldest envelope is evicted to make room.
// Presence counts stay local.
func (b *Bridge) Forward(group, kind string, data []byte) {
	if kind == event.KindUserCount {
		return
	}
	env := Envelope{Origin: b.origin, Group: group, Kind: kind, Data: data}
	select {
	case b.out <- env:
		return
	default:
	}
	select {
	case old := <-b.out:
		slog.Warn("bridge: outbound buffer full, evicted oldest envelope",
			"group", old.Group, "buffer_cap", cap(b.out))
	default:
	}
	select {
	case b.out <- env:
	default:
	}
}

// Run publishes buffered envelopes and consumes the channel until ctx
// is cancelled. Both sides reconnect with exponential backoff.
func (b *Bridge) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.publishLoop(ctx)
	}()

	b.subscribeLoop(ctx)
	wg.Wait()
	_ = b.rdb.Close()
}

// publishLoop drains the outbound buffer. A failed publish is retried
// with backoff; Forward keeps evicting the oldest behind it, so a long
// outage loses the oldest envelopes first.
func (b *Bridge) publishLoop(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.out:
			payload, err := json.Marshal(env)
			if err != nil {
				slog.Error("bridge: drop unencodable envelope", "group", env.Group, "err", err)
				continue
			}
			for {
				err := b.rdb.Publish(ctx, b.channel, payload).Err()
				if err == nil {
					b.met.BridgePublished()
					bo.reset()
					break
				}
				if ctx.Err() != nil {
					return
				}
				wait := bo.next()
				slog.Warn("bridge: publish failed, will retry",
					"channel", b.channel,
					"err", err,
					"retry_in", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

// subscribeLoop keeps one subscription to the channel alive,
// resubscribing with backoff when it drops.
func (b *Bridge) subscribeLoop(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := b.rdb.Ping(ctx).Err(); err != nil {
			wait := bo.next()
			slog.Error("bridge: redis unreachable, will retry",
				"addr", b.rdb.Options().Addr,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("bridge: connected",
			"addr", b.rdb.Options().Addr,
			"channel", b.channel,
			"origin", b.origin)
		bo.reset()

		err := b.consume(ctx)

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("bridge: subscription lost, will resubscribe",
			"channel", b.channel,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consume reads envelopes from the subscription until it fails or ctx
// is cancelled.
func (b *Bridge) consume(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close() //nolint:errcheck

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			b.dispatch([]byte(msg.Payload))
		}
	}
}

// dispatch decodes one envelope and fans it out to local members.
// Envelopes this instance published come back on the channel too and
// are skipped by origin.
func (b *Bridge) dispatch(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("bridge: drop undecodable envelope", "err", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.met.BridgeReceived()
	b.rt.Fanout(env.Group, env.Data)
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	// Advance for next call.
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
