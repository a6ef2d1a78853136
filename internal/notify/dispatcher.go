package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"postpilot/pkg/logx"
)

// Config controls fan-out delivery.
type Config struct {
	// RatePerSec bounds outbound sends across all channels. Default 10.
	RatePerSec int
	// SendTimeout bounds one send to one subscriber/channel. Default 10s.
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher fans one publish event out to every (subscriber, enabled kind)
// pair. Sends are independent: one failure never aborts the rest.
//
// The sender table is fixed at construction; an enabled kind with no
// registered sender is a configuration error, reported loudly per dispatch
// and otherwise skipped.
type Dispatcher struct {
	log     logx.Logger
	prefs   PreferenceStore
	senders map[Kind]Sender

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func NewDispatcher(cfg Config, prefs PreferenceStore, senders map[Kind]Sender, log logx.Logger) *Dispatcher {
	d := &Dispatcher{log: log, prefs: prefs, senders: senders}
	d.Apply(cfg)
	return d
}

// Apply updates rate/timeout settings (config hot reload).
func (d *Dispatcher) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.mu.Unlock()
}

// Dispatch reads the subscriber list fresh, then delivers the event to each
// subscriber's enabled channels. Per-subscriber fan-out runs concurrently;
// Dispatch returns once every send has been attempted. The returned error is
// non-nil only when the subscriber list itself could not be read.
func (d *Dispatcher) Dispatch(ctx context.Context, itemID int64) error {
	subs, err := d.prefs.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	d.mu.Lock()
	lim := d.limiter
	timeout := d.cfg.SendTimeout
	d.mu.Unlock()

	ev := Event{ItemID: itemID, FiredAt: time.Now().UTC()}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			for _, kind := range sub.Kinds {
				sender, ok := d.senders[kind]
				if !ok {
					d.log.Error("no sender for enabled channel kind",
						logx.String("kind", string(kind)), logx.Int64("user_id", sub.UserID))
					continue
				}
				if err := lim.Wait(ctx); err != nil {
					return
				}
				sctx, cancel := context.WithTimeout(ctx, timeout)
				err := sender.Send(sctx, sub, ev)
				cancel()
				if err != nil {
					// Single attempt; the subscriber misses this one.
					d.log.Warn("send failed",
						logx.String("kind", string(kind)), logx.Int64("user_id", sub.UserID),
						logx.Int64("item_id", ev.ItemID), logx.Err(err))
				}
			}
		}(sub)
	}
	wg.Wait()

	d.log.Debug("dispatch complete", logx.Int64("item_id", itemID), logx.Int("subscribers", len(subs)))
	return nil
}
