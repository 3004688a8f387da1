package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stockcore/pkg/logger"
)

// ChannelNumberingPrefixes is notified by the sys_numbering_prefixes trigger.
const ChannelNumberingPrefixes = "numbering_prefixes_changed"

// InvalidationListener is called for every notification on its channel.
type InvalidationListener func(channel, payload string)

// Notifier listens for PostgreSQL NOTIFY events on a dedicated connection and
// fans them out to registered listeners.
type Notifier struct {
	pool *pgxpool.Pool

	listenersMu sync.RWMutex
	listeners   map[string][]InvalidationListener

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewNotifier creates a notifier over pool.
func NewNotifier(pool *pgxpool.Pool) *Notifier {
	return &Notifier{
		pool:      pool,
		listeners: make(map[string][]InvalidationListener),
	}
}

// Subscribe registers l for channel. Call before Start.
func (n *Notifier) Subscribe(channel string, l InvalidationListener) {
	n.listenersMu.Lock()
	n.listeners[channel] = append(n.listeners[channel], l)
	n.listenersMu.Unlock()
}

// Start begins listening in the background.
func (n *Notifier) Start(ctx context.Context) {
	n.lifecycleMu.Lock()
	defer n.lifecycleMu.Unlock()
	if n.started {
		return
	}
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.started = true

	n.wg.Add(1)
	go n.listenLoop()
}

// Stop cancels listening and waits for the loop to exit.
func (n *Notifier) Stop() {
	n.lifecycleMu.Lock()
	if !n.started {
		n.lifecycleMu.Unlock()
		return
	}
	cancel := n.cancel
	n.started = false
	n.cancel = nil
	n.lifecycleMu.Unlock()

	cancel()
	n.wg.Wait()
}

func (n *Notifier) channels() []string {
	n.listenersMu.RLock()
	defer n.listenersMu.RUnlock()
	out := make([]string, 0, len(n.listeners))
	for ch := range n.listeners {
		out = append(out, ch)
	}
	return out
}

func (n *Notifier) listenLoop() {
	defer n.wg.Done()

	for n.ctx.Err() == nil {
		conn, err := n.pool.Acquire(n.ctx)
		if err != nil {
			logger.Error(n.ctx, "failed to acquire connection for LISTEN", "error", err)
			n.sleep(time.Second)
			continue
		}

		if err := n.listen(conn); err != nil {
			logger.Error(n.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			n.sleep(time.Second)
			continue
		}

		n.waitForNotifications(conn)
		conn.Release()
	}
}

func (n *Notifier) listen(conn *pgxpool.Conn) error {
	for _, ch := range n.channels() {
		// Channel names are package constants, never user input.
		if _, err := conn.Exec(n.ctx, "LISTEN "+ch); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(n.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(n.ctx, "notification wait failed, reconnecting", "error", err)
			return
		}
		n.Dispatch(notification.Channel, notification.Payload)
	}
}

// Dispatch delivers one notification to the listeners of channel. Listener
// panics are recovered and logged.
func (n *Notifier) Dispatch(channel, payload string) {
	n.listenersMu.RLock()
	listeners := n.listeners[channel]
	n.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(context.Background(), "invalidation listener panic recovered", "channel", channel, "panic", r)
				}
			}()
			l(channel, payload)
		}()
	}
}

func (n *Notifier) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-n.ctx.Done():
	case <-t.C:
	}
}
