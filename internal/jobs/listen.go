package jobs

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/lib/pq"
)

// Listener turns NOTIFYs on NotifyChannel into worker wake-ups.
type Listener struct {
	pl   *pq.Listener
	wake chan struct{}
	done chan struct{}
}

// Listen connects to Postgres at dsn and listens on NotifyChannel. Bursts of
// notifications collapse into a single pending wake-up.
func Listen(dsn string, log hclog.Logger) (*Listener, error) {
	pl := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("job listener event", "event", ev, "error", err)
		}
	})
	if err := pl.Listen(NotifyChannel); err != nil {
		_ = pl.Close()
		return nil, err
	}

	l := &Listener{pl: pl, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go l.loop()
	return l, nil
}

func (l *Listener) loop() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-l.pl.Notify:
			// a nil notification follows a reconnect; jobs may have been missed
			if !ok {
				return
			}
			l.signal()
		case <-ping.C:
			go func() { _ = l.pl.Ping() }()
		}
	}
}

func (l *Listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake is the channel to hand to Worker.Wake.
func (l *Listener) Wake() <-chan struct{} { return l.wake }

func (l *Listener) Close() error {
	close(l.done)
	return l.pl.Close()
}
