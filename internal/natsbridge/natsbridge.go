// Package natsbridge fans out KissVDB's event stream onto NATS subjects,
// adapted from fluxor's pkg/core/eventbus_cluster_nats.go: the same
// Connect-then-Publish shape, generalized from fluxor's
// <prefix>.pub.<address> EventBus addressing to
// <prefix>.<kind>[.<collection>] event subjects. Off by default (spec §6
// optional domain-stack integration); when enabled without an external
// URL it runs an embedded in-process nats-server so a KissVDB deployment
// never needs an external broker just to get fan-out.
package natsbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/subscription"
)

// Config controls the bridge.
type Config struct {
	Enabled       bool
	SubjectPrefix string
	// URL, if set, connects to an external NATS server instead of
	// starting an embedded one.
	URL string
}

// Bridge owns the NATS connection (and, if embedded, the in-process
// server) and the goroutine tailing the event stream onto it.
type Bridge struct {
	embedded *server.Server
	conn     *nats.Conn
	prefix   string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Start connects (embedding a server if cfg.URL is empty) and begins
// tailing bus from offset 0, publishing every event onto its subject.
func Start(bus subscription.Bus, cfg Config) (*Bridge, error) {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "kissvdb.events"
	}

	var embedded *server.Server
	url := cfg.URL
	if url == "" {
		srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
		if err != nil {
			return nil, fmt.Errorf("natsbridge: start embedded server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(5 * time.Second) {
			return nil, fmt.Errorf("natsbridge: embedded server did not become ready")
		}
		embedded = srv
		url = srv.ClientURL()
	}

	nc, err := nats.Connect(url, nats.Name("kissvdb"))
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("natsbridge: connect: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{embedded: embedded, conn: nc, prefix: prefix, cancel: cancel, done: make(chan struct{})}
	go b.run(ctx, bus)
	return b, nil
}

func (b *Bridge) run(ctx context.Context, bus subscription.Bus) {
	defer close(b.done)
	sub := subscription.New(bus, 0, subscription.Filter{})
	defer sub.Close()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		b.publish(ev)
	}
}

func (b *Bridge) publish(ev event.Event) {
	subject := b.prefix + "." + string(ev.Kind)
	if ev.Collection != "" {
		subject += "." + ev.Collection
	}
	data, err := event.Encode(ev)
	if err != nil {
		return
	}
	_ = b.conn.Publish(subject, data)
}

// Stop halts the tailing goroutine, drains and closes the connection,
// and shuts down the embedded server if one was started.
func (b *Bridge) Stop() {
	b.cancel()
	<-b.done
	_ = b.conn.Drain()
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
}
