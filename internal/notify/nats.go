package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

const DefaultSubjectPrefix = "clipforge.events"

// NATS publishes events as JSON on "<prefix>.<kind>", e.g.
// clipforge.events.render.complete.
type NATS struct {
	nc     *nats.Conn
	prefix string
	log    logrus.FieldLogger
}

func NewNATS(url, prefix string, log logrus.FieldLogger) (*NATS, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := nats.Connect(url,
		nats.Name("clipforge"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{nc: nc, prefix: prefix, log: log.WithField("component", "notify.nats")}, nil
}

func (n *NATS) Notify(_ context.Context, ev types.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		n.log.WithError(err).Warn("marshal event")
		return
	}
	if err := n.nc.Publish(Subject(n.prefix, ev.Kind), b); err != nil {
		n.log.WithError(err).WithField("event", ev.Kind).Warn("publish event")
	}
}

// Close flushes pending publishes and closes the connection.
func (n *NATS) Close() error {
	defer n.nc.Close()
	return n.nc.FlushTimeout(2 * time.Second)
}

func Subject(prefix string, kind types.EventKind) string {
	return prefix + "." + string(kind)
}
