// Package notify delivers ephemeral pipeline events. Events are fire and
// forget: a failed delivery is logged and never affects the project.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

// Log writes each event as a structured log line. Failures log at warn.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Log{log: log.WithField("component", "notify")}
}

func (l *Log) Notify(_ context.Context, ev types.Event) {
	entry := l.log.WithFields(logrus.Fields{
		"event":      ev.Kind,
		"project_id": ev.ProjectID,
	})
	if ev.ClipID != "" {
		entry = entry.WithField("clip_id", ev.ClipID)
	}
	if ev.Kind == types.EventDownloadProgress {
		entry.WithField("progress", ev.Progress).Debug(ev.Message)
		return
	}
	if isFailure(ev.Kind) {
		entry.Warn(ev.Message)
		return
	}
	entry.Info(ev.Message)
}

func isFailure(k types.EventKind) bool {
	switch k {
	case types.EventDownloadFailed, types.EventAnalysisFailed, types.EventRenderFailed:
		return true
	}
	return false
}

// Notifier matches ports.Notifier; kept local so this package stays a leaf.
type Notifier interface {
	Notify(ctx context.Context, ev types.Event)
}

// Multi fans an event out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev types.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
