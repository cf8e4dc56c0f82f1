// Package notify delivers desktop notifications. Delivery is fire-and-forget:
// a notification failure must never abort the job it reports on.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Notifier is the sink the executor reports through. It retains no identity
// beyond the call arguments.
type Notifier interface {
	Notify(title, message string)
}

// Desktop sends notifications to the local desktop session.
type Desktop struct {
	Log zerolog.Logger
}

func (d *Desktop) Notify(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		d.Log.Warn().Err(err).Str("title", title).Msg("failed to send notification")
	}
}
