// Package notify sends notifications about rotation events.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind is the type of event.
type Kind string

const (
	KindRoleChanged      Kind = "role_changed"
	KindDismissalMarked  Kind = "dismissal_marked"
	KindReviewTriggered  Kind = "review_triggered"
	KindAllocationFailed Kind = "allocation_failed"
)

// Event is a notification for a single user. UserID is uuid.Nil for
// notifications to the administration.
type Event struct {
	Kind    Kind
	UserID  uuid.UUID
	Message string
}

// Notifier delivers events. Delivery is best effort, callers only log errors.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Logger writes every event to a zerolog logger.
type Logger struct {
	Logger zerolog.Logger
}

func (l Logger) Notify(_ context.Context, event Event) error {
	e := l.Logger.Info().Str("kind", string(event.Kind))
	if event.UserID != uuid.Nil {
		e = e.Str("user", event.UserID.String())
	}
	e.Msg(event.Message)
	return nil
}

// Send delivers the event in the background and logs failures.
func Send(n Notifier, event Event) {
	if n == nil {
		return
	}

	go func() {
		if err := n.Notify(context.Background(), event); err != nil {
			log.Warn().Err(err).Str("kind", string(event.Kind)).Msg("notification failed")
		}
	}()
}
