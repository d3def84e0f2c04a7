package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outbox keeps the latest message per recipient and kind in memory so local environments can
// complete sign-in without a mail service. Never enable it in production.
type Outbox struct {
	log zerolog.Logger
	now func() time.Time

	mu   sync.RWMutex
	msgs map[outboxKey]Message
}

type outboxKey struct {
	to   string
	kind Kind
}

// NewOutbox returns an empty Outbox.
func NewOutbox(logger zerolog.Logger) *Outbox {
	return &Outbox{
		log:  logger,
		now:  time.Now,
		msgs: make(map[outboxKey]Message),
	}
}

// Send stores msg, replacing any earlier message of the same kind for the recipient.
func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	o.msgs[outboxKey{to: msg.To, kind: msg.Kind}] = msg
	o.mu.Unlock()
	o.log.Info().Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("notification stored in dev outbox")
	return nil
}

// Latest returns the newest unexpired message of kind for to.
func (o *Outbox) Latest(to string, kind Kind) (Message, bool) {
	key := outboxKey{to: to, kind: kind}
	o.mu.RLock()
	msg, ok := o.msgs[key]
	o.mu.RUnlock()
	if !ok {
		return Message{}, false
	}
	if !msg.ExpiresAt.IsZero() && !msg.ExpiresAt.After(o.now()) {
		o.mu.Lock()
		delete(o.msgs, key)
		o.mu.Unlock()
		return Message{}, false
	}
	return msg, true
}
