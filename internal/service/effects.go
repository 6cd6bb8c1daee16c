package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/accounts/internal/models"
	"github.com/Skotchmaster/accounts/internal/transport"
	"github.com/Skotchmaster/accounts/pkg/logging"
)

const (
	EventAccountCreated   = "account_created"
	EventAccountLoggedIn  = "account_logged_in"
	EventAccountLoggedOut = "account_logged_out"
	EventAccountUpdated   = "account_updated"
	EventAccountDeleted   = "account_deleted"
)

const sideEffectTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(ctx context.Context, ev transport.AccountEvent) error
}

// Directory is the searchable copy of live accounts.
type Directory interface {
	Index(ctx context.Context, acc transport.Account) error
	Remove(ctx context.Context, accountID string) error
	Search(ctx context.Context, query string, from, size int) ([]transport.Account, int64, error)
}

// afterCommit starts the best-effort side effects of a committed operation
// in the background, bounded by sideEffectTimeout. Failures are logged and
// never reach the caller.
func (s *AccountService) afterCommit(ctx context.Context, eventType string, acc models.Account) {
	if s.Events == nil && s.Directory == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		s.runSideEffects(ctx, eventType, acc)
	}()
}

// WaitSideEffects blocks until every side effect started so far has finished.
func (s *AccountService) WaitSideEffects() {
	s.effects.Wait()
}

func (s *AccountService) runSideEffects(ctx context.Context, eventType string, acc models.Account) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	l := logging.FromContext(ctx).With("event", eventType, "account_id", acc.ID.String())

	if s.Events != nil {
		ev := transport.AccountEvent{
			Type:      eventType,
			AccountID: acc.ID.String(),
			UserName:  acc.UserName,
			At:        time.Now().UTC(),
		}
		if err := s.Events.Publish(ctx, ev); err != nil {
			l.Warn("publish_event_failed", "error", err)
		}
	}

	if s.Directory == nil {
		return
	}
	var err error
	switch eventType {
	case EventAccountCreated, EventAccountUpdated:
		err = s.Directory.Index(ctx, transport.AccountFromModel(acc.Redacted()))
	case EventAccountDeleted:
		err = s.Directory.Remove(ctx, acc.ID.String())
	}
	if err != nil {
		l.Warn("directory_sync_failed", "error", err)
	}
}
