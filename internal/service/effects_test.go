package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/accounts/internal/transport"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []transport.AccountEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev transport.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type memoryDirectory struct {
	mu      sync.Mutex
	docs    map[string]transport.Account
	err     error
	queries []string
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{docs: map[string]transport.Account{}}
}

func (d *memoryDirectory) Index(_ context.Context, acc transport.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.docs[acc.ID] = acc
	return nil
}

func (d *memoryDirectory) Remove(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	delete(d.docs, id)
	return nil
}

func (d *memoryDirectory) Search(_ context.Context, query string, from, size int) ([]transport.Account, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, query)
	if d.err != nil {
		return nil, 0, d.err
	}
	var out []transport.Account
	for _, acc := range d.docs {
		if acc.UserName == query || acc.Email == query {
			out = append(out, acc)
		}
	}
	total := int64(len(out))
	if from >= len(out) {
		return nil, total, nil
	}
	out = out[from:]
	if len(out) > size {
		out = out[:size]
	}
	return out, total, nil
}

func TestSideEffects_FollowAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)
	pub := &recordingPublisher{}
	dir := newMemoryDirectory()
	env.svc.Events = pub
	env.svc.Directory = dir
	ctx := context.Background()

	alice := env.createAlice(t)
	env.svc.WaitSideEffects()
	require.Contains(t, dir.docs, alice.ID.String())

	_, err := env.svc.Login(ctx, transport.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	env.svc.WaitSideEffects()
	require.NoError(t, env.svc.Logout(ctx, alice.ID))
	env.svc.WaitSideEffects()
	_, err = env.svc.Update(ctx, alice.ID, transport.UpdateAccountRequest{UserName: "alice2", Email: "a@x.com"})
	require.NoError(t, err)
	env.svc.WaitSideEffects()
	assert.Equal(t, "alice2", dir.docs[alice.ID.String()].UserName)

	require.NoError(t, env.svc.Delete(ctx, alice.ID))
	env.svc.WaitSideEffects()
	assert.NotContains(t, dir.docs, alice.ID.String())

	assert.Equal(t, []string{
		EventAccountCreated,
		EventAccountLoggedIn,
		EventAccountLoggedOut,
		EventAccountUpdated,
		EventAccountDeleted,
	}, pub.types())
	for _, ev := range pub.events {
		assert.Equal(t, alice.ID.String(), ev.AccountID)
		assert.False(t, ev.At.IsZero())
	}
	env.assertSpansClosed(t)
}

func TestSideEffects_FailuresDoNotFailOperation(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Events = &recordingPublisher{err: errors.New("broker down")}
	dir := newMemoryDirectory()
	dir.err = errors.New("cluster red")
	env.svc.Directory = dir

	acc := env.createAlice(t)
	assert.Equal(t, "alice", acc.UserName)
	require.NoError(t, env.svc.Delete(context.Background(), acc.ID))
	env.svc.WaitSideEffects()
}

// blockingPublisher holds every Publish until release is closed.
type blockingPublisher struct {
	recordingPublisher
	release chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, ev transport.AccountEvent) error {
	<-p.release
	return p.recordingPublisher.Publish(ctx, ev)
}

func TestSideEffects_DoNotHoldOperation(t *testing.T) {
	env := newTestEnv(t)
	pub := &blockingPublisher{release: make(chan struct{})}
	env.svc.Events = pub

	acc := env.createAlice(t)
	assert.Equal(t, "alice", acc.UserName)

	spans := env.assertSpansClosed(t)
	require.Contains(t, spans, "create_account")
	assert.Empty(t, pub.types())

	close(pub.release)
	env.svc.WaitSideEffects()
	assert.Equal(t, []string{EventAccountCreated}, pub.types())
}

func TestSideEffects_NotRunOnFailure(t *testing.T) {
	env := newTestEnv(t)
	pub := &recordingPublisher{}
	env.svc.Events = pub
	env.createAlice(t)

	_, err := env.svc.Create(context.Background(), transport.CreateAccountRequest{UserName: "alice", Email: "a@x.com", Password: "p"})
	require.ErrorIs(t, err, ErrConflict)
	_, err = env.svc.Login(context.Background(), transport.LoginRequest{Email: "a@x.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	env.svc.WaitSideEffects()
	assert.Equal(t, []string{EventAccountCreated}, pub.types())
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	dir := newMemoryDirectory()
	env.svc.Directory = dir
	alice := env.createAlice(t)
	env.svc.WaitSideEffects()
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		env.reset()
		res, err := env.svc.Search(ctx, SearchRequest{Query: "alice", Page: 1, Size: 5})
		require.NoError(t, err)
		require.Len(t, res.Accounts, 1)
		assert.Equal(t, alice.ID.String(), res.Accounts[0].ID)
		assert.Equal(t, int64(1), res.Total)
		assert.Equal(t, 1, res.Page)
		assert.Equal(t, 5, res.Size)

		spans := env.assertSpansClosed(t)
		for _, name := range []string{"search_accounts", "validate_input", "query_directory"} {
			require.Contains(t, spans, name)
		}
	})

	t.Run("page past the end", func(t *testing.T) {
		res, err := env.svc.Search(ctx, SearchRequest{Query: "alice", Page: 3, Size: 0})
		require.NoError(t, err)
		assert.Empty(t, res.Accounts)
		assert.NotNil(t, res.Accounts)
		assert.Equal(t, 3, res.Page)
		assert.Equal(t, 10, res.Size)
	})

	t.Run("missing query", func(t *testing.T) {
		env.reset()
		_, err := env.svc.Search(ctx, SearchRequest{})
		require.ErrorIs(t, err, ErrInvalidInput)
		env.assertSpansClosed(t)
	})

	t.Run("directory failure", func(t *testing.T) {
		dir.err = errors.New("timeout")
		defer func() { dir.err = nil }()
		env.reset()
		_, err := env.svc.Search(ctx, SearchRequest{Query: "alice"})
		require.ErrorIs(t, err, ErrInternal)
		env.assertSpansClosed(t)
	})

	t.Run("no directory", func(t *testing.T) {
		env.svc.Directory = nil
		_, err := env.svc.Search(ctx, SearchRequest{Query: "alice"})
		require.ErrorIs(t, err, ErrInternal)
	})
}
