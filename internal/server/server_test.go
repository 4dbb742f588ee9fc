package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

type fakeWatches struct {
	startToken string
	watchErr   error
	watched    []string // cursors watch was anchored at
	stopped    []string // channel IDs stopped
	stopErr    error
}

func (w *fakeWatches) Watch(_ context.Context, _, cursor string) (*drive.Channel, error) {
	if w.watchErr != nil {
		return nil, w.watchErr
	}

	w.watched = append(w.watched, cursor)
	return &drive.Channel{ID: "chan-new", ResourceID: "res-new", Expiration: 1234}, nil
}

func (w *fakeWatches) StopWatch(_ context.Context, channelID, _ string) error {
	w.stopped = append(w.stopped, channelID)
	return w.stopErr
}

func (w *fakeWatches) StartPageToken(_ context.Context) (string, error) {
	return w.startToken, nil
}

type fakeSubStore struct {
	cursor string
	sub    *state.Subscription
}

func (s *fakeSubStore) Cursor(_ context.Context) (string, error) { return s.cursor, nil }

func (s *fakeSubStore) SetCursor(_ context.Context, token string) error {
	s.cursor = token
	return nil
}

func (s *fakeSubStore) Subscription(_ context.Context) (*state.Subscription, error) {
	return s.sub, nil
}

func (s *fakeSubStore) SetSubscription(_ context.Context, sub *state.Subscription) error {
	s.sub = sub
	return nil
}

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) HandleNotification(_ context.Context) error {
	f.calls++
	return f.err
}

type fakeInitial struct {
	calls int
	n     int
}

func (f *fakeInitial) RunInitialSync(_ context.Context) (int, error) {
	f.calls++
	return f.n, nil
}

type fixture struct {
	watches *fakeWatches
	store   *fakeSubStore
	syncer  *fakeSyncer
	initial *fakeInitial
	srv     *Server
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		watches: &fakeWatches{startToken: "start-1"},
		store:   &fakeSubStore{},
		syncer:  &fakeSyncer{},
		initial: &fakeInitial{n: 5},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	f.srv = New(cfg, f.watches, f.store, f.syncer, f.initial, logger)

	return f
}

func (f *fixture) request(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(rec, req)

	return rec
}

func TestVerification(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{VerificationToken: "tok123"})

	rec := f.request(http.MethodGet, "/webhook", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "google-site-verification: tok123", rec.Body.String())
}

func TestNotification_UnknownChannelIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.store.sub = &state.Subscription{ChannelID: "chan-1"}

	rec := f.request(http.MethodPost, "/webhook", map[string]string{
		headerChannelID: "someone-else",
	})

	assert.Equal(t, http.StatusOK, rec.Code, "unknown channels still get 200")
	assert.Zero(t, f.syncer.calls)
}

func TestNotification_SyncPingAcknowledged(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.store.sub = &state.Subscription{ChannelID: "chan-1"}

	rec := f.request(http.MethodPost, "/webhook", map[string]string{
		headerChannelID:     "chan-1",
		headerResourceState: "sync",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.syncer.calls)
}

func TestNotification_TriggersSync(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.store.sub = &state.Subscription{ChannelID: "chan-1"}

	rec := f.request(http.MethodPost, "/webhook", map[string]string{
		headerChannelID:     "chan-1",
		headerResourceState: "change",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.syncer.calls)
}

func TestNotification_SyncErrorStill200(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.store.sub = &state.Subscription{ChannelID: "chan-1"}
	f.syncer.err = errors.New("push failed")

	rec := f.request(http.MethodPost, "/webhook", map[string]string{
		headerChannelID: "chan-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code, "failures must not trigger Drive retries")
}

func TestSetup_AnchorsCursorAndRegistersWatch(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{WebhookURL: "https://example.com/webhook"})

	rec := f.request(http.MethodPost, "/setup", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "start-1", f.store.cursor)
	assert.Equal(t, []string{"start-1"}, f.watches.watched)

	require.NotNil(t, f.store.sub)
	assert.Equal(t, "chan-new", f.store.sub.ChannelID)
	assert.Zero(t, f.initial.calls)
}

func TestSetup_InitialSync(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{WebhookURL: "https://example.com/webhook"})

	rec := f.request(http.MethodPost, "/setup?initial_sync=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, f.initial.calls)
	assert.Contains(t, rec.Body.String(), `"imported":5`)
}

func TestRenew_ReplacesChannelAndCatchesUp(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{WebhookURL: "https://example.com/webhook"})
	f.store.cursor = "cursor-7"
	f.store.sub = &state.Subscription{ChannelID: "chan-old", ResourceID: "res-old"}

	rec := f.request(http.MethodPost, "/renew", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"chan-old"}, f.watches.stopped)
	assert.Equal(t, []string{"cursor-7"}, f.watches.watched)
	assert.Equal(t, "chan-new", f.store.sub.ChannelID)
	assert.Equal(t, 1, f.syncer.calls, "renewal runs a catch-up cycle")
}

func TestRenew_StopFailureTolerated(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{WebhookURL: "https://example.com/webhook"})
	f.store.cursor = "cursor-7"
	f.store.sub = &state.Subscription{ChannelID: "chan-old", ResourceID: "res-old"}
	f.watches.stopErr = errors.New("channel already expired")

	rec := f.request(http.MethodPost, "/renew", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chan-new", f.store.sub.ChannelID)
}

func TestRenew_RequiresCursor(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	rec := f.request(http.MethodPost, "/renew", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.watches.watched)
}
