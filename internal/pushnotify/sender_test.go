package pushnotify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription"
)

type fakeSubRepo struct {
	mu      sync.Mutex
	subs    []*pushsubscription.Subscription
	deleted []string
	listed  bool
}

func (f *fakeSubRepo) Create(_ context.Context, s *pushsubscription.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, s)
	return nil
}

func (f *fakeSubRepo) Upsert(_ context.Context, s *pushsubscription.Subscription) (*pushsubscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.subs {
		if existing.Endpoint == s.Endpoint {
			f.subs[i] = s
			return s, nil
		}
	}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeSubRepo) Get(_ context.Context, id string) (*pushsubscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("subscription %s not found", id)
}

func (f *fakeSubRepo) List(_ context.Context) ([]*pushsubscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = true
	out := make([]*pushsubscription.Subscription, len(f.subs))
	copy(out, f.subs)
	return out, nil
}

func (f *fakeSubRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSubRepo) FindByEndpoint(_ context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.Endpoint == endpoint {
			return s, nil
		}
	}
	return nil, fmt.Errorf("endpoint not found")
}

func (f *fakeSubRepo) DeleteByEndpoint(_ context.Context, endpoint string) error {
	return nil
}

func (f *fakeSubRepo) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *fakeSubRepo) listCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

// testSubscription builds a subscription with a real P-256 key pair so the
// webpush library can encrypt against it.
func testSubscription(t *testing.T, id, endpoint string) *pushsubscription.Subscription {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &pushsubscription.Subscription{
		ID:        id,
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestSender(t *testing.T, repo pushsubscription.Repository) *Sender {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewSender(&config.VAPIDEnv{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		VAPIDContact:    "mailto:ops@example.com",
	}, repo)
}

type pushServiceRecorder struct {
	mu       sync.Mutex
	requests int
	ttl      string
	encoding string
}

func (r *pushServiceRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.requests++
		r.ttl = req.Header.Get("TTL")
		r.encoding = req.Header.Get("Content-Encoding")
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestSendToAllWithoutVAPIDKeysIsNoop(t *testing.T) {
	repo := &fakeSubRepo{}
	s := NewSender(&config.VAPIDEnv{}, repo)

	s.SendToAll(context.Background(), &NotificationPayload{Title: "hi"})

	assert.False(t, repo.listCalled())
}

func TestSendToAllDeliversEncryptedPush(t *testing.T) {
	rec := &pushServiceRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusCreated))
	defer srv.Close()

	repo := &fakeSubRepo{subs: []*pushsubscription.Subscription{
		testSubscription(t, "sub-1", srv.URL),
	}}
	s := newTestSender(t, repo)

	s.SendToAll(context.Background(), &NotificationPayload{Title: "Approval required", Body: "task-3"})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.requests)
	assert.Equal(t, "86400", rec.ttl)
	assert.Equal(t, "aes128gcm", rec.encoding)
	assert.Empty(t, repo.deletedIDs())
}

func TestSendToAllFansOutToEverySubscription(t *testing.T) {
	rec := &pushServiceRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusCreated))
	defer srv.Close()

	repo := &fakeSubRepo{subs: []*pushsubscription.Subscription{
		testSubscription(t, "sub-1", srv.URL),
		testSubscription(t, "sub-2", srv.URL),
		testSubscription(t, "sub-3", srv.URL),
	}}
	s := newTestSender(t, repo)

	s.SendToAll(context.Background(), &NotificationPayload{Title: "hi"})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 3, rec.requests)
}

func TestSendToAllPrunesGoneSubscriptions(t *testing.T) {
	rec := &pushServiceRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusGone))
	defer srv.Close()

	repo := &fakeSubRepo{subs: []*pushsubscription.Subscription{
		testSubscription(t, "sub-1", srv.URL),
	}}
	s := newTestSender(t, repo)

	s.SendToAll(context.Background(), &NotificationPayload{Title: "hi"})

	assert.Equal(t, []string{"sub-1"}, repo.deletedIDs())
}

func TestSendToAllKeepsSubscriptionOnServerError(t *testing.T) {
	rec := &pushServiceRecorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()

	repo := &fakeSubRepo{subs: []*pushsubscription.Subscription{
		testSubscription(t, "sub-1", srv.URL),
	}}
	s := newTestSender(t, repo)

	s.SendToAll(context.Background(), &NotificationPayload{Title: "hi"})

	assert.Empty(t, repo.deletedIDs())
}
