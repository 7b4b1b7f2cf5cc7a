package links

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEntry struct {
	mu       sync.Mutex
	payloads []models.LinkPayload
	panicOn  models.LinkKind
}

func (r *recordingEntry) Verify(_ context.Context, p models.LinkPayload) {
	if r.panicOn != models.LinkIgnored && p.Kind == r.panicOn {
		panic("entry exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recordingEntry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

type recordingOAuth struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recordingOAuth) CompleteOAuth(_ context.Context, token, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
}

func TestHandle_Routing(t *testing.T) {
	entry := &recordingEntry{}
	oauth := &recordingOAuth{}
	d := NewDispatcher(NewChannelSource(""), entry, oauth)
	ctx := context.Background()

	d.Handle(ctx, "careercoach://auth/verify?token=t1")
	d.Handle(ctx, "careercoach://auth/verify?jwt=x&user="+url.QueryEscape(userJSON))
	d.Handle(ctx, "careercoach://auth/verify")
	d.Handle(ctx, "careercoach://oauth/callback?token=bearer")
	d.Handle(ctx, "careercoach://roadmap/1")

	require.Len(t, entry.payloads, 3)
	assert.Equal(t, models.LinkExchange, entry.payloads[0].Kind)
	assert.Equal(t, models.LinkFastPath, entry.payloads[1].Kind)
	assert.Equal(t, models.LinkMalformed, entry.payloads[2].Kind)
	assert.Equal(t, []string{"bearer"}, oauth.tokens)
}

func TestHandle_BadUserJSONDoesNotEscape(t *testing.T) {
	entry := &recordingEntry{}
	d := NewDispatcher(NewChannelSource(""), entry, nil)

	var p models.LinkPayload
	require.NotPanics(t, func() {
		p = d.Handle(context.Background(), "careercoach://auth/verify?jwt=x&user={bad")
	})
	assert.Equal(t, models.LinkMalformed, p.Kind)
	assert.Equal(t, 1, entry.count())
}

func TestHandle_RecoversFromCollaboratorPanic(t *testing.T) {
	entry := &recordingEntry{panicOn: models.LinkExchange}
	d := NewDispatcher(NewChannelSource(""), entry, nil)

	require.NotPanics(t, func() {
		d.Handle(context.Background(), "careercoach://auth/verify?token=t1")
	})
}

func TestHandle_NilCollaborators(t *testing.T) {
	d := NewDispatcher(NewChannelSource(""), nil, nil)
	assert.Equal(t, models.LinkOAuthToken, d.Handle(context.Background(), "app://cb?token=t").Kind)
	assert.Equal(t, models.LinkExchange, d.Handle(context.Background(), "app://auth/verify?token=t").Kind)
}

func TestRun_ColdStartAndLiveLinks(t *testing.T) {
	src := NewChannelSource("careercoach://auth/verify?token=cold")
	entry := &recordingEntry{}
	d := NewDispatcher(src, entry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Subscribers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, src.Deliver(ctx, "careercoach://auth/verify?token=live"))

	require.Eventually(t, func() bool { return entry.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, src.Subscribers())

	tokens := []string{entry.payloads[0].Token, entry.payloads[1].Token}
	assert.ElementsMatch(t, []string{"cold", "live"}, tokens)
}

func TestRun_ColdStartLinkHandledOnce(t *testing.T) {
	src := NewChannelSource("careercoach://auth/verify?token=cold")
	entry := &recordingEntry{}

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- NewDispatcher(src, entry, nil).Run(ctx) }()
		require.Eventually(t, func() bool { return src.Subscribers() == 1 }, time.Second, time.Millisecond)
		cancel()
		require.NoError(t, <-done)
	}

	assert.Equal(t, 1, entry.count())
}
