package links

import (
	"context"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/logging"
	"github.com/dmitrijs2005/careercoach/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// VerificationEntry is the presentation layer's entry into the verification
// state machine. Fast-path, exchange and malformed payloads go there.
type VerificationEntry interface {
	Verify(ctx context.Context, payload models.LinkPayload)
}

// OAuthHandler completes sign-in for a bearer token from an OAuth redirect.
type OAuthHandler interface {
	CompleteOAuth(ctx context.Context, token, redirect string)
}

type Dispatcher struct {
	source     LinkSource
	entry      VerificationEntry
	oauth      OAuthHandler
	verifyPath string
	log        logging.Logger
	metrics    metrics.Recorder
}

type Option func(*Dispatcher)

// WithVerifyPath overrides DefaultVerifyPath.
func WithVerifyPath(p string) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.verifyPath = p
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(source LinkSource, entry VerificationEntry, oauth OAuthHandler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:     source,
		entry:      entry,
		oauth:      oauth,
		verifyPath: DefaultVerifyPath,
		log:        logging.Nop(),
		metrics:    metrics.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run handles the cold-start link and every live link until ctx is done.
// The subscription is taken before the
// cold-start link is read, so nothing delivered meanwhile is lost, and it is
// released on return.
func (d *Dispatcher) Run(ctx context.Context) error {
	live, unsubscribe := d.source.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if link, ok := d.source.InitialLink(); ok {
			d.Handle(ctx, link)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case link, ok := <-live:
				if !ok {
					return nil
				}
				d.Handle(ctx, link)
			}
		}
	})

	return g.Wait()
}

// Handle classifies one link and forwards it. It never panics, whatever the
// collaborators do.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (p models.LinkPayload) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(ctx, "link handler panicked", "op", "dispatch", "panic", r)
		}
	}()

	p = Classify(raw, d.verifyPath)
	d.metrics.RecordLink(p.Kind.String())
	d.log.Debug(ctx, "link classified", "op", "dispatch", "kind", p.Kind.String(), "path", p.Path)

	switch p.Kind {
	case models.LinkFastPath, models.LinkExchange, models.LinkMalformed:
		if d.entry != nil {
			d.entry.Verify(ctx, p)
		}
	case models.LinkOAuthToken:
		if d.oauth != nil {
			d.oauth.CompleteOAuth(ctx, p.Token, p.RedirectPath)
		}
	case models.LinkIgnored:
	}
	return p
}
