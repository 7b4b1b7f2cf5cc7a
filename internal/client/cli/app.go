package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/careercoach/internal/client/client"
	"github.com/dmitrijs2005/careercoach/internal/client/config"
	"github.com/dmitrijs2005/careercoach/internal/client/credentials"
	"github.com/dmitrijs2005/careercoach/internal/client/flight"
	"github.com/dmitrijs2005/careercoach/internal/client/links"
	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/client/services"
	"github.com/dmitrijs2005/careercoach/internal/client/verification"
	"github.com/dmitrijs2005/careercoach/internal/common"
	"github.com/dmitrijs2005/careercoach/internal/cryptox"
	"github.com/dmitrijs2005/careercoach/internal/logging"
	"github.com/dmitrijs2005/careercoach/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type Mode string

const (
	ModeSignedOut Mode = "signed-out"
	ModeSignedIn  Mode = "signed-in"
	ModeOffline   Mode = "offline"
)

// App is the composition root. It owns the single flight coordinator, so
// every verification screen it mounts shares one guard.
type App struct {
	config *config.Config
	log    logging.Logger
	in     io.Reader
	rd     *bufio.Reader
	rdOnce sync.Once

	outMu sync.Mutex
	out   io.Writer

	sessions   services.SessionService
	verifier   *verification.Service
	source     *links.ChannelSource
	dispatcher *links.Dispatcher
	registry   *prometheus.Registry
	closers    []func() error
	bg         sync.WaitGroup

	mu      sync.Mutex
	Mode    Mode
	current *verification.Session
	pending string
	route   string
	profile *models.UserProfile
}

// NewApp opens the local database, derives the storage key and builds the
// API client, then assembles the application around them. initialLink is
// the link the process was launched with, if any.
func NewApp(ctx context.Context, c *config.Config, initialLink string) (*App, error) {
	log := logging.New(os.Stderr, c.LogLevel)

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	key, err := storageKey(c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store, err := credentials.NewStore(db, key, c.StoragePrefix)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewHTTPClient(c.ServerBaseURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log),
		client.WithResendInterval(c.ResendInterval),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := assemble(c, api, store, log, initialLink)
	api.SetTokenListener(a.sessions)
	a.in = os.Stdin
	a.closers = append(a.closers, api.Close, db.Close)
	return a, nil
}

// storageKey derives the credential store key from the passphrase when one
// is configured and from the device key otherwise. The device key doubles
// as the passphrase salt.
func storageKey(c *config.Config) ([]byte, error) {
	deviceKey, err := cryptox.LoadOrCreateDeviceKey(c.DeviceKeyPath)
	if err != nil {
		return nil, fmt.Errorf("device key: %w", err)
	}
	defer common.WipeByteArray(deviceKey)

	if c.Passphrase != "" {
		pw := []byte(c.Passphrase)
		defer common.WipeByteArray(pw)
		return cryptox.DeriveKeyFromPassphrase(pw, deviceKey), nil
	}
	return cryptox.DeriveStorageKey(deviceKey, c.StoragePrefix)
}

func assemble(c *config.Config, api client.Client, store services.CredentialStore, log logging.Logger, initialLink string) *App {
	a := &App{
		config:   c,
		log:      log,
		out:      os.Stdout,
		registry: prometheus.NewRegistry(),
		Mode:     ModeSignedOut,
	}
	rec := metrics.NewCollector(a.registry)
	routes := verification.Routes{Main: c.MainRoute, Onboarding: c.OnboardingRoute}

	a.verifier = verification.NewService(flight.New(c.VerificationGrace), api, store, a, routes,
		verification.WithLogger(log),
		verification.WithMetrics(rec),
	)
	a.sessions = services.NewSessionService(api, store, a, routes,
		services.WithSessionLogger(log),
		services.WithSessionMetrics(rec),
		services.WithSignedOutRoute(c.SignedOutRoute),
	)
	a.source = links.NewChannelSource(initialLink)
	a.dispatcher = links.NewDispatcher(a.source, a, a,
		links.WithVerifyPath(c.VerifyPath),
		links.WithLogger(log),
		links.WithMetrics(rec),
	)
	return a
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format+"\n", args...)
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		a.log.Info(context.Background(), "mode switched", "mode", string(mode))
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode == ModeSignedIn
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := string(a.Mode)
	if a.profile != nil && a.profile.Email != "" {
		s = a.profile.Email + " " + s
	}
	if a.route != "" {
		s += " " + a.route
	}
	return fmt.Sprintf("(%s)", s)
}

// Navigate implements verification.Navigator. Leaving a screen unmounts the
// verification session shown on it.
func (a *App) Navigate(_ context.Context, route string) error {
	a.mu.Lock()
	a.route = route
	a.pending = ""
	s := a.current
	a.current = nil
	signedOut := route == a.config.SignedOutRoute
	if signedOut {
		a.profile = nil
	}
	a.mu.Unlock()

	if s != nil {
		s.Close()
	}
	if signedOut {
		a.setMode(ModeSignedOut)
	}
	a.printf("-> %s", route)
	return nil
}

// Verify implements links.VerificationEntry: it replaces the current screen
// with a verification screen for payload. A link delivered again within the
// grace period joins the result of the screen it replaced.
func (a *App) Verify(ctx context.Context, payload models.LinkPayload) {
	a.mu.Lock()
	prev := a.current
	a.current = nil
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	s := a.verifier.Open()
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	a.printf("Verifying sign-in link...")
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		snap, err := s.Enter(ctx, payload)
		if err != nil {
			a.log.Debug(ctx, "verification screen left early", "err", err)
			return
		}
		if !a.isCurrent(s) {
			a.log.Debug(ctx, "verification screen replaced, result not shown")
			return
		}
		a.show(snap)
	}()
}

func (a *App) isCurrent(s *verification.Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current == s
}

// CompleteOAuth implements links.OAuthHandler.
func (a *App) CompleteOAuth(ctx context.Context, token, redirect string) {
	a.printf("Completing sign-in...")
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		res := a.sessions.CompleteOAuth(ctx, token, redirect)
		if !res.Succeeded() {
			a.printf("Sign-in failed: %s", res.ErrorMessage)
			return
		}
		a.signedIn(res.Profile)
		a.mu.Lock()
		a.pending = res.Route
		a.mu.Unlock()
		a.printf("Signed in as %s. Type 'continue' to open %s.", displayName(res.Profile), res.Route)
	}()
}

func (a *App) show(snap verification.Snapshot) {
	switch snap.State {
	case verification.StateVerified:
		a.signedIn(snap.Profile())
		a.printf("Signed in as %s. Type 'continue' to open %s.", displayName(snap.Profile()), snap.Route())
	case verification.StateError:
		hint := "Type 'retry' to try again."
		if snap.Result.Reason == models.ReasonCredentialRejected {
			hint = "Type 'login <email>' to get a new link."
		}
		a.printf("Verification failed: %s. %s", snap.ErrorMessage(), hint)
	default:
		a.printf("Verifying...")
	}
}

func (a *App) signedIn(p *models.UserProfile) {
	a.mu.Lock()
	a.profile = p
	a.mu.Unlock()
	a.setMode(ModeSignedIn)
}

func displayName(p *models.UserProfile) string {
	switch {
	case p == nil:
		return "unknown user"
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	case p.ID != "":
		return p.ID
	default:
		return "unknown user"
	}
}

// restore resumes a stored session. When the server cannot be reached the
// credential is kept and a background watcher retries.
func (a *App) restore(ctx context.Context) {
	res := a.sessions.Restore(ctx)
	a.applyRestore(res)
	if res.State != services.RestoreOffline {
		return
	}

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		res := a.sessions.WatchRestore(ctx, a.config.RestoreRetryInterval)
		if ctx.Err() == nil {
			a.applyRestore(res)
		}
	}()
}

func (a *App) applyRestore(res services.RestoreResult) {
	switch res.State {
	case services.RestoreAuthenticated:
		a.signedIn(res.Profile)
		a.mu.Lock()
		a.route = res.Route
		a.mu.Unlock()
		a.printf("Welcome back, %s.", displayName(res.Profile))
	case services.RestoreOffline:
		a.mu.Lock()
		a.profile = res.Profile
		a.mu.Unlock()
		a.setMode(ModeOffline)
		a.printf("Server unreachable, keeping your session and retrying in the background.")
	default:
		a.setMode(ModeSignedOut)
	}
}

// Run restores the session, starts link dispatching and runs the REPL until
// the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer a.Close()
	defer cancel()

	a.printf("careercoach client (type 'help' for commands)")
	a.restore(ctx)

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := a.dispatcher.Run(ctx); err != nil {
			a.log.Error(ctx, "link dispatcher stopped", "err", err)
		}
	}()

	a.Root(ctx)
}

// Close unmounts the current screen, waits for background work and releases
// resources.
func (a *App) Close() error {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()
	if s != nil {
		s.Close()
	}

	a.bg.Wait()

	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
