package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/careercoach/internal/client/client"
	"github.com/dmitrijs2005/careercoach/internal/metrics"
)

var errUsage = errors.New("usage error")

// Login requests a magic link for the email given as argument, or prompts
// for one.
func (a *App) Login(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = GetSimpleText(a.reader(), "Enter email", a.out); err != nil {
			return err
		}
	}

	msg, err := a.sessions.RequestMagicLink(ctx, email)
	if err != nil {
		a.printf("Could not send the link: %s", userMessage(err))
		return err
	}
	if msg == "" {
		msg = "Check your inbox for a sign-in link."
	}
	a.printf("%s", msg)
	return nil
}

// Open delivers a link through the live link source, exactly like an OS
// link event would.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printf("Usage: open <link>")
		return errUsage
	}
	return a.source.Deliver(ctx, args[0])
}

func (a *App) Status(context.Context) error {
	a.mu.Lock()
	mode, route, s, pending := a.Mode, a.route, a.current, a.pending
	a.mu.Unlock()

	a.printf("mode: %s", mode)
	if route != "" {
		a.printf("screen: %s", route)
	}
	if pending != "" {
		a.printf("ready to continue to %s", pending)
	}
	if s == nil {
		return nil
	}

	snap := s.Snapshot()
	switch {
	case snap.Route() != "":
		a.printf("verification: %s, continue to %s", snap.State, snap.Route())
	case snap.ErrorMessage() != "":
		a.printf("verification: %s, %s", snap.State, snap.ErrorMessage())
	default:
		a.printf("verification: %s", snap.State)
	}
	return nil
}

// Retry re-runs the verification shown on screen. It blocks until the new
// attempt settles.
func (a *App) Retry(ctx context.Context) error {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()
	if s == nil {
		a.printf("Nothing to retry.")
		return nil
	}

	snap, err := s.Retry(ctx)
	if err != nil {
		return err
	}
	if a.isCurrent(s) {
		a.show(snap)
	}
	return nil
}

// Continue leaves the verification screen for the resolved route.
func (a *App) Continue(ctx context.Context) error {
	a.mu.Lock()
	s, pending := a.current, a.pending
	a.mu.Unlock()

	switch {
	case s != nil:
		if err := s.Continue(ctx); err != nil {
			a.printf("Nothing to continue to yet.")
			return err
		}
		return nil
	case pending != "":
		return a.Navigate(ctx, pending)
	default:
		a.printf("Nothing to continue to yet.")
		return nil
	}
}

func (a *App) WhoAmI(context.Context) error {
	a.mu.Lock()
	p := a.profile
	a.mu.Unlock()

	if p == nil {
		a.printf("Not signed in.")
		return nil
	}
	a.printf("id: %s", p.ID)
	a.printf("email: %s", p.Email)
	a.printf("name: %s", p.Name)
	a.printf("onboarding: %s", p.OnboardingStatus)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		a.printf("Logout failed: %s", err)
		return err
	}
	a.printf("Signed out.")
	return nil
}

func (a *App) Stats(context.Context) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	return metrics.WriteCounters(a.out, a.registry)
}

func userMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && errors.Is(err, client.ErrRejected) && apiErr.UserMessage() != "" {
		return apiErr.UserMessage()
	}
	if errors.Is(err, client.ErrRateLimited) {
		return client.ErrRateLimited.Error()
	}
	if errors.Is(err, client.ErrNetwork) || errors.Is(err, client.ErrServer) {
		return "the server is unreachable, try again later"
	}
	if errors.Is(err, client.ErrInvalidEmail) {
		return client.ErrInvalidEmail.Error()
	}
	return fmt.Sprint(err)
}
