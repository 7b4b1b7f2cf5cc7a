package verification

import "github.com/dmitrijs2005/careercoach/internal/client/models"

const (
	DefaultMainRoute       = "/home"
	DefaultOnboardingRoute = "/onboarding"
)

// Routes are the two entry points a fresh session can land on.
type Routes struct {
	Main       string
	Onboarding string
}

// Resolve picks the post-auth route. An explicit redirect wins; otherwise
// users who completed onboarding go to Main and everyone else to Onboarding.
// The redirect is expected to be sanitised already.
func (r Routes) Resolve(redirect string, profile *models.UserProfile) string {
	if redirect != "" {
		return redirect
	}
	if profile != nil && profile.OnboardingStatus == models.OnboardingCompleted {
		return r.main()
	}
	return r.onboarding()
}

func (r Routes) main() string {
	if r.Main == "" {
		return DefaultMainRoute
	}
	return r.Main
}

func (r Routes) onboarding() string {
	if r.Onboarding == "" {
		return DefaultOnboardingRoute
	}
	return r.Onboarding
}
