// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import "github.com/pdiddy/medref/internal/browse"

// Sign-in pages. Declared as vars so tests can substitute an httptest server.
var (
	UpToDateLoginURL = "https://www.uptodate.com/login"
	MKSAPLoginURL    = "https://mksap19.acponline.org/"
)

// DefaultSites returns the UpToDate and MKSAP 19 sign-in strategies. Both
// require a signed-in-only element or URL after the handshake; reaching the
// MKSAP host alone is not treated as success.
func DefaultSites(newBrowser func() browse.Browser) []Site {
	return []Site{
		{
			Target: TargetUpToDate,
			Login: browse.LoginForm{
				URL:               UpToDateLoginURL,
				UsernameSelectors: []string{"input#userName"},
				PasswordSelectors: []string{"input#password"},
				SuccessSelectors: []string{
					"a[href*='logout']",
					"#myAccountLink",
					"[class*='user-name']",
				},
			},
			NewBrowser: newBrowser,
		},
		{
			Target: TargetMKSAP,
			Login: browse.LoginForm{
				URL: MKSAPLoginURL,
				SuccessSelectors: []string{
					"a[href*='logout']",
					"a[href*='signout']",
					"a[href*='sign-out']",
				},
				SuccessURLContains: []string{"dashboard"},
			},
			NewBrowser: newBrowser,
		},
	}
}
