// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browse is the authenticated-fetch collaborator used for content
// platforms that sit behind a login. It exposes two operations, Navigate and
// SubmitLogin, and a few goquery helpers that turn pages into hits and text.
// Selector tables are best-effort strategies supplied by the caller.
package browse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/medref/pkg/types"
)

// ErrLoginFormNotFound is returned when no page step exposes a
// username or password input.
var ErrLoginFormNotFound = errors.New("login form not found")

// maxPageBytes caps how much of a page is read into memory.
const maxPageBytes = 8 << 20

// Page is a fetched document and the URL it was finally served from.
type Page struct {
	URL  string
	HTML string
}

// Browser fetches pages within one session. Implementations are not safe
// for concurrent use; callers serialize access per session.
type Browser interface {
	// Navigate loads rawURL and returns the resulting page.
	Navigate(ctx context.Context, rawURL string) (Page, error)

	// SubmitLogin runs the sign-in handshake described by form. It reports
	// true only on a positive success signal; a rejected login is false
	// with a nil error.
	SubmitLogin(ctx context.Context, form LoginForm, creds types.Credentials) (bool, error)
}

// LoginForm describes where and how to sign in to one site.
type LoginForm struct {
	// URL is the page that serves the sign-in form.
	URL string

	// UsernameSelectors and PasswordSelectors are tried in order inside the form.
	UsernameSelectors []string
	PasswordSelectors []string

	// SuccessSelectors match elements that only render for signed-in users.
	SuccessSelectors []string

	// SuccessURLContains matches the final URL after sign-in.
	SuccessURLContains []string
}

// DefaultUsernameSelectors covers the common username/email input names.
var DefaultUsernameSelectors = []string{
	"input#userName",
	"input[name='username']",
	"input[id='username']",
	"input[name='email']",
	"input[id='email']",
	"input[type='email']",
	"input[name*='sername']",
	"input[id*='sername']",
}

// DefaultPasswordSelectors covers the common password input names.
var DefaultPasswordSelectors = []string{
	"input#password",
	"input[name='password']",
	"input[id='password']",
	"input[type='password']",
	"input[name*='assword']",
	"input[id*='assword']",
}

// HTTPBrowser is a Browser backed by an http.Client with a cookie jar.
// It does not execute JavaScript.
type HTTPBrowser struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPBrowser returns a browser with a fresh cookie jar.
func NewHTTPBrowser(timeout time.Duration, userAgent string) *HTTPBrowser {
	jar, _ := cookiejar.New(nil)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBrowser{
		Client:    &http.Client{Jar: jar, Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Navigate fetches rawURL with a GET request.
func (b *HTTPBrowser) Navigate(ctx context.Context, rawURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	return b.do(req)
}

func (b *HTTPBrowser) do(req *http.Request) (Page, error) {
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := b.Client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &StatusError{URL: req.URL.String(), Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("reading page: %w", err)
	}
	return Page{URL: resp.Request.URL.String(), HTML: string(data)}, nil
}

// StatusError reports a non-2xx page response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
}

// maxLoginSteps allows a username page followed by a password page.
const maxLoginSteps = 2

// SubmitLogin fills and posts the site's sign-in form. It follows a
// two-step flow where the username is submitted before the password
// field appears.
func (b *HTTPBrowser) SubmitLogin(ctx context.Context, form LoginForm, creds types.Credentials) (bool, error) {
	page, err := b.Navigate(ctx, form.URL)
	if err != nil {
		return false, err
	}

	userSel := orDefault(form.UsernameSelectors, DefaultUsernameSelectors)
	passSel := orDefault(form.PasswordSelectors, DefaultPasswordSelectors)

	passwordSent := false
	for step := 0; step < maxLoginSteps && !passwordSent; step++ {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			return false, fmt.Errorf("parsing login page: %w", err)
		}

		f, userField, passField := findLoginForm(doc, userSel, passSel)
		if f == nil {
			if step == 0 {
				return false, ErrLoginFormNotFound
			}
			break
		}

		values := formValues(f)
		if userField != "" {
			values.Set(userField, creds.Username)
		}
		if passField != "" {
			values.Set(passField, creds.Password)
			passwordSent = true
		}

		page, err = b.submit(ctx, page.URL, f, values)
		if err != nil {
			return false, err
		}
	}

	if !passwordSent {
		return false, nil
	}
	return LoggedIn(page, form, passSel), nil
}

func (b *HTTPBrowser) submit(ctx context.Context, pageURL string, f *goquery.Selection, values url.Values) (Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parsing page URL: %w", err)
	}
	action := base
	if a, ok := f.Attr("action"); ok && strings.TrimSpace(a) != "" {
		ref, err := url.Parse(strings.TrimSpace(a))
		if err != nil {
			return Page{}, fmt.Errorf("parsing form action: %w", err)
		}
		action = base.ResolveReference(ref)
	}

	method, _ := f.Attr("method")
	if strings.EqualFold(method, http.MethodGet) {
		u := *action
		u.RawQuery = values.Encode()
		return b.Navigate(ctx, u.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// LoggedIn reports whether page carries a positive sign-in signal: no
// password input remains, and a success selector or URL fragment matches.
// A form with no configured signals never counts as signed in.
func LoggedIn(page Page, form LoginForm, passwordSelectors []string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return false
	}
	for _, sel := range passwordSelectors {
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	for _, sel := range form.SuccessSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	lower := strings.ToLower(page.URL)
	for _, frag := range form.SuccessURLContains {
		if frag != "" && strings.Contains(lower, strings.ToLower(frag)) {
			return true
		}
	}
	return false
}

// findLoginForm returns the first form containing a username or password
// input, with the names of the matched fields.
func findLoginForm(doc *goquery.Document, userSel, passSel []string) (*goquery.Selection, string, string) {
	var found *goquery.Selection
	var userField, passField string

	doc.Find("form").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		u := firstInputName(f, userSel)
		p := firstInputName(f, passSel)
		if u == "" && p == "" {
			return true
		}
		found, userField, passField = f, u, p
		return false
	})
	return found, userField, passField
}

func firstInputName(f *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if name, ok := f.Find(sel).First().Attr("name"); ok && name != "" {
			return name
		}
	}
	return ""
}

// formValues collects the form's existing named fields so hidden tokens
// are posted back.
func formValues(f *goquery.Selection) url.Values {
	values := url.Values{}
	f.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		typ := strings.ToLower(in.AttrOr("type", "text"))
		switch typ {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); !checked {
				return
			}
		}
		values.Set(name, in.AttrOr("value", ""))
	})
	return values
}

func orDefault(s, def []string) []string {
	if len(s) == 0 {
		return def
	}
	return s
}
