// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medref/pkg/types"
)

// --- fake sign-in site ---

// loginSite serves a two-step sign-in: /login asks for the username,
// /login/password asks for the password, /home is only reachable with
// the session cookie.
func loginSite(t *testing.T, password string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			if r.Form.Get("csrf") != "tok-1" {
				http.Error(w, "missing csrf", http.StatusForbidden)
				return
			}
			fmt.Fprintf(w, `<html><body><form method="post" action="/login/password">
				<input type="hidden" name="user" value="%s">
				<input type="password" id="password" name="pw">
			</form></body></html>`, r.Form.Get("userName"))
			return
		}
		fmt.Fprint(w, `<html><body><form method="post" action="/login">
			<input type="hidden" name="csrf" value="tok-1">
			<input id="userName" name="userName">
			<input type="submit" name="go" value="Next">
		</form></body></html>`)
	})
	mux.HandleFunc("/login/password", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("pw") != password || r.Form.Get("user") == "" {
			fmt.Fprint(w, `<html><body><p class="error">Invalid</p><form method="post"><input type="password" name="pw"></form></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "ok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `<html><body><div id="user-menu">Dr. Test</div></body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestSubmitLoginTwoStepSuccess(t *testing.T) {
	ts := loginSite(t, "s3cret")
	defer ts.Close()

	b := NewHTTPBrowser(5*time.Second, "test/0.1")
	ok, err := b.SubmitLogin(context.Background(), LoginForm{
		URL:              ts.URL + "/login",
		SuccessSelectors: []string{"#user-menu"},
	}, types.Credentials{Username: "doc", Password: "s3cret"})
	require.NoError(t, err)
	assert.True(t, ok)

	// The session cookie persists for later navigation.
	page, err := b.Navigate(context.Background(), ts.URL+"/home")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "user-menu")
}

func TestSubmitLoginWrongPassword(t *testing.T) {
	ts := loginSite(t, "s3cret")
	defer ts.Close()

	b := NewHTTPBrowser(5*time.Second, "")
	ok, err := b.SubmitLogin(context.Background(), LoginForm{
		URL:              ts.URL + "/login",
		SuccessSelectors: []string{"#user-menu"},
	}, types.Credentials{Username: "doc", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitLoginRequiresPositiveSignal(t *testing.T) {
	ts := loginSite(t, "s3cret")
	defer ts.Close()

	// Correct credentials but no configured success signal.
	b := NewHTTPBrowser(5*time.Second, "")
	ok, err := b.SubmitLogin(context.Background(), LoginForm{URL: ts.URL + "/login"},
		types.Credentials{Username: "doc", Password: "s3cret"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitLoginSuccessByURL(t *testing.T) {
	ts := loginSite(t, "s3cret")
	defer ts.Close()

	b := NewHTTPBrowser(5*time.Second, "")
	ok, err := b.SubmitLogin(context.Background(), LoginForm{
		URL:                ts.URL + "/login",
		SuccessURLContains: []string{"/home"},
	}, types.Credentials{Username: "doc", Password: "s3cret"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmitLoginNoForm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>maintenance</p></body></html>`)
	}))
	defer ts.Close()

	b := NewHTTPBrowser(5*time.Second, "")
	ok, err := b.SubmitLogin(context.Background(), LoginForm{URL: ts.URL}, types.Credentials{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrLoginFormNotFound)
	assert.False(t, ok)
}

func TestNavigateStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	b := NewHTTPBrowser(5*time.Second, "")
	_, err := b.Navigate(context.Background(), ts.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
}
