package netutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(ClientOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Jar == nil {
		t.Error("client must carry a cookie jar")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", client.Timeout)
	}
}

func TestRedirectPolicy(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302 without following, got %d", resp.StatusCode)
	}
	if hits != 1 {
		t.Errorf("redirect was followed: %d hits", hits)
	}

	follow, err := NewClient(ClientOptions{Timeout: 5 * time.Second, FollowRedirects: true})
	if err != nil {
		t.Fatal(err)
	}
	resp, err = follow.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after following, got %d", resp.StatusCode)
	}
}

func TestCookieJarPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("sess"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "sess", Value: "abc"})
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	resp, _ := client.Get(server.URL)
	resp.Body.Close()
	resp, _ = client.Get(server.URL)
	resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("cookie was not replayed, got %d", resp.StatusCode)
	}
}

func TestInvalidOptions(t *testing.T) {
	if _, err := NewClient(ClientOptions{Proxy: "://bad"}); err == nil {
		t.Error("invalid proxy should fail")
	}
	if _, err := NewClient(ClientOptions{HTTPVersion: "3"}); err == nil {
		t.Error("unsupported http version should fail")
	}
}
