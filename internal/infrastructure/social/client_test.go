package social

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CryptoAggregator/internal/retry"
)

func TestClientResolveHandle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/users/by/username/newsdesk" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"id":"42"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 5*time.Second)
	id, err := c.ResolveHandle(context.Background(), "newsdesk")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "42" {
		t.Fatalf("unexpected id: %q", id)
	}
}

func TestClientRecentPosts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/tweets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("max_results") != "10" {
			t.Errorf("limit not passed: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[
			{"id":"1","text":"bitcoin up","created_at":"2026-03-10T12:00:00Z",
			 "public_metrics":{"retweet_count":3,"reply_count":2,"like_count":50,"quote_count":1}},
			{"id":"2","text":"bad timestamp","created_at":"not-a-time"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 5*time.Second)
	posts, err := c.RecentPosts(context.Background(), "42", 10)
	if err != nil {
		t.Fatalf("recent posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("malformed post must be dropped, got %d", len(posts))
	}

	post := posts[0]
	if post.ID != "1" || post.Reposts != 3 || post.Replies != 2 || post.Likes != 50 || post.Quotes != 1 {
		t.Fatalf("metrics not decoded: %+v", post)
	}
	if !post.PublishedAt.Equal(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not decoded: %v", post.PublishedAt)
	}
}

func TestClientAuthFailureIsStructural(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", 5*time.Second)
	_, err := c.ResolveHandle(context.Background(), "newsdesk")
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !retry.IsStructural(err) {
		t.Fatalf("auth failure must be structural, got %v", err)
	}
}

func TestClientRateLimitIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", 5*time.Second)
	_, err := c.RecentPosts(context.Background(), "42", 10)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if retry.IsStructural(err) {
		t.Fatalf("rate limiting must stay retryable, got %v", err)
	}
}
