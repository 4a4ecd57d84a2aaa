package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePullURL(t *testing.T) {
	tests := []struct {
		url     string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{url: "https://github.com/acme/widgets/pull/42", owner: "acme", repo: "widgets", number: 42},
		{url: "http://github.com/a/b/pull/1", owner: "a", repo: "b", number: 1},
		{url: "https://github.com/acme/widgets/pull/42/files", owner: "acme", repo: "widgets", number: 42},
		{url: "https://github.com/acme/widgets/issues/42", wantErr: true},
		{url: "https://gitlab.com/acme/widgets/pull/42", wantErr: true},
		{url: "not a url", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tt := range tests {
		owner, repo, number, err := ParsePullURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePullURL(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePullURL(%q): %v", tt.url, err)
			continue
		}
		if owner != tt.owner || repo != tt.repo || number != tt.number {
			t.Errorf("ParsePullURL(%q) = %s/%s#%d, want %s/%s#%d", tt.url, owner, repo, number, tt.owner, tt.repo, tt.number)
		}
	}
}

func TestPullRequestState(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"state":"closed","merged":true}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	prState, err := client.PullRequestState(context.Background(), "acme", "widgets", 42, "tok")
	if err != nil {
		t.Fatalf("PullRequestState failed: %v", err)
	}

	if prState != "closed" {
		t.Errorf("Expected closed, got %q", prState)
	}
	if gotPath != "/repos/acme/widgets/pulls/42" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
}

func TestPullRequestStateErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	if _, err := client.PullRequestState(context.Background(), "acme", "widgets", 42, ""); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestResolveTokenPrefersConfigured(t *testing.T) {
	token, err := ResolveToken("configured-token")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if token != "configured-token" {
		t.Errorf("Expected configured token, got %q", token)
	}
}
