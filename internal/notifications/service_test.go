package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"longbox/internal/config"
	"longbox/internal/logging"
)

func TestNewServiceReturnsNopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""

	svc := NewService(&cfg, logging.NewNop())
	if _, ok := svc.(nopService); !ok {
		t.Fatalf("expected nop service, got %T", svc)
	}
}

func TestNtfyServicePublishesRunEvents(t *testing.T) {
	type captured struct {
		title string
		tags  string
		body  string
	}
	got := make(chan captured, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			title: r.Header.Get("Title"),
			tags:  r.Header.Get("Tags"),
			body:  string(body),
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg, logging.NewNop())
	ctx := context.Background()

	svc.PublishRunStarted(ctx, "ingest", "run-1")
	started := <-got
	if started.title != "Longbox - Run Started" {
		t.Fatalf("unexpected title %q", started.title)
	}
	if !strings.Contains(started.body, "ingest") || !strings.Contains(started.body, "run-1") {
		t.Fatalf("unexpected body %q", started.body)
	}

	svc.PublishRunFinished(ctx, "ingest", "run-1", "failed", 3, 2)
	finished := <-got
	if !strings.Contains(finished.tags, "failed") {
		t.Fatalf("expected failure tag, got %q", finished.tags)
	}
	if !strings.Contains(finished.body, "3 processed, 2 skipped") {
		t.Fatalf("unexpected body %q", finished.body)
	}
}

func TestNtfyTestReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg, logging.NewNop())
	if err := svc.Test(context.Background()); err == nil {
		t.Fatal("expected error from rejecting endpoint")
	}
}
