package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"longbox/internal/config"
	"longbox/internal/fingerprint"
	"longbox/internal/library"
	"longbox/internal/logging"
	"longbox/internal/pagecache"
	"longbox/internal/pipeline"
	"longbox/internal/testsupport"
)

type stubReader struct {
	mu    sync.Mutex
	reads int
}

func (r *stubReader) Name() string { return "stub" }

func (r *stubReader) Read(context.Context, *pipeline.Run) ([]*library.Comic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return nil, nil
}

func (r *stubReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

type nopWriter struct{}

func (nopWriter) Name() string { return "nop" }

func (nopWriter) Write(context.Context, *pipeline.Run, []*library.Comic) error { return nil }

func testConfig(t *testing.T) *config.Config {
	return testsupport.NewConfig(t)
}

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *stubReader) {
	t.Helper()
	store, err := library.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reader := &stubReader{}
	registry := pipeline.NewRegistry(pipeline.NewRunner(logging.NewNop(), nil))
	registry.Register(pipeline.Pipeline{Name: "ingest", Reader: reader, Writer: nopWriter{}})

	cache := pagecache.New(cfg.Paths.CacheDir, logging.NewNop())
	d, err := New(cfg, store, registry, cache, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, reader
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testConfig(t)
	first, _ := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, _ := newTestDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}
}

func TestDaemonTriggerRunsIngest(t *testing.T) {
	cfg := testConfig(t)
	d, reader := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	d.TriggerIngest()

	deadline := time.Now().Add(5 * time.Second)
	for reader.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ingest never ran after trigger")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPIServesStatusAndRuns(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	base := "http://" + d.api.Addr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("status reports not running")
	}
	if len(status.Pipelines) != 1 || status.Pipelines[0] != "ingest" {
		t.Fatalf("pipelines = %v", status.Pipelines)
	}

	runResp, err := http.Post(base+"/api/run/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST run: %v", err)
	}
	defer runResp.Body.Close()
	var report runPayload
	if err := json.NewDecoder(runResp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Pipeline != "ingest" || report.Status != string(pipeline.StatusSucceeded) {
		t.Fatalf("unexpected report %+v", report)
	}

	missing, err := http.Post(base+"/api/run/unknown", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown pipeline status = %d, want 404", missing.StatusCode)
	}
}

func TestAPIPageServingSniffsContentType(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	// Seed a cached page directly; the handler should serve it with a
	// sniffed content type.
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	digest := fingerprint.Digest(pngHeader)
	if _, err := d.cache.SaveByDigest(digest, pngHeader); err != nil {
		t.Fatalf("SaveByDigest: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/pages/%s", d.api.Addr(), digest))
	if err != nil {
		t.Fatalf("GET page: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q, want image/png", ct)
	}

	missing, err := http.Get(fmt.Sprintf("http://%s/api/pages/%s", d.api.Addr(), "0123456789ABCDEF0123456789ABCDEF"))
	if err != nil {
		t.Fatal(err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing digest status = %d, want 404", missing.StatusCode)
	}
}

func TestStopSafeForConcurrentCallers(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The API stop endpoint and the signal handler can both reach Stop at
	// the same time; every caller must return without panicking.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Stop()
		}()
	}
	wg.Wait()

	select {
	case <-d.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if d.running.Load() {
		t.Fatal("daemon still reports running after Stop")
	}
}
