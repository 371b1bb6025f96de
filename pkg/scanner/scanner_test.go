package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imgharvest/pkg/config"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
)

// fakePage serves a fixed set of image sources
type fakePage struct {
	images []Image
	err    error
}

func (p *fakePage) Images(ctx context.Context) ([]Image, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.images, nil
}

// fakeResolver maps handle refs to canned payloads
type fakeResolver struct {
	mime string
	data []byte
	err  error
}

func (r *fakeResolver) Resolve(ctx context.Context, ref string) (string, []byte, error) {
	if r.err != nil {
		return "", nil, r.err
	}
	return r.mime, r.data, nil
}

// fakeProber answers type probes with a canned media type
type fakeProber struct {
	mime   string
	probes int32
}

func (p *fakeProber) ProbeContentType(ctx context.Context, url string) string {
	atomic.AddInt32(&p.probes, 1)
	return p.mime
}

func (p *fakeProber) probeCount() int {
	return int(atomic.LoadInt32(&p.probes))
}

// captureEmitter records submitted candidates
type captureEmitter struct {
	mu         sync.Mutex
	candidates []models.Candidate
}

func (e *captureEmitter) Submit(c models.Candidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append(e.candidates, c)
}

func (e *captureEmitter) all() []models.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Candidate, len(e.candidates))
	copy(out, e.candidates)
	return out
}

func newTestScanner(page Page, resolver HandleResolver, emitter Emitter) *Scanner {
	return newProbedScanner(page, resolver, &fakeProber{}, emitter)
}

func newProbedScanner(page Page, resolver HandleResolver, prober TypeProber, emitter Emitter) *Scanner {
	cfg := config.ScannerConfig{
		ScanInterval: 10 * time.Millisecond,
		DebounceTTL:  time.Minute,
		ProbeTimeout: time.Second,
	}
	return New(cfg, page, resolver, prober, emitter, logger.NewNopLogger())
}

func TestScanTickRemoteCandidate(t *testing.T) {
	page := &fakePage{images: []Image{
		{Src: "https://example.com/photos/cat.jpg"},
		{Src: ""},
		{Src: "chrome-extension://abc/icon.png"},
	}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Kind != models.KindRemote {
		t.Errorf("kind = %v, want %v", got[0].Kind, models.KindRemote)
	}
	if got[0].Locator != "https://example.com/photos/cat.jpg" {
		t.Errorf("locator = %q", got[0].Locator)
	}
	if got[0].Payload != nil {
		t.Error("remote candidate should carry no payload")
	}
	if got[0].SuggestedFilename != "cat.jpg" {
		t.Errorf("suggested filename = %q, want %q", got[0].SuggestedFilename, "cat.jpg")
	}
}

func TestRemoteNameSkipsProbeWhenPathHasExtension(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "https://example.com/photos/cat.jpg?w=800"}}}
	prober := &fakeProber{mime: "image/png"}
	emitter := &captureEmitter{}
	s := newProbedScanner(page, &fakeResolver{}, prober, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].SuggestedFilename != "cat.jpg" {
		t.Errorf("suggested filename = %q, want %q", got[0].SuggestedFilename, "cat.jpg")
	}
	if prober.probeCount() != 0 {
		t.Errorf("path extension present, expected no probes, got %d", prober.probeCount())
	}
}

func TestRemoteNameProbesWhenPathHasNoExtension(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "https://example.com/download?id=7"}}}
	prober := &fakeProber{mime: "image/png"}
	emitter := &captureEmitter{}
	s := newProbedScanner(page, &fakeResolver{}, prober, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].SuggestedFilename != "download.png" {
		t.Errorf("suggested filename = %q, want %q", got[0].SuggestedFilename, "download.png")
	}
	if prober.probeCount() != 1 {
		t.Errorf("expected exactly 1 probe, got %d", prober.probeCount())
	}
}

func TestRemoteNameDefaultsWhenProbeYieldsNothing(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "https://example.com/photo"}}}
	emitter := &captureEmitter{}
	s := newProbedScanner(page, &fakeResolver{}, &fakeProber{}, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].SuggestedFilename != "photo.jpg" {
		t.Errorf("suggested filename = %q, want %q", got[0].SuggestedFilename, "photo.jpg")
	}
}

func TestScanTickDebouncesRepeatedSources(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "https://example.com/a.jpg"}}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	// A steady page re-scanned many times yields the source once
	for i := 0; i < 5; i++ {
		s.scanTick(context.Background())
	}
	s.wg.Wait()

	if got := len(emitter.all()); got != 1 {
		t.Errorf("expected 1 candidate after repeated ticks, got %d", got)
	}
}

func TestScanTickInlineJpegAccepted(t *testing.T) {
	src := "data:image/jpeg;base64," + jpegBase64
	page := &fakePage{images: []Image{{Src: src}}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.Kind != models.KindContent {
		t.Errorf("kind = %v, want %v", c.Kind, models.KindContent)
	}
	if len(c.Payload) == 0 {
		t.Error("content candidate should carry the decoded payload")
	}
	if c.Fingerprint != Fingerprint(c.Payload) {
		t.Error("fingerprint does not match payload")
	}
	if c.SuggestedFilename != SuggestedFilename(c.Fingerprint) {
		t.Error("suggested filename does not match fingerprint")
	}
	if c.PayloadRef != src {
		t.Errorf("payload ref = %q", c.PayloadRef)
	}
}

func TestScanTickInlineUntypedSniffsMagic(t *testing.T) {
	page := &fakePage{images: []Image{
		{Src: "data:;base64," + jpegBase64},
		{Src: "data:;base64," + pngBase64},
	}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected only the jpeg payload to pass, got %d candidates", len(got))
	}
}

func TestScanTickInlineRejectedFreesDebounceSlot(t *testing.T) {
	src := "data:image/png;base64," + pngBase64
	page := &fakePage{images: []Image{{Src: src}}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	if got := len(emitter.all()); got != 0 {
		t.Fatalf("expected rejection, got %d candidates", got)
	}
	// Failed evaluation must not hold the slot for the full TTL
	if s.debounce.Len() != 0 {
		t.Error("expected debounce slot to be freed after rejection")
	}
}

func TestScanTickEphemeralResolved(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("body")...)
	page := &fakePage{images: []Image{{Src: "blob:https://example.com/1234"}}}
	resolver := &fakeResolver{mime: "image/jpeg", data: data}
	emitter := &captureEmitter{}
	s := newTestScanner(page, resolver, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	got := emitter.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Kind != models.KindContent {
		t.Errorf("kind = %v", got[0].Kind)
	}
	if got[0].Fingerprint != Fingerprint(data) {
		t.Error("fingerprint should cover the full resolved bytes")
	}
}

func TestScanTickEphemeralResolveFailureAllowsRetry(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "blob:https://example.com/1234"}}}
	resolver := &fakeResolver{err: errors.New("handle revoked")}
	emitter := &captureEmitter{}
	s := newTestScanner(page, resolver, emitter)

	s.scanTick(context.Background())
	s.wg.Wait()

	if got := len(emitter.all()); got != 0 {
		t.Fatalf("expected no candidates, got %d", got)
	}
	if s.debounce.Len() != 0 {
		t.Error("expected debounce slot to be freed after resolve failure")
	}

	// The same source is re-evaluated on a later tick once resolvable
	resolver.err = nil
	resolver.mime = "image/jpeg"
	resolver.data = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}

	s.scanTick(context.Background())
	s.wg.Wait()

	if got := len(emitter.all()); got != 1 {
		t.Errorf("expected candidate after retry, got %d", got)
	}
}

func TestScanTickPageErrorIsTransient(t *testing.T) {
	page := &fakePage{err: errors.New("navigating")}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	s.scanTick(context.Background())

	if got := len(emitter.all()); got != 0 {
		t.Errorf("expected no candidates, got %d", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	page := &fakePage{images: []Image{{Src: "https://example.com/a.jpg"}}}
	emitter := &captureEmitter{}
	s := newTestScanner(page, &fakeResolver{}, emitter)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scanner did not stop after cancel")
	}

	if got := len(emitter.all()); got != 1 {
		t.Errorf("expected the ticker loop to emit once, got %d", got)
	}
}

func TestDebounceSetTTL(t *testing.T) {
	d := newDebounceSet(time.Minute)
	current := time.Now()
	d.now = func() time.Time { return current }

	if !d.TryAdd("a") {
		t.Fatal("first add should succeed")
	}
	if d.TryAdd("a") {
		t.Error("second add within TTL should fail")
	}

	current = current.Add(2 * time.Minute)
	if !d.TryAdd("a") {
		t.Error("add after TTL expiry should succeed")
	}

	d.Forget("a")
	if !d.TryAdd("a") {
		t.Error("add after Forget should succeed")
	}
}
