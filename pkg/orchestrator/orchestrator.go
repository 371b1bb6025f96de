package orchestrator

import (
	"context"
	"net/url"
	"path"
	"sync"

	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
	"imgharvest/pkg/scanner"
	"imgharvest/pkg/store"
)

// DownloadSubsystem is the contract the orchestrator consumes. Request
// either returns a handle (the download was accepted) or an error (it was
// rejected and no state change will ever arrive for it). Events delivers
// state changes for accepted handles; the orchestrator ignores events for
// handles it did not itself register.
type DownloadSubsystem interface {
	Request(ctx context.Context, req models.DownloadRequest) (models.DownloadHandle, error)
	Events() <-chan models.DownloadEvent
}

// activeDownload ties an accepted handle back to its dedup key
type activeDownload struct {
	key     string
	keyType models.KeyType
}

// Orchestrator is the single shared admission and bookkeeping component.
// It deduplicates candidates against durable state, issues downloads,
// tracks them to a terminal state, and rolls persisted state back when a
// download is interrupted after acceptance.
//
// Per-key lifecycle:
//
//	ABSENT -> PENDING          candidate admitted
//	PENDING -> ACTIVE(handle)  subsystem accepted
//	PENDING -> ABSENT          subsystem rejected
//	ACTIVE -> COMMITTED        handle completed
//	ACTIVE -> ABSENT           handle interrupted (rollback)
type Orchestrator struct {
	subsystem DownloadSubsystem
	cache     *store.DedupCache
	records   *store.RecordLog
	logger    logger.Logger

	queue chan models.Candidate

	// ready is closed once the durable cache load has finished (or failed
	// open). Every candidate awaits it so none is evaluated against a
	// partially loaded cache.
	ready chan struct{}

	// mu guards pending and active. The admission check and pending insert
	// happen under one acquisition: no suspension between them.
	mu            sync.Mutex
	pendingURLs   map[string]struct{}
	pendingHashes map[string]struct{}
	active        map[models.DownloadHandle]activeDownload

	wg sync.WaitGroup
}

// New creates an orchestrator over the given subsystem and durable state
func New(subsystem DownloadSubsystem, cache *store.DedupCache, records *store.RecordLog, queueSize int, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Orchestrator{
		subsystem:     subsystem,
		cache:         cache,
		records:       records,
		logger:        log,
		queue:         make(chan models.Candidate, queueSize),
		ready:         make(chan struct{}),
		pendingURLs:   make(map[string]struct{}),
		pendingHashes: make(map[string]struct{}),
		active:        make(map[models.DownloadHandle]activeDownload),
	}
}

// Start launches the cache load, the candidate consumer and the event
// consumer. It returns immediately; Stop waits for in-flight work.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		if err := o.cache.Load(); err != nil {
			// Fail open: empty mirrors risk a redundant download, never
			// loss of an already-downloaded file.
			o.logger.WithError(err).Warn("dedup cache load failed, starting empty")
		}
		close(o.ready)
	}()

	o.wg.Add(2)
	go o.consumeCandidates(ctx)
	go o.consumeEvents()

	logger.LogComponentStart("orchestrator", nil)
}

// Stop waits for the consumer goroutines to finish. Call it after the
// context is cancelled and the subsystem has closed its event feed; the
// event consumer runs until that close.
func (o *Orchestrator) Stop() {
	o.wg.Wait()
	logger.LogComponentStop("orchestrator", "shutdown")
}

// Submit enqueues a candidate. Fire-and-forget: there is no response
// channel, and a full queue drops the candidate (the next scan pass
// resubmits organically).
func (o *Orchestrator) Submit(candidate models.Candidate) {
	select {
	case o.queue <- candidate:
	default:
		o.logger.WarnWithFields("candidate queue full, dropping", map[string]interface{}{
			"kind": string(candidate.Kind),
		})
	}
}

// consumeCandidates drains the ingestion queue. Each candidate gets its own
// goroutine so a slow store write or subsystem round trip never blocks the
// consumer.
func (o *Orchestrator) consumeCandidates(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case candidate := <-o.queue:
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.handleCandidate(ctx, candidate)
			}()
		}
	}
}

// handleCandidate runs one candidate through admission and, if admitted,
// through the download subsystem.
func (o *Orchestrator) handleCandidate(ctx context.Context, candidate models.Candidate) {
	// Startup gate: never consult a partially loaded cache
	select {
	case <-o.ready:
	case <-ctx.Done():
		return
	}

	key, keyType, ok := dedupKey(candidate)
	if !ok {
		// Malformed: no key, no payload. No response goes back.
		o.logger.Debug("malformed candidate dropped")
		return
	}

	if !o.admit(keyType, key) {
		logger.LogCandidate(string(candidate.Kind), key, false, "duplicate")
		return
	}
	logger.LogCandidate(string(candidate.Kind), key, true, "")

	req := buildRequest(candidate, key)

	handle, err := o.subsystem.Request(ctx, req)
	if err != nil {
		// Rejected before a handle existed: back to ABSENT, no retry is
		// scheduled; the next organic candidate gets another chance.
		o.mu.Lock()
		delete(o.pendingFor(keyType), key)
		o.mu.Unlock()
		o.logger.DebugWithFields("download request rejected", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	// Optimistic commit: the key is persisted at acceptance and rolled
	// back if the download is later interrupted. The commit lands before
	// the pending claim is released, so there is no instant at which a
	// duplicate would find neither mark.
	if err := o.cache.Add(keyType, key); err != nil {
		o.logger.WithError(err).WarnWithFields("dedup cache write failed", map[string]interface{}{
			"key": key,
		})
	}

	o.mu.Lock()
	delete(o.pendingFor(keyType), key)
	o.active[handle] = activeDownload{key: key, keyType: keyType}
	o.mu.Unlock()

	record := models.FileRecord{
		Locator:  recordLocator(candidate),
		Filename: req.Filename,
	}
	if keyType == models.KeyFingerprint {
		record.Fingerprint = key
	}
	// Best-effort append; a failure never blocks or reverts the download
	if err := o.records.Append(record); err != nil {
		o.logger.WithError(err).Warn("file record append failed")
	}

	o.logger.InfoWithFields("download accepted", map[string]interface{}{
		"handle":   int64(handle),
		"key_type": string(keyType),
		"filename": req.Filename,
	})
}

// admit performs the synchronous cache-check plus pending insert for key.
// With the optimistic commit, the cache covers COMMITTED and ACTIVE keys;
// the pending set covers the window before the subsystem answers.
func (o *Orchestrator) admit(keyType models.KeyType, key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cache.Contains(keyType, key) {
		return false
	}
	pending := o.pendingFor(keyType)
	if _, exists := pending[key]; exists {
		return false
	}
	pending[key] = struct{}{}
	return true
}

// consumeEvents applies terminal download states. Replayed events for
// untracked handles are no-ops. The loop runs until the subsystem closes
// its feed; exiting on context cancellation instead would strand a
// shutting-down subsystem mid-drain once its event buffer fills.
func (o *Orchestrator) consumeEvents() {
	defer o.wg.Done()

	for event := range o.subsystem.Events() {
		if !event.State.Terminal() {
			continue
		}
		o.handleTerminal(event)
	}
}

func (o *Orchestrator) handleTerminal(event models.DownloadEvent) {
	o.mu.Lock()
	info, tracked := o.active[event.Handle]
	if tracked {
		delete(o.active, event.Handle)
	}
	o.mu.Unlock()

	if !tracked {
		return
	}

	switch event.State {
	case models.StateComplete:
		// Re-assert the commit; a no-op when the optimistic write landed
		if err := o.cache.Add(info.keyType, info.key); err != nil {
			o.logger.WithError(err).WarnWithFields("dedup cache commit failed", map[string]interface{}{
				"key": info.key,
			})
		}
		logger.LogDownload(info.key, "", true, nil)
	case models.StateInterrupted:
		// Failed after acceptance: drop the persisted mark so a future
		// candidate can retry. Removal of an absent key is a no-op.
		if err := o.cache.Remove(info.keyType, info.key); err != nil {
			o.logger.WithError(err).WarnWithFields("rollback write failed", map[string]interface{}{
				"key": info.key,
			})
		}
		logger.LogRollback(string(info.keyType), info.key)
	}
}

// TrackedDownloads returns the number of handles awaiting a terminal state
func (o *Orchestrator) TrackedDownloads() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

func (o *Orchestrator) pendingFor(keyType models.KeyType) map[string]struct{} {
	if keyType == models.KeyFingerprint {
		return o.pendingHashes
	}
	return o.pendingURLs
}

// dedupKey derives the identity key for a candidate. Content candidates key
// on their fingerprint, falling back to the payload reference when none was
// computed; remote candidates key on the normalized URL.
func dedupKey(candidate models.Candidate) (string, models.KeyType, bool) {
	switch candidate.Kind {
	case models.KindRemote:
		if candidate.Locator == "" {
			return "", "", false
		}
		return NormalizeURL(candidate.Locator), models.KeyURL, true
	case models.KindContent:
		if len(candidate.Payload) == 0 {
			return "", "", false
		}
		if candidate.Fingerprint != "" {
			return candidate.Fingerprint, models.KeyFingerprint, true
		}
		if candidate.PayloadRef != "" {
			return candidate.PayloadRef, models.KeyURL, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}

// buildRequest translates an admitted candidate into a subsystem request.
// Prompts are suppressed and conflicts overwrite: filenames derive from
// fingerprints, so a conflict means identical bytes.
func buildRequest(candidate models.Candidate, key string) models.DownloadRequest {
	req := models.DownloadRequest{
		Filename:            candidate.SuggestedFilename,
		SuppressPrompt:      true,
		OverwriteOnConflict: true,
	}

	if candidate.Kind == models.KindRemote {
		req.URL = key
		if req.Filename == "" {
			req.Filename = FallbackFilename(key)
		}
	} else {
		req.Payload = candidate.Payload
		if req.Filename == "" && candidate.Fingerprint != "" {
			req.Filename = "image_" + candidate.Fingerprint + ".jpg"
		}
	}

	return req
}

func recordLocator(candidate models.Candidate) string {
	if candidate.Kind == models.KindRemote {
		return NormalizeURL(candidate.Locator)
	}
	return candidate.PayloadRef
}

// NormalizeURL strips the fragment from an absolute URL. Unparseable input
// passes through unchanged and dedups by exact string.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}

// FallbackFilename derives a safe display filename from a URL path when the
// candidate carried no suggestion.
func FallbackFilename(rawURL string) string {
	const fallbackBase = "image"

	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackBase
	}
	last := path.Base(u.Path)
	if last == "." || last == "/" || last == "" {
		return fallbackBase
	}
	return scanner.SanitizeFilename(last)
}
