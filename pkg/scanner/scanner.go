package scanner

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"imgharvest/pkg/config"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
)

// SourceClass is the addressing scheme of an image source
type SourceClass string

const (
	// ClassRemote is an absolute http/https URL
	ClassRemote SourceClass = "remote"
	// ClassInline is a self-contained data: payload
	ClassInline SourceClass = "inline"
	// ClassEphemeral is a process-local handle that must be dereferenced
	// asynchronously before its bytes are available
	ClassEphemeral SourceClass = "ephemeral"
	// ClassIgnored is any other scheme, including browser-internal ones
	ClassIgnored SourceClass = "ignored"
)

// Classify determines the addressing scheme of a raw image source
func Classify(src string) SourceClass {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return ClassRemote
	case strings.HasPrefix(src, "data:"):
		return ClassInline
	case strings.HasPrefix(src, "blob:"):
		return ClassEphemeral
	default:
		return ClassIgnored
	}
}

// Image is one image element found on a page
type Image struct {
	Src string
}

// Page abstracts the scanned page: the current set of visible image sources.
// Implementations are re-walked on every tick, so dynamically injected
// images are picked up without mutation observation.
type Page interface {
	Images(ctx context.Context) ([]Image, error)
}

// HandleResolver dereferences an ephemeral handle into its media type and
// full bytes. The returned media type may be empty when the substrate
// declares none.
type HandleResolver interface {
	Resolve(ctx context.Context, ref string) (mediaType string, data []byte, err error)
}

// TypeProber reports a remote source's declared content type without
// fetching its bytes. Returns "" when no type information is available.
type TypeProber interface {
	ProbeContentType(ctx context.Context, url string) string
}

// Emitter receives candidates. Fire-and-forget: the scanner never learns
// what became of a submission.
type Emitter interface {
	Submit(candidate models.Candidate)
}

// Scanner walks a page's images on a fixed cadence, classifies each source,
// gates inline and ephemeral payloads on the target format, fingerprints
// accepted payloads and emits candidates. One Scanner runs per page.
type Scanner struct {
	page     Page
	resolver HandleResolver
	prober   TypeProber
	emitter  Emitter
	debounce *debounceSet
	interval time.Duration
	logger   logger.Logger
	wg       sync.WaitGroup
}

// New creates a scanner for one page
func New(cfg config.ScannerConfig, page Page, resolver HandleResolver, prober TypeProber, emitter Emitter, log logger.Logger) *Scanner {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Scanner{
		page:     page,
		resolver: resolver,
		prober:   prober,
		emitter:  emitter,
		debounce: newDebounceSet(cfg.DebounceTTL),
		interval: cfg.ScanInterval,
		logger:   log,
	}
}

// Run polls the page until the context is cancelled. Polling trades CPU for
// simplicity: a tick is O(visible images) and cheap next to the I/O each
// accepted candidate triggers.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.DebugWithFields("scanner started", map[string]interface{}{
		"interval": s.interval,
	})

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Debug("scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scanTick(ctx)
		}
	}
}

// scanTick walks the page once. Every accepted source gets its own
// goroutine so a slow probe, resolve or hash never delays the next tick.
func (s *Scanner) scanTick(ctx context.Context) {
	images, err := s.page.Images(ctx)
	if err != nil {
		// Page may be mid-navigation; next tick retries
		s.logger.DebugWithFields("page walk failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, img := range images {
		src := img.Src
		if src == "" {
			continue
		}

		switch Classify(src) {
		case ClassRemote:
			if !s.debounce.TryAdd(src) {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.evaluateRemote(ctx, src)
			}()
		case ClassInline:
			if !s.debounce.TryAdd(src) {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.evaluateInline(src)
			}()
		case ClassEphemeral:
			if !s.debounce.TryAdd(src) {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.evaluateEphemeral(ctx, src)
			}()
		}
	}
}

// evaluateRemote names a URL-addressed source and forwards it. The bytes
// are never fetched here; the download subsystem owns that.
func (s *Scanner) evaluateRemote(ctx context.Context, src string) {
	s.emitter.Submit(models.Candidate{
		Kind:              models.KindRemote,
		Locator:           src,
		SuggestedFilename: s.suggestRemoteName(ctx, src),
	})
}

// suggestRemoteName derives a display filename for a remote source. A path
// extension names the file directly; otherwise the declared content type is
// probed and mapped to one, defaulting to the target format.
func (s *Scanner) suggestRemoteName(ctx context.Context, src string) string {
	base := "image"
	if u, err := url.Parse(src); err == nil {
		if last := path.Base(u.Path); last != "." && last != "/" && last != "" {
			base = SanitizeFilename(last)
		}
	}

	if ExtFromURLPath(src) != "" {
		return base
	}

	mime := ""
	if s.prober != nil {
		mime = s.prober.ProbeContentType(ctx, src)
	}
	ext := ExtFromMime(mime)
	if ext == "" {
		ext = targetExt
	}
	return base + "." + ext
}

// evaluateInline gates and fingerprints a data: source. Any failure frees
// the debounce slot immediately so a later tick can retry.
func (s *Scanner) evaluateInline(src string) {
	mime, payload, err := ParseDataURL(src)
	if err != nil {
		s.debounce.Forget(src)
		return
	}

	if mime == "" {
		prefix, err := DecodeBase64Prefix(payload, sniffPrefixLen)
		if err != nil || !HasTargetMagic(prefix) {
			s.debounce.Forget(src)
			return
		}
	} else if !IsTargetMime(mime) {
		// Declared non-target type: a filter outcome, not an error
		s.debounce.Forget(src)
		return
	}

	data, err := DecodeBase64(payload)
	if err != nil {
		s.debounce.Forget(src)
		return
	}

	s.emitContent(src, data)
}

// evaluateEphemeral dereferences a handle, gates it, and fingerprints the
// full bytes.
func (s *Scanner) evaluateEphemeral(ctx context.Context, src string) {
	mime, data, err := s.resolver.Resolve(ctx, src)
	if err != nil {
		// Handle may be revoked or the read failed; allow retry later
		s.debounce.Forget(src)
		return
	}

	if !acceptPayload(mime, sniffPrefix(data)) {
		s.debounce.Forget(src)
		return
	}

	s.emitContent(src, data)
}

func (s *Scanner) emitContent(src string, data []byte) {
	hash := Fingerprint(data)

	s.emitter.Submit(models.Candidate{
		Kind:              models.KindContent,
		Payload:           data,
		PayloadRef:        src,
		Fingerprint:       hash,
		SuggestedFilename: SuggestedFilename(hash),
	})

	s.logger.DebugWithFields("content candidate emitted", map[string]interface{}{
		"fingerprint": hash,
		"size":        len(data),
	})
}

func sniffPrefix(data []byte) []byte {
	if len(data) > sniffPrefixLen {
		return data[:sniffPrefixLen]
	}
	return data
}
