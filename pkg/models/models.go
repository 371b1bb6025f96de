package models

// CandidateKind identifies how a candidate addresses its image bytes.
type CandidateKind string

const (
	// KindRemote is an absolute http/https URL resolved by the download
	// subsystem; the core never fetches or fingerprints these itself.
	KindRemote CandidateKind = "remote-image"
	// KindContent carries the decoded image bytes inline, fingerprinted
	// by the scanner before submission.
	KindContent CandidateKind = "content-image"
)

// KeyType distinguishes the two dedup key spaces.
type KeyType string

const (
	KeyURL         KeyType = "url"
	KeyFingerprint KeyType = "fingerprint"
)

// Candidate is a detected, classified, optionally fingerprinted image
// reference awaiting a download decision. Candidates are immutable once
// emitted and are discarded after submission.
type Candidate struct {
	Kind CandidateKind

	// Locator is the absolute URL for remote candidates.
	Locator string

	// Payload holds the full decoded image bytes for content candidates.
	Payload []byte

	// PayloadRef is the original in-page source reference (data: or blob:
	// string) for content candidates. Used as a fallback dedup key when no
	// fingerprint could be computed, and recorded for the gallery.
	PayloadRef string

	// Fingerprint is the hex sha256 digest of the full payload bytes.
	// Set for content candidates whenever it could be computed, never for
	// remote candidates.
	Fingerprint string

	SuggestedFilename string
}

// FileRecord is one entry in the append-only log of accepted downloads.
// The gallery reads these; the core never mutates or removes them.
type FileRecord struct {
	Locator     string `json:"url"`
	Filename    string `json:"filename"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// DownloadHandle identifies one accepted download request. Handles are
// only meaningful to the subsystem that issued them.
type DownloadHandle int64

// DownloadState is the lifecycle state reported by the download subsystem.
type DownloadState string

const (
	StateQueued      DownloadState = "queued"
	StateActive      DownloadState = "active"
	StateComplete    DownloadState = "complete"
	StateInterrupted DownloadState = "interrupted"
)

// Terminal reports whether the state ends a download's lifecycle.
func (s DownloadState) Terminal() bool {
	return s == StateComplete || s == StateInterrupted
}

// DownloadRequest is what the orchestrator hands the download subsystem.
// Exactly one of URL or Payload is set.
type DownloadRequest struct {
	URL     string
	Payload []byte

	Filename string

	// SuppressPrompt disables any interactive save-as behavior.
	SuppressPrompt bool

	// OverwriteOnConflict overwrites an existing file of the same name.
	// Filenames derive from content fingerprints, so a conflict implies
	// identical bytes.
	OverwriteOnConflict bool
}

// DownloadEvent is one entry in the subsystem's state-change feed.
type DownloadEvent struct {
	Handle DownloadHandle
	State  DownloadState
}
