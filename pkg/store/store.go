package store

// Store is the durable key-value contract. Implementations are scoped to the
// local device; there is no network sync.
type Store interface {
	// Get returns the raw value for key, with ok reporting presence.
	Get(key string) (value []byte, ok bool, err error)

	// Set durably writes value under key and notifies watchers of key.
	Set(key string, value []byte) error

	// Watch returns a channel that receives a signal after every committed
	// Set of key. Notifications are best-effort: a slow receiver may see
	// several writes coalesced into one signal.
	Watch(key string) <-chan struct{}
}

// Storage keys. Versioned so a future format change can migrate cleanly.
const (
	DownloadedURLsKey   = "downloaded_image_urls_v1"
	DownloadedHashesKey = "downloaded_image_hashes_v1"
	DownloadedFilesKey  = "downloaded_files_v1"
)
