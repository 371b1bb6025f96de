package scanner

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"

	errs "imgharvest/pkg/errors"
)

// targetExt is the extension of the one format the harvester accepts.
const targetExt = "jpg"

// jpegMagic is the signature every JPEG stream starts with.
var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// sniffPrefixLen is how many decoded bytes the format gate inspects.
// Sniffing only needs the magic; fingerprinting always hashes the full
// payload regardless.
const sniffPrefixLen = 16

// mimeToExt maps common image media types to file extensions
var mimeToExt = map[string]string{
	"image/jpeg":               "jpg",
	"image/pjpeg":              "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/svg+xml":            "svg",
	"image/bmp":                "bmp",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/tiff":               "tif",
	"image/x-ms-bmp":           "bmp",
}

// ExtFromMime derives a file extension from a media type, stripping any
// parameters. Unknown image types fall back to the subtype.
func ExtFromMime(mime string) string {
	if mime == "" {
		return ""
	}
	m := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	if ext, ok := mimeToExt[m]; ok {
		return ext
	}
	if idx := strings.LastIndex(m, "/"); idx >= 0 {
		return strings.ReplaceAll(m[idx+1:], "+", "-")
	}
	return ""
}

// extToMime maps path extensions back to canonical media types
var extToMime = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// MimeFromExt derives a canonical media type from a path extension.
// Returns "" for unknown extensions.
func MimeFromExt(ext string) string {
	return extToMime[strings.ToLower(ext)]
}

// ExtFromURLPath extracts a short extension from the last path segment of a
// URL, without the dot. Returns "" when none is present.
func ExtFromURLPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	m := extPattern.FindStringSubmatch(last)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

var extPattern = regexp.MustCompile(`\.([a-zA-Z0-9]{1,6})$`)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename replaces unsafe characters and caps the length
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// IsTargetMime reports whether a declared media type indicates the target
// format. Matches by substring so image/jpeg and image/pjpeg both pass.
func IsTargetMime(mime string) bool {
	return mime != "" && strings.Contains(strings.ToLower(mime), "jpeg")
}

// HasTargetMagic reports whether the byte prefix starts with the target
// format's signature.
func HasTargetMagic(prefix []byte) bool {
	if len(prefix) < len(jpegMagic) {
		return false
	}
	for i, b := range jpegMagic {
		if prefix[i] != b {
			return false
		}
	}
	return true
}

// acceptPayload applies the format gate: declared target type always passes
// regardless of bytes, no declared type passes iff the prefix shows the
// target magic, declared non-target type always fails.
func acceptPayload(mime string, prefix []byte) bool {
	if mime != "" {
		return IsTargetMime(mime)
	}
	return HasTargetMagic(prefix)
}

// ParseDataURL splits an inline data: source into its declared media type
// and raw base64 payload. The media type is "" when the header carries none.
func ParseDataURL(src string) (mime string, payload string, err error) {
	comma := strings.Index(src, ",")
	if comma < 0 {
		return "", "", errs.New(errs.ErrorTypeFormatRejected, "data url has no payload")
	}

	header := src[:comma]
	payload = src[comma+1:]
	if payload == "" {
		return "", "", errs.New(errs.ErrorTypeFormatRejected, "data url payload is empty")
	}

	header = strings.TrimPrefix(header, "data:")
	if idx := strings.Index(header, ";"); idx >= 0 {
		header = header[:idx]
	}
	// A bare "data:;base64" or "data:" header declares no type
	if strings.Contains(header, "/") {
		mime = header
	}

	return mime, payload, nil
}

// DecodeBase64Prefix decodes just enough of a base64 payload to sniff the
// leading bytes. Invalid base64 is an error: an undecodable prefix is not
// to be trusted.
func DecodeBase64Prefix(payload string, n int) ([]byte, error) {
	// 4 base64 chars decode to 3 bytes; round up and align to a quad
	chars := ((n+2)/3)*4 + 4
	if chars > len(payload) {
		chars = len(payload)
	}
	prefix := payload[:chars-chars%4]

	decoded, err := base64.StdEncoding.DecodeString(prefix)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFormatRejected, "invalid base64 prefix", err)
	}
	if len(decoded) > n {
		decoded = decoded[:n]
	}
	return decoded, nil
}

// DecodeBase64 decodes a full base64 payload
func DecodeBase64(payload string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransient, "invalid base64 payload", err)
	}
	return decoded, nil
}

// Fingerprint computes the hex sha256 digest of the full image bytes
func Fingerprint(data []byte) string {
	return digest.FromBytes(data).Encoded()
}

// SuggestedFilename derives a deterministic filename from a fingerprint.
// Distinct fingerprints never collide and the same fingerprint always maps
// to the same name.
func SuggestedFilename(fingerprint string) string {
	return fmt.Sprintf("image_%s.%s", fingerprint[:12], targetExt)
}
