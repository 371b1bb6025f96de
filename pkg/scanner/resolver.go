package scanner

import (
	"context"

	"imgharvest/pkg/fetch"
)

// FetchResolver dereferences handles that resolve over HTTP. A known path
// extension declares the content type directly; only extensionless refs pay
// for a bounded HEAD probe. A probe timeout or failure counts as "no type
// information" and lets the magic-byte sniff decide.
type FetchResolver struct {
	client *fetch.Client
}

// NewFetchResolver creates a resolver over the given fetch client
func NewFetchResolver(client *fetch.Client) *FetchResolver {
	return &FetchResolver{client: client}
}

// Resolve determines ref's content type and reads its full bytes
func (r *FetchResolver) Resolve(ctx context.Context, ref string) (string, []byte, error) {
	mediaType := MimeFromExt(ExtFromURLPath(ref))
	if mediaType == "" {
		mediaType = r.client.ProbeContentType(ctx, ref)
	}

	data, err := r.client.FetchBytes(ctx, ref)
	if err != nil {
		return "", nil, err
	}

	return mediaType, data, nil
}
