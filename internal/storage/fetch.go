package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxFetchBytes bounds downloads; resumes are capped at 10 MiB on upload.
const maxFetchBytes = 10<<20 + 1

// Fetcher resolves a resume reference to its bytes. HTTP(S) references are
// downloaded; everything else goes to the store that produced it.
type Fetcher struct {
	client *http.Client
	store  Store
}

// NewFetcher creates a Fetcher with the given download timeout.
func NewFetcher(store Store, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		store:  store,
	}
}

// IsHTTP reports whether ref is a browsable URL.
func IsHTTP(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Accepts reports whether ref is an http(s) URL or a reference owned by the store.
func (f *Fetcher) Accepts(ref string) bool {
	if IsHTTP(ref) {
		return true
	}
	return f.store != nil && f.store.Owns(ref)
}

// Fetch returns the document behind ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnknownReference)
	}
	if !IsHTTP(ref) {
		if f.store == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
		}
		return f.store.Get(ctx, ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download resume: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download resume: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read resume: %w", err)
	}
	if len(data) >= maxFetchBytes {
		return nil, fmt.Errorf("resume exceeds %d bytes", maxFetchBytes-1)
	}
	return data, nil
}
