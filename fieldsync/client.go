package fieldsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mmdatafocus/wells_backend/config"
)

type FailureKind string

const (
	FailureAuth        FailureKind = "auth"
	FailureTransport   FailureKind = "transport"
	FailureHTTP        FailureKind = "http"
	FailureUnparseable FailureKind = "unparseable"
)

// FetchFailure is the definitive outcome of a failed fetch. Status is set
// for FailureHTTP only.
type FetchFailure struct {
	Kind   FailureKind
	Status int
	Err    error
}

func (f *FetchFailure) Error() string {
	switch f.Kind {
	case FailureAuth:
		return "auth failure: could not obtain api credential"
	case FailureHTTP:
		return fmt.Sprintf("http failure: status %d", f.Status)
	case FailureUnparseable:
		return "unparseable response: no known payload shape matched"
	default:
		if f.Err != nil {
			return fmt.Sprintf("transport failure: %v", f.Err)
		}
		return "transport failure"
	}
}

func (f *FetchFailure) Unwrap() error { return f.Err }

type fieldClient struct {
	cfg    *config.FieldAPIConfig
	http   *http.Client
	tokens *tokenManager
}

func newFieldClient(cfg *config.FieldAPIConfig) *fieldClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &fieldClient{
		cfg:    cfg,
		http:   httpClient,
		tokens: newTokenManager(cfg, httpClient),
	}
}

// fetchPlatforms performs one authenticated GET against the given
// endpoint path and returns the raw parent records. empty is true when
// the payload was recognized but held no records ("nothing to sync", as
// opposed to a failure). Retry policy belongs to the orchestrator, not
// here.
func (c *fieldClient) fetchPlatforms(ctx context.Context, path string) (records []json.RawMessage, empty bool, failure *FetchFailure) {
	token, ok := c.tokens.Acquire(ctx)
	if !ok {
		return nil, false, &FetchFailure{Kind: FailureAuth}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, false, &FetchFailure{Kind: FailureTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, &FetchFailure{Kind: FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &FetchFailure{Kind: FailureTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &FetchFailure{Kind: FailureHTTP, Status: resp.StatusCode}
	}

	records, recognized := decodeRecords(body)
	if !recognized {
		return nil, false, &FetchFailure{Kind: FailureUnparseable}
	}
	if len(records) == 0 {
		return nil, true, nil
	}
	return records, false, nil
}
