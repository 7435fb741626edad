package fieldsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/wells_backend/config"
)

const (
	// The upstream API does not report an expiry with the credential;
	// one hour of validity is assumed.
	tokenValidity = time.Hour

	// Re-login this far ahead of the assumed expiry.
	tokenExpiryMargin = 5 * time.Minute
)

// tokenManager owns the bearer credential for the upstream field API.
// The clock is injectable so expiry behaviour is testable.
type tokenManager struct {
	cfg  *config.FieldAPIConfig
	http *http.Client
	now  func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenManager(cfg *config.FieldAPIConfig, httpClient *http.Client) *tokenManager {
	return &tokenManager{
		cfg:  cfg,
		http: httpClient,
		now:  time.Now,
	}
}

// Acquire returns a currently-valid bearer token, logging in when none is
// held or the held one is inside the expiry margin. All login failures
// collapse to ok=false; the caller decides whether that aborts the run.
func (m *tokenManager) Acquire(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Add(tokenExpiryMargin).Before(m.expiry) {
		return m.token, true
	}
	if !m.login(ctx) {
		return "", false
	}
	return m.token, true
}

func (m *tokenManager) login(ctx context.Context) bool {
	payload, err := json.Marshal(map[string]string{
		"username": m.cfg.Username,
		"password": m.cfg.Password,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+m.cfg.LoginPath, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	token, ok := decodeLoginToken(body)
	if !ok {
		return false
	}

	m.token = token
	m.expiry = m.now().Add(tokenValidity)
	return true
}

// decodeLoginToken accepts the documented raw-JSON-string body as well as
// the {"token": ...} / {"accessToken": ...} / {"data": ...} envelopes some
// deployments emit.
func decodeLoginToken(raw []byte) (string, bool) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil && strings.TrimSpace(bare) != "" {
		return strings.TrimSpace(bare), true
	}

	var envelope struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
		Data        string `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, candidate := range []string{envelope.Token, envelope.AccessToken, envelope.Data} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate), true
			}
		}
	}
	return "", false
}
