package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

// Authenticator logs in against the server's REST API and keeps the
// session token for the relay connection.
type Authenticator struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func NewAuthenticator(baseURL string, client *http.Client) *Authenticator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Authenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (a *Authenticator) Authenticate(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	body, err := json.Marshal(map[string]string{
		"userId":   creds.UserID.String(),
		"pin":      creds.PIN,
		"deviceId": creds.DeviceID,
	})
	if err != nil {
		return domain.User{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res loginResponse
	if err := a.do(req, &res); err != nil {
		return domain.User{}, err
	}
	if res.Token == "" {
		return domain.User{}, fmt.Errorf("%w: server returned no token", domain.ErrAuthFailure)
	}

	a.mu.Lock()
	a.token = res.Token
	a.mu.Unlock()
	return res.User, nil
}

func (a *Authenticator) UnlinkDevice(ctx context.Context, deviceID string) error {
	token := a.Token()
	if token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if err := a.do(req, nil); err != nil {
		return err
	}

	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
	return nil
}

// Token is the current session token, empty when logged out.
func (a *Authenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *Authenticator) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = resp.Status
		}
		return fmt.Errorf("%w: %s", statusError(resp.StatusCode), body.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return domain.ErrInvalid
	case http.StatusUnauthorized:
		return domain.ErrAuthFailure
	case http.StatusForbidden:
		return domain.ErrPermissionDenied
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return fmt.Errorf("server error %d", code)
}
