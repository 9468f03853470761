package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the session, recording and chat history endpoints.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		base:  base,
		token: cfg.Token,
		http:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) JoinWindow(ctx context.Context, sid domain.SessionID) (domain.JoinWindow, error) {
	var w domain.JoinWindow
	err := c.do(ctx, http.MethodGet, c.sessionPath(sid, "join-window"), nil, nil, &w)
	return w, err
}

func (c *Client) MintCredentials(ctx context.Context, sid domain.SessionID, uid domain.UserID) (domain.TransportCredentials, error) {
	var creds domain.TransportCredentials
	body := struct {
		UserID domain.UserID `json:"user_id"`
	}{uid}
	err := c.do(ctx, http.MethodPost, c.sessionPath(sid, "credentials"), nil, body, &creds)
	return creds, err
}

func (c *Client) ListRecordings(ctx context.Context, sid domain.SessionID) ([]domain.Recording, error) {
	var out struct {
		Recordings []domain.Recording `json:"recordings"`
	}
	if err := c.do(ctx, http.MethodGet, c.sessionPath(sid, "recordings"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

// FetchHistory returns the page before cursor; an empty cursor means the newest page.
func (c *Client) FetchHistory(ctx context.Context, sid domain.SessionID, cursor string, limit int) (domain.HistoryPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page domain.HistoryPage
	err := c.do(ctx, http.MethodGet, c.sessionPath(sid, "messages"), q, nil, &page)
	return page, err
}

func (c *Client) NotifyRecording(ctx context.Context, sid domain.SessionID, active bool) error {
	body := struct {
		Active bool `json:"active"`
	}{active}
	return c.do(ctx, http.MethodPost, c.sessionPath(sid, "recording"), nil, body, nil)
}

func (c *Client) sessionPath(sid domain.SessionID, tail string) string {
	return "sessions/" + url.PathEscape(string(sid)) + "/" + tail
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Debug().Str("module", "rest").Str("request_id", reqID).Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("api call")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrPermissionDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %w", method, path, &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
