package control

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/varoOP/animesync/internal/actions"
	"github.com/varoOP/animesync/internal/domain"
)

// ErrUnavailable means no daemon answered on the control address.
var ErrUnavailable = errors.New("control endpoint unavailable")

// Client is used by CLI commands to reach a running daemon.
type Client struct {
	base string
	http *http.Client
}

func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		base: "http://" + addr,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, msg domain.ControlMessage) error {
	return c.call(ctx, http.MethodPost, "/api/control", controlRequest{Type: msg}, nil)
}

func (c *Client) Act(ctx context.Context, kind domain.ActionKind, animeURL, day string) (*actions.Receipt, error) {
	receipt := &actions.Receipt{}
	req := actionRequest{Action: kind, AnimeURL: animeURL, Day: day}
	if err := c.call(ctx, http.MethodPost, "/api/actions", req, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) Cache(ctx context.Context) (*domain.CacheSnapshot, error) {
	snap := &domain.CacheSnapshot{}
	if err := c.call(ctx, http.MethodGet, "/api/cache", nil, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, dst any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return errors.Wrap(ErrUnavailable, uerr.Err.Error())
		}
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if resp.StatusCode == http.StatusUnauthorized {
			return domain.ErrNotLoggedIn
		}
		return fmt.Errorf("daemon answered %d: %s", resp.StatusCode, failure.Error)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
