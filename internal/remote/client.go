package remote

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	EndpointPing           = "/api/ping"
	EndpointAppInfo        = "/api/app-info"
	EndpointAnimeList      = "/api/anime-list"
	EndpointAddDownload    = "/api/add-download"
	EndpointRemoveDownload = "/api/remove-download"
	EndpointLogin          = "/api/login"
	EndpointDashboard      = "/api/dashboard"
	EndpointTheme          = "/api/theme"

	maxBodySize   = 4 << 20
	bodyPrefixLen = 500
)

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to one companion server. Every request goes through a rate
// limiter and a circuit breaker that only counts transport failures.
type Client struct {
	log     zerolog.Logger
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*rawResponse]
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// NormalizeBaseURL trims whitespace and trailing slashes so endpoints can be
// appended directly.
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func NewClient(log zerolog.Logger, baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	baseURL = NormalizeBaseURL(baseURL)
	c := &Client{
		log:     log.With().Str("module", "remote").Str("server", baseURL).Logger(),
		baseURL: baseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
	}

	metrics.CircuitBreakerState.WithLabelValues(baseURL).Set(0)

	c.cb = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        baseURL,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return c
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload any) (*rawResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s request", endpoint)
		}
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	raw, err := c.cb.Execute(func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}

		return &rawResponse{status: resp.StatusCode, header: resp.Header, body: b}, nil
	})
	if err != nil {
		metrics.RecordRemoteRequest(endpoint, "error")
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	metrics.RecordRemoteRequest(endpoint, strconv.Itoa(raw.status))
	c.log.Trace().Str("method", method).Str("endpoint", endpoint).Int("status", raw.status).Msg("request done")
	return raw, nil
}

func (r *rawResponse) protocolError(endpoint, reason string) *ProtocolError {
	prefix := r.body
	if len(prefix) > bodyPrefixLen {
		prefix = prefix[:bodyPrefixLen]
	}
	return &ProtocolError{
		Endpoint:    endpoint,
		Status:      r.status,
		ContentType: r.header.Get("Content-Type"),
		BodyPrefix:  string(prefix),
		Reason:      reason,
	}
}

func (r *rawResponse) isJSON() bool {
	mt, _, err := mime.ParseMediaType(r.header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// decode parses a JSON body regardless of the status code
func (r *rawResponse) decode(endpoint string, dst any) error {
	if !r.isJSON() {
		return r.protocolError(endpoint, "response is not JSON")
	}
	if err := json.Unmarshal(r.body, dst); err != nil {
		return r.protocolError(endpoint, "malformed JSON: "+err.Error())
	}
	return nil
}

type okEnvelope struct {
	OK *bool `json:"ok"`
}

func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.do(ctx, http.MethodGet, EndpointPing, nil, nil)
	if err != nil {
		return err
	}
	if raw.status != http.StatusOK {
		return raw.protocolError(EndpointPing, "unexpected status")
	}

	var env okEnvelope
	if err := raw.decode(EndpointPing, &env); err != nil {
		return err
	}
	if env.OK == nil || !*env.OK {
		return raw.protocolError(EndpointPing, "server is not ready")
	}
	return nil
}

func (c *Client) AppInfo(ctx context.Context) (*domain.AppInfo, error) {
	raw, err := c.do(ctx, http.MethodGet, EndpointAppInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, raw.protocolError(EndpointAppInfo, "unexpected status")
	}

	info := &domain.AppInfo{}
	if err := raw.decode(EndpointAppInfo, info); err != nil {
		return nil, err
	}
	return info, nil
}

type animeListResponse struct {
	OK        *bool                `json:"ok"`
	AnimeList []domain.RemoteAnime `json:"anime_list"`
	Count     int                  `json:"count"`
	Error     string               `json:"error"`
}

// AnimeList fetches the authoritative list. A 404 yields a stale ProtocolError.
func (c *Client) AnimeList(ctx context.Context) ([]domain.RemoteAnime, error) {
	raw, err := c.do(ctx, http.MethodGet, EndpointAnimeList, nil, nil)
	if err != nil {
		return nil, err
	}
	if raw.status == http.StatusNotFound {
		return nil, raw.protocolError(EndpointAnimeList, "route not found")
	}
	if raw.status != http.StatusOK {
		return nil, raw.protocolError(EndpointAnimeList, "unexpected status")
	}

	var resp animeListResponse
	if err := raw.decode(EndpointAnimeList, &resp); err != nil {
		return nil, err
	}
	if resp.OK == nil {
		return nil, raw.protocolError(EndpointAnimeList, "missing ok flag")
	}
	if !*resp.OK {
		reason := "server reported failure"
		if resp.Error != "" {
			reason += ": " + resp.Error
		}
		return nil, raw.protocolError(EndpointAnimeList, reason)
	}
	if resp.AnimeList == nil {
		return nil, raw.protocolError(EndpointAnimeList, "missing anime_list payload")
	}

	return resp.AnimeList, nil
}

type actionResponse struct {
	OK            *bool  `json:"ok"`
	AlreadyExists bool   `json:"already_exists"`
	Message       string `json:"message"`
	Error         string `json:"error"`
}

func (c *Client) action(ctx context.Context, endpoint string, payload any) (*domain.ActionResult, int, error) {
	raw, err := c.do(ctx, http.MethodPost, endpoint, nil, payload)
	if err != nil {
		return nil, 0, err
	}

	var resp actionResponse
	if err := raw.decode(endpoint, &resp); err != nil {
		return nil, raw.status, err
	}
	if resp.OK == nil {
		return nil, raw.status, raw.protocolError(endpoint, "missing ok flag")
	}

	return &domain.ActionResult{
		OK:            *resp.OK,
		AlreadyExists: resp.AlreadyExists,
		Message:       resp.Message,
		Error:         resp.Error,
	}, raw.status, nil
}

type addRequest struct {
	AnimeURL string      `json:"anime_url"`
	Day      *domain.Day `json:"day"`
}

// AddDownload asks the server to queue key. The server answers a duplicate
// with 409 and ok=false; that is reported as AlreadyExists.
func (c *Client) AddDownload(ctx context.Context, key domain.AnimeKey, day *domain.Day) (*domain.ActionResult, error) {
	res, status, err := c.action(ctx, EndpointAddDownload, addRequest{AnimeURL: key.String(), Day: day})
	if err != nil {
		return nil, err
	}
	if status == http.StatusConflict {
		res.OK = true
		res.AlreadyExists = true
		if res.Message == "" {
			res.Message = res.Error
		}
		res.Error = ""
	}
	return res, nil
}

type removeRequest struct {
	AnimeURL string `json:"anime_url"`
}

func (c *Client) RemoveDownload(ctx context.Context, key domain.AnimeKey) (*domain.ActionResult, error) {
	res, _, err := c.action(ctx, EndpointRemoveDownload, removeRequest{AnimeURL: key.String()})
	return res, err
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	raw, err := c.do(ctx, http.MethodPost, EndpointLogin, nil, loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	res := &domain.LoginResult{}
	if err := raw.decode(EndpointLogin, res); err != nil {
		return nil, err
	}
	if !res.OK && res.Error == "" {
		res.Error = http.StatusText(raw.status)
	}
	return res, nil
}

func (c *Client) Dashboard(ctx context.Context, user string) (*domain.Dashboard, error) {
	raw, err := c.do(ctx, http.MethodGet, EndpointDashboard, url.Values{"user": {user}}, nil)
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, raw.protocolError(EndpointDashboard, "unexpected status")
	}

	d := &domain.Dashboard{}
	if err := raw.decode(EndpointDashboard, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Client) Theme(ctx context.Context) (*domain.Theme, error) {
	raw, err := c.do(ctx, http.MethodGet, EndpointTheme, nil, nil)
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, raw.protocolError(EndpointTheme, "unexpected status")
	}

	t := &domain.Theme{}
	if err := raw.decode(EndpointTheme, t); err != nil {
		return nil, err
	}
	return t, nil
}

var _ domain.RemoteAPI = (*Client)(nil)

// Pool hands out one Client per server URL so breaker and limiter state
// survive reconnects to the same server.
type Pool struct {
	log  zerolog.Logger
	opts Options

	mu      sync.Mutex
	clients map[string]*Client
}

func NewPool(log zerolog.Logger, opts Options) *Pool {
	return &Pool{
		log:     log,
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

func (p *Pool) Get(serverURL string) *Client {
	key := NormalizeBaseURL(serverURL)

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}
	c := NewClient(p.log, key, p.opts)
	p.clients[key] = c
	return c
}

// Dialer adapts the pool to the reconciler
func (p *Pool) Dialer() domain.Dialer {
	return func(serverURL string) domain.RemoteAPI {
		return p.Get(serverURL)
	}
}
