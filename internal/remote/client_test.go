package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(zerolog.Nop(), srv.URL+"//", Options{Timeout: 2 * time.Second, RequestsPerSecond: 100})
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "http://host:5000", NormalizeBaseURL(" http://host:5000/// "))
	assert.Equal(t, "http://host", NormalizeBaseURL("http://host"))
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointPing, r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPingNotOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
	}))
	err := c.Ping(context.Background())
	_, ok := AsProtocol(err)
	assert.True(t, ok)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(zerolog.Nop(), srv.URL, Options{Timeout: time.Second, RequestsPerSecond: 100})
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestAnimeList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
			"anime_list": []map[string]any{
				{"url": "/catalogue/a/saison1/vostfr", "name": "A", "day": "lundi", "location": "auto_download (lundi)"},
				{"url": "https://anime-sama.eu/catalogue/b/saison1/vf/"},
			},
			"count": 2,
		})
	}))

	list, err := c.AnimeList(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	require.NotNil(t, list[0].Day)
	assert.Equal(t, domain.Monday, *list[0].Day)
}

func TestAnimeListStaleServer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html>Not Found</html>")
	}))

	_, err := c.AnimeList(context.Background())
	pe, ok := AsProtocol(err)
	require.True(t, ok)
	assert.True(t, pe.Stale())
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.Equal(t, "text/html", pe.ContentType)
	assert.Contains(t, pe.BodyPrefix, "Not Found")
	assert.Contains(t, err.Error(), EndpointAnimeList)
}

func TestAnimeListNotJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>login</html>")
	}))

	_, err := c.AnimeList(context.Background())
	pe, ok := AsProtocol(err)
	require.True(t, ok)
	assert.False(t, pe.Stale())
	assert.Equal(t, "response is not JSON", pe.Reason)
}

func TestAnimeListMissingOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"anime_list": []any{}})
	}))

	_, err := c.AnimeList(context.Background())
	pe, ok := AsProtocol(err)
	require.True(t, ok)
	assert.Equal(t, "missing ok flag", pe.Reason)
}

func TestAddDownload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EndpointAddDownload, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "added"})
	}))

	day := domain.Thursday
	res, err := c.AddDownload(context.Background(), "/catalogue/a", &day)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.AlreadyExists)
	assert.Equal(t, "added", res.Message)
	assert.Equal(t, "/catalogue/a", got["anime_url"])
	assert.Equal(t, "jeudi", got["day"])
}

func TestAddDownloadConflictIsAlreadyExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "message": "deja present"})
	}))

	res, err := c.AddDownload(context.Background(), "/catalogue/a", nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.AlreadyExists)
	assert.Equal(t, "deja present", res.Message)
}

func TestAddDownloadRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "quota exceeded"})
	}))

	res, err := c.AddDownload(context.Background(), "/catalogue/a", nil)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "quota exceeded", res.Error)
}

func TestRemoveDownloadNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointRemoveDownload, r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "not found"})
	}))

	res, err := c.RemoveDownload(context.Background(), "/catalogue/a")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "not found", res.Error)
}

func TestLoginDashboardThemeAppInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(EndpointLogin, func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": req.Username})
	})
	mux.HandleFunc(EndpointDashboard, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"title": "Hi " + r.URL.Query().Get("user"), "message": "m"}})
	})
	mux.HandleFunc(EndpointTheme, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "colors": map[string]any{"primary": "#fff"}})
	})
	mux.HandleFunc(EndpointAppInfo, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "anime_sama_url": "https://anime-sama.tv", "local_dashboard_port": 5000})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "alice", res.User)

	res, err = c.Login(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Unauthorized", res.Error)

	d, err := c.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Hi alice", d.Data.Title)

	th, err := c.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#fff", th.Colors["primary"])

	info, err := c.AppInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://anime-sama.tv", info.AnimeSamaURL)
	assert.Equal(t, 5000, info.LocalDashboardPort)
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(zerolog.Nop(), srv.URL, Options{Timeout: time.Second, RequestsPerSecond: 1000})
	for i := 0; i < 5; i++ {
		require.True(t, IsTransport(c.Ping(context.Background())))
	}

	err := c.Ping(context.Background())
	require.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestPoolReusesClients(t *testing.T) {
	p := NewPool(zerolog.Nop(), Options{})
	a := p.Get("http://host:5000/")
	b := p.Get("http://host:5000")
	assert.Same(t, a, b)
	assert.NotSame(t, a, p.Get("http://other:5000"))

	api := p.Dialer()("http://host:5000")
	assert.Same(t, a, api)
}
