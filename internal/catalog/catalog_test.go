package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/domain"
)

const planningHTML = `<html><body>
<div class="selectedRow">
  <h2 class="titreJours">Lundi 13 octobre</h2>
  <div class="anime-card-premium">
    <a href="/catalogue/one-piece/saison11/vostfr/"><h3 class="card-title">One Piece</h3></a>
    <div class="card-content"></div>
  </div>
  <div class="anime-card-premium scan-card-premium">
    <a href="/catalogue/one-piece/scan/vf/">Scan</a>
  </div>
  <div class="scan-card-premium">
    <a href="/catalogue/berserk/scan/vf/">Berserk</a>
  </div>
</div>
<div class="selectedRow">
  <h2 class="titreJours">  Jeudi </h2>
  <div class="row"><div class="anime-card-premium">
    <a title="Frieren" href="https://anime-sama.eu/catalogue/frieren/saison2/vostfr">Frieren S2</a>
  </div></div>
  <div class="anime-card-premium">
    <a href="/catalogue/no-season/">No season</a>
  </div>
</div>
<div class="anime-card-premium">
  <a href="/catalogue/film/saison1/vf/"><span>The</span> <span>Movie</span></a>
</div>
</body></html>`

func TestParsePlanning(t *testing.T) {
	cards, err := ParsePlanning(strings.NewReader(planningHTML))
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, domain.AnimeKey("/catalogue/one-piece/saison11/vostfr"), cards[0].Key)
	assert.Equal(t, "One Piece", cards[0].Title)
	require.NotNil(t, cards[0].Day)
	assert.Equal(t, domain.Monday, *cards[0].Day)

	assert.Equal(t, domain.AnimeKey("/catalogue/frieren/saison2/vostfr"), cards[1].Key)
	assert.Equal(t, "Frieren", cards[1].Title)
	require.NotNil(t, cards[1].Day)
	assert.Equal(t, domain.Thursday, *cards[1].Day)

	assert.Equal(t, domain.AnimeKey("/catalogue/film/saison1/vf"), cards[2].Key)
	assert.Equal(t, "The Movie", cards[2].Title)
	assert.Nil(t, cards[2].Day)
}

func TestIsSupportedPage(t *testing.T) {
	base := "https://anime-sama.eu"
	tests := []struct {
		page string
		want bool
	}{
		{"https://anime-sama.eu/planning/", true},
		{"https://anime-sama.eu/catalogue/frieren/saison2/vostfr/", true},
		{"https://ANIME-SAMA.eu/catalogue/frieren/saison2/vostfr/", true},
		{"https://anime-sama.eu/catalogue/frieren/", false},
		{"https://anime-sama.eu/catalogue/frieren/saisonX/", false},
		{"https://anime-sama.eu/", false},
		{"https://anime-sama.tv/planning/", false},
		{"http://anime-sama.eu/planning/", false},
		{"/planning/", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupportedPage(tt.page, base), tt.page)
	}
	assert.False(t, IsSupportedPage("https://anime-sama.eu/planning/", "not a url"))
}

func TestOrigin(t *testing.T) {
	o, err := Origin("https://anime-sama.tv/some/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "https://anime-sama.tv", o)

	_, err = Origin("anime-sama.tv")
	assert.Error(t, err)
}

type memSessions struct {
	s      domain.Session
	stored int
}

func (m *memSessions) Get(context.Context) (*domain.Session, error) {
	s := m.s
	return &s, nil
}

func (m *memSessions) Store(_ context.Context, s *domain.Session) error {
	m.s = *s
	m.stored++
	return nil
}

type fakeInfo struct {
	info *domain.AppInfo
	err  error
}

func (f fakeInfo) AppInfo(context.Context) (*domain.AppInfo, error) { return f.info, f.err }

func TestResolverPriority(t *testing.T) {
	ctx := context.Background()
	const fallback = "https://anime-sama.eu"

	// server answers: its value wins and is remembered
	sessions := &memSessions{s: domain.Session{ServerURL: "http://server"}}
	r := NewResolver(zerolog.Nop(), sessions, func(string) AppInfoSource {
		return fakeInfo{info: &domain.AppInfo{OK: true, AnimeSamaURL: "https://anime-sama.tv/"}}
	}, fallback)
	assert.Equal(t, "https://anime-sama.tv", r.BaseURL(ctx))
	assert.Equal(t, "https://anime-sama.tv/", sessions.s.AnimeSamaURL)
	assert.Equal(t, 1, sessions.stored)

	// server down: remembered value
	r = NewResolver(zerolog.Nop(), sessions, func(string) AppInfoSource {
		return fakeInfo{err: errors.New("connection refused")}
	}, fallback)
	assert.Equal(t, "https://anime-sama.tv", r.BaseURL(ctx))
	assert.Equal(t, 1, sessions.stored)

	// nothing configured: fallback
	r = NewResolver(zerolog.Nop(), &memSessions{}, func(string) AppInfoSource {
		t.Fatal("no server configured, app-info must not be queried")
		return nil
	}, fallback+"/")
	assert.Equal(t, fallback, r.BaseURL(ctx))
}

func TestScraperPlanning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/planning/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, planningHTML)
	}))
	defer srv.Close()

	s := NewScraper(zerolog.Nop(), 2*time.Second)
	cards, err := s.Planning(context.Background(), srv.URL+"/catalogue/ignored")
	require.NoError(t, err)
	assert.Len(t, cards, 3)
}

func TestScraperPlanningError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewScraper(zerolog.Nop(), time.Second).Planning(context.Background(), srv.URL)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewScraper(zerolog.Nop(), time.Second).Planning(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
