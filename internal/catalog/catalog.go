package catalog

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

var seasonRe = regexp.MustCompile(`/saison\d+`)

// Origin returns scheme://host of an absolute URL
func Origin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Wrapf(err, "invalid url %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("url %q is not absolute", raw)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// IsSupportedPage reports whether pageURL is a planning page or a season
// page of the catalog hosted at baseURL.
func IsSupportedPage(pageURL, baseURL string) bool {
	page, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || page.Host == "" {
		return false
	}
	pageOrigin, err := Origin(pageURL)
	if err != nil {
		return false
	}
	baseOrigin, err := Origin(baseURL)
	if err != nil || pageOrigin != baseOrigin {
		return false
	}

	path := page.Path
	return strings.Contains(path, "/planning/") ||
		(strings.Contains(path, "/catalogue/") && seasonRe.MatchString(path))
}

// IsSeasonLink reports whether a card link points at an anime season, as
// opposed to a scan or a bare catalogue entry.
func IsSeasonLink(href string) bool {
	return strings.Contains(href, "/catalogue/") &&
		!strings.Contains(href, "/scan/") &&
		seasonRe.MatchString(href)
}

// AppInfoSource is the part of the companion server that knows the catalog.
type AppInfoSource interface {
	AppInfo(ctx context.Context) (*domain.AppInfo, error)
}

// Resolver finds the catalog base URL: the companion server's app-info
// first, then the value remembered in the session, then the fallback.
type Resolver struct {
	log      zerolog.Logger
	sessions domain.SessionRepo
	source   func(serverURL string) AppInfoSource
	fallback string
}

func NewResolver(log zerolog.Logger, sessions domain.SessionRepo, source func(serverURL string) AppInfoSource, fallback string) *Resolver {
	return &Resolver{
		log:      log.With().Str("module", "catalog").Logger(),
		sessions: sessions,
		source:   source,
		fallback: fallback,
	}
}

// BaseURL always returns an origin; failures fall through to the next source
func (r *Resolver) BaseURL(ctx context.Context) string {
	session, err := r.sessions.Get(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read session")
		session = &domain.Session{}
	}

	if session.ServerURL != "" {
		if origin, ok := r.fromServer(ctx, session); ok {
			return origin
		}
	}

	if session.AnimeSamaURL != "" {
		if origin, err := Origin(session.AnimeSamaURL); err == nil {
			return origin
		}
	}

	if origin, err := Origin(r.fallback); err == nil {
		return origin
	}
	return r.fallback
}

func (r *Resolver) fromServer(ctx context.Context, session *domain.Session) (string, bool) {
	info, err := r.source(session.ServerURL).AppInfo(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("app-info unavailable, using stored catalog url")
		return "", false
	}
	if !info.OK || info.AnimeSamaURL == "" {
		return "", false
	}

	origin, err := Origin(info.AnimeSamaURL)
	if err != nil {
		r.log.Warn().Err(err).Msg("server returned an invalid catalog url")
		return "", false
	}

	if session.AnimeSamaURL != info.AnimeSamaURL {
		session.AnimeSamaURL = info.AnimeSamaURL
		if err := r.sessions.Store(ctx, session); err != nil {
			r.log.Warn().Err(err).Msg("failed to remember catalog url")
		}
	}
	return origin, true
}
