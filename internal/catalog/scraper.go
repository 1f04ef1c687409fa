package catalog

import (
	"bytes"
	"context"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Scraper downloads catalog pages.
type Scraper struct {
	log     zerolog.Logger
	timeout time.Duration
}

func NewScraper(log zerolog.Logger, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		log:     log.With().Str("module", "catalog").Logger(),
		timeout: timeout,
	}
}

// Planning fetches baseURL/planning/ and returns its anime cards
func (s *Scraper) Planning(ctx context.Context, baseURL string) ([]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	origin, err := Origin(baseURL)
	if err != nil {
		return nil, err
	}

	cc := colly.NewCollector()
	extensions.RandomUserAgent(cc)
	cc.SetRequestTimeout(s.timeout)

	var (
		cards    []Card
		parseErr error
		visitErr error
	)

	cc.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		s.log.Debug().Str("url", r.URL.String()).Msg("visiting")
	})

	cc.OnResponse(func(r *colly.Response) {
		cards, parseErr = ParsePlanning(bytes.NewReader(r.Body))
	})

	cc.OnError(func(r *colly.Response, err error) {
		visitErr = errors.Wrapf(err, "failed to fetch %s (status %d)", r.Request.URL, r.StatusCode)
	})

	target := origin + "/planning/"
	if err := cc.Visit(target); err != nil {
		return nil, errors.Wrapf(err, "failed to visit %s", target)
	}
	cc.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if parseErr != nil {
		return nil, parseErr
	}

	s.log.Debug().Int("cards", len(cards)).Msg("planning parsed")
	return cards, nil
}
