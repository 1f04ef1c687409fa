package catalog

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/varoOP/animesync/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	classAnimeCard = "anime-card-premium"
	classScanCard  = "scan-card-premium"
	classDayRow    = "selectedRow"
	classDayTitle  = "titreJours"
)

// Card is one anime entry of the planning page. Day is nil for entries
// outside a weekday row, which go to single download.
type Card struct {
	Key   domain.AnimeKey
	Title string
	Href  string
	Day   *domain.Day
}

// ParsePlanning extracts the anime cards of a planning page. Scan cards and
// links that are not season pages are skipped.
func ParsePlanning(r io.Reader) ([]Card, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse planning page")
	}

	var cards []Card
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, classAnimeCard) && !hasClass(n, classScanCard) {
			if card, ok := parseCard(n); ok {
				cards = append(cards, card)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return cards, nil
}

func parseCard(n *html.Node) (Card, bool) {
	link := find(n, func(c *html.Node) bool {
		return c.DataAtom == atom.A && strings.Contains(attr(c, "href"), "/catalogue/")
	})
	if link == nil {
		return Card{}, false
	}

	href := attr(link, "href")
	if !IsSeasonLink(href) {
		return Card{}, false
	}
	key, ok := domain.Normalize(href)
	if !ok {
		return Card{}, false
	}

	return Card{
		Key:   key,
		Title: cardTitle(n, link),
		Href:  href,
		Day:   dayOf(n),
	}, true
}

func cardTitle(card, link *html.Node) string {
	heading := find(card, func(c *html.Node) bool {
		switch c.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4:
			return true
		}
		return hasClass(c, "card-title")
	})
	if heading != nil {
		if t := text(heading); t != "" {
			return t
		}
	}
	if t := attr(link, "title"); t != "" {
		return t
	}
	return text(link)
}

// dayOf looks for the weekday heading of the closest enclosing day row
func dayOf(n *html.Node) *domain.Day {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode || !hasClass(p, classDayRow) {
			continue
		}
		title := find(p, func(c *html.Node) bool { return hasClass(c, classDayTitle) })
		if title == nil {
			continue
		}
		if d := domain.DetectDay(text(title)); d != nil {
			return d
		}
	}
	return nil
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
