package plugins

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/tolelom/cardtable/search"
)

// MagicCardsInfoPlugin fetches results from the magiccards.info query
// endpoint and scrapes card tuples out of the returned HTML with
// regular expressions, per spec §4.4 — this is not a stand-in for a
// proper HTML parse; the spec explicitly mandates regex extraction.
type MagicCardsInfoPlugin struct {
	baseURL string
	backURL string
	client  *http.Client
}

// NewMagicCardsInfoPlugin builds a plugin against baseURL (e.g.
// "http://magiccards.info/query").
func NewMagicCardsInfoPlugin(baseURL, backURL string) *MagicCardsInfoPlugin {
	return &MagicCardsInfoPlugin{
		baseURL: baseURL,
		backURL: backURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// resultLinkPattern matches the common markup shape:
//
//	<a href="/info/url"><img src="/img/url" ...></a> ... <a href="...">Name</a>
//
// used when the response page embeds one result per <a><img> pair.
var resultLinkPattern = regexp.MustCompile(
	`(?s)<a href="(?P<info>[^"]+)"><img src="(?P<img>[^"]+)"[^>]*></a>.*?<a href="[^"]*">(?P<name>[^<]+)</a>`,
)

// autocardLinkPattern matches the alternate markup shape magiccards.info
// uses for its "autocard"-annotated result rows, keyed off a
// `class="autocard..."` marker instead of a direct <img> pair.
var autocardLinkPattern = regexp.MustCompile(
	`(?s)<a class="autocard[^"]*" href="(?P<info>[^"]+)"[^>]*>(?P<name>[^<]+)</a>.*?<img src="(?P<img>[^"]+)"`,
)

var hasMorePattern = regexp.MustCompile(`(?i)<a href="([^"]+)"[^>]*>\s*Next\s*</a>`)

// Fetch implements search.Plugin: it issues a GET against baseURL with
// term-derived query parameters, then extracts card tuples from the
// response HTML using whichever of the two patterns matches the page's
// markup.
func (p *MagicCardsInfoPlugin) Fetch(term string, exact bool, limit int) ([]search.Card, search.Meta, error) {
	reqURL := p.buildURL(term, exact)
	body, err := p.get(reqURL)
	if err != nil {
		return nil, search.Meta{}, err
	}

	matches := autocardLinkPattern.FindAllStringSubmatch(body, -1)
	names := autocardLinkPattern.SubexpNames()
	if len(matches) == 0 {
		matches = resultLinkPattern.FindAllStringSubmatch(body, -1)
		names = resultLinkPattern.SubexpNames()
	}

	var cards []search.Card
	for _, m := range matches {
		card := search.Card{}
		for i, name := range names {
			switch name {
			case "info":
				card.InfoURL = m[i]
			case "img":
				card.ImgURL = m[i]
			case "name":
				card.Name = m[i]
			}
		}
		cards = append(cards, card)
		if limit > 0 && len(cards) >= limit {
			break
		}
	}

	meta := search.Meta{}
	if more := hasMorePattern.FindStringSubmatch(body); more != nil {
		meta.HasMore = true
		meta.NextURL = more[1]
	}
	return cards, meta, nil
}

func (p *MagicCardsInfoPlugin) buildURL(term string, exact bool) string {
	q := url.Values{}
	q.Set("q", term)
	if exact {
		q.Set("exact", "1")
	}
	return fmt.Sprintf("%s?%s", p.baseURL, q.Encode())
}

func (p *MagicCardsInfoPlugin) get(reqURL string) (string, error) {
	resp, err := p.client.Get(reqURL)
	if err != nil {
		return "", fmt.Errorf("plugins: magiccards.info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("plugins: magiccards.info: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("plugins: magiccards.info: read body: %w", err)
	}
	return string(data), nil
}

// GetBackURL implements search.Plugin.
func (p *MagicCardsInfoPlugin) GetBackURL() string { return p.backURL }

// Sample implements search.Plugin: fetch a single well-known card.
func (p *MagicCardsInfoPlugin) Sample() (search.Card, error) {
	cards, _, err := p.Fetch("black lotus", true, 1)
	if err != nil {
		return search.Card{}, err
	}
	if len(cards) == 0 {
		return search.Card{}, fmt.Errorf("plugins: magiccards.info: sample query returned no cards")
	}
	return cards[0], nil
}

// SampleDeck implements search.Plugin. magiccards.info has no local
// catalog of colors/costs to synthesize a themed deck from, so it
// reports that capability as unsupported.
func (p *MagicCardsInfoPlugin) SampleDeck(term string, numDecks int) ([]search.Deck, error) {
	return nil, fmt.Errorf("plugins: magiccards.info: deck synthesis not supported")
}

// Complete implements search.Plugin. The remote endpoint has no
// autocomplete API this plugin uses.
func (p *MagicCardsInfoPlugin) Complete(term string) []string { return nil }
