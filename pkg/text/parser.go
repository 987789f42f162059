// Package text provides message text normalization and Spotify link matching for chat messages.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	trackLinkRegex = regexp.MustCompile(`https://open\.spotify\.com/track/([a-zA-Z0-9]+)`)
	shortLinkRegex = regexp.MustCompile(`https://spotify\.link/[a-zA-Z0-9]+`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// ParsedMessage holds the Spotify references found in one message.
type ParsedMessage struct {
	Text       string   // normalized text, for logging
	TrackIDs   []string // direct track links, in text order
	ShortLinks []string // shortened links, in text order
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseMessage collects direct track ids and short link candidates from the raw text.
// Ids are captured exactly as written. Duplicates are kept.
func (p *Parser) ParseMessage(text string) ParsedMessage {
	return ParsedMessage{
		Text:       p.normalizeText(text),
		TrackIDs:   MatchTrackIDs(text),
		ShortLinks: shortLinkRegex.FindAllString(text, -1),
	}
}

func (p *Parser) normalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)

	return spaceRegex.ReplaceAllString(text, " ")
}

// MatchTrackIDs returns the id of every direct track link in s, in order of appearance.
func MatchTrackIDs(s string) []string {
	matches := trackLinkRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// MatchTrackID returns the id of the first direct track link in s.
func MatchTrackID(s string) (string, bool) {
	m := trackLinkRegex.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
