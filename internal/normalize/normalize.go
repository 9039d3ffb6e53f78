// Package normalize converts raw board HTML into canonical plain text and a
// stable content hash. The hash is a dedup/change key, not a security
// primitive.
//
// Normalization is deterministic for a given HTML input, but it is not a
// fixed point: feeding already-normalized text back through Normalize is not
// guaranteed to return it unchanged, since the cleanup targets HTML-sourced
// noise. Always hash the output of a single normalization pass.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, " +
	"section, article, blockquote, pre, table, ul, ol, dl, dt, dd, figure, figcaption"

var (
	brTag      = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	hspaceRun  = regexp.MustCompile(`[ \t]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Normalize converts article HTML to canonical plain text.
func Normalize(html string) (string, error) {
	html = brTag.ReplaceAllString(html, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	// Terminate every structural block with a newline so that text
	// extraction keeps block boundaries as line boundaries.
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, " ", " ")
	text = hspaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

// Hash returns the hex SHA-256 digest of text.
func Hash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// NormalizeAndHash combines Normalize and Hash.
func NormalizeAndHash(html string) (text, hash string, err error) {
	text, err = Normalize(html)
	if err != nil {
		return "", "", err
	}
	return text, Hash(text), nil
}
