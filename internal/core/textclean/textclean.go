// Package textclean turns collector input (feed titles, scraped markup,
// email bodies) into plain single-spaced text safe to store
//
// Pipeline for Text
// 1 drop invalid UTF-8
// 2 NFC normalization
// 3 strip format characters (ZWJ, ZWNJ, BOM) and control characters other than tab and newline
// 4 collapse whitespace runs and trim
package textclean

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode"

	pstrings "newsroom/internal/platform/strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTitle is the rune cap applied by Title
const MaxTitle = 500

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
			runes.Remove(runes.Predicate(func(r rune) bool {
				return unicode.IsControl(r) && r != '\n' && r != '\t'
			})),
		)
	},
}

// Text applies the full pipeline
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = s
	}
	return pstrings.Collapse(out)
}

// Title is Text capped at MaxTitle runes
func Title(s string) string { return pstrings.Truncate(Text(s), MaxTitle) }

var (
	strict     = bluemonday.StrictPolicy()
	blockClose = regexp.MustCompile(`(?i)<(br\s*/?|/p|/div|/li|/h[1-6]|/tr|/blockquote)\s*>`)
)

// HTML strips every tag from markup, keeps block boundaries as spaces,
// decodes entities and runs Text
func HTML(markup string) string {
	if markup == "" {
		return ""
	}
	spaced := blockClose.ReplaceAllString(markup, "$0 ")
	return Text(html.UnescapeString(strict.Sanitize(spaced)))
}

// LooksLikeHTML reports whether s contains markup worth stripping
func LooksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}
