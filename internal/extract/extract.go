package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minBlockLen filters out navigation crumbs and other tiny text blocks.
const minBlockLen = 15

// fallbackWindow is the number of characters kept on either side of a name
// when the tag scan finds nothing and we fall back to flat-text search.
const fallbackWindow = 200

// contentTags are the block-level tags likely to carry visible prose.
var contentTags = "p, span, div, li, article, blockquote"

// Mention is one occurrence of a tracked name in fetched page content. Text is
// trimmed to the sentence(s) naming the leader; Context keeps the full block.
type Mention struct {
	Leader  string
	Text    string
	Context string
}

// Mentions scans raw markup for the given leader names. Matching is
// case-insensitive substring matching, the same permissive policy throughout.
// Unparseable input yields an empty list, never an error: these pages are
// brittle and a miss is acceptable.
func Mentions(rawHTML, pageURL string, leaders []string) []Mention {
	if strings.TrimSpace(rawHTML) == "" || len(leaders) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var mentions []Mention
	seen := make(map[string]struct{})
	doc.Find(contentTags).Each(func(_ int, s *goquery.Selection) {
		block := normalizeSpace(s.Text())
		if len(block) < minBlockLen {
			return
		}
		if matchLeader(block, leaders) == "" {
			return
		}
		for _, sentence := range splitSentences(block) {
			if leader := matchLeader(sentence, leaders); leader != "" {
				// Nested blocks repeat their children's text; keep the first.
				key := leader + "\x00" + strings.TrimSpace(sentence)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				mentions = append(mentions, Mention{
					Leader:  leader,
					Text:    strings.TrimSpace(sentence),
					Context: block,
				})
			}
		}
	})

	if len(mentions) == 0 {
		mentions = fallbackMentions(rawHTML, pageURL, leaders)
	}
	return mentions
}

// fallbackMentions distills the page to its main content and searches the
// flat text, keeping a bounded window around the first occurrence per leader.
func fallbackMentions(rawHTML, pageURL string, leaders []string) []Mention {
	full := flatText(rawHTML, pageURL)
	if full == "" {
		return nil
	}

	lower := strings.ToLower(full)
	var mentions []Mention
	for _, leader := range leaders {
		idx := strings.Index(lower, strings.ToLower(leader))
		if idx < 0 {
			continue
		}
		start := idx - fallbackWindow
		if start < 0 {
			start = 0
		}
		end := idx + len(leader) + fallbackWindow
		if end > len(full) {
			end = len(full)
		}
		window := strings.TrimSpace(full[start:end])
		mentions = append(mentions, Mention{Leader: leader, Text: window, Context: window})
	}
	return mentions
}

func flatText(rawHTML, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return normalizeSpace(article.TextContent)
	}

	// Readability rejects pages without article structure; fall back to the
	// whole document text.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return normalizeSpace(doc.Text())
}

// matchLeader returns the first leader name contained in the text, or "".
func matchLeader(text string, leaders []string) string {
	lower := strings.ToLower(text)
	for _, leader := range leaders {
		if leader != "" && strings.Contains(lower, strings.ToLower(leader)) {
			return leader
		}
	}
	return ""
}

// splitSentences breaks a block on sentence-ending punctuation followed by
// whitespace. Good enough for prose; exotic abbreviations just yield longer
// snippets.
func splitSentences(block string) []string {
	var sentences []string
	start := 0
	runes := []rune(block)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] == ' ' {
				sentences = append(sentences, string(runes[start:i+1]))
				start = i + 2
				i++
			}
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func normalizeSpace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
