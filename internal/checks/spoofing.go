package checks

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// LinkSpoofing parses every anchor in the HTML part and compares the domain
// shown in the link text against the domain the href actually targets. A
// mismatch means the reader is told one destination and sent to another.
func LinkSpoofing(msg *core.EmailMessage) core.CheckResult {
	if strings.TrimSpace(msg.BodyHTML) == "" {
		return core.CheckResult{
			Name: "link_spoofing", Status: core.StatusInfo, Score: 0.0,
			Title:       "No HTML part",
			Description: "nothing to compare without rendered links",
		}
	}

	doc, err := html.Parse(strings.NewReader(msg.BodyHTML))
	if err != nil {
		return core.CheckResult{
			Name: "link_spoofing", Status: core.StatusInfo, Score: 0.0,
			Title:       "Unparsable HTML",
			Description: "links could not be extracted",
		}
	}

	type mismatch struct {
		Shown  string `json:"shown"`
		Actual string `json:"actual"`
	}
	var mismatches []mismatch
	anchors := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "a") {
			anchors++
			var href string
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "href") {
					href = attr.Val
					break
				}
			}
			text := anchorText(n)
			shownRaw := urlPattern.FindString(text)
			if shownRaw == "" {
				shownRaw = bareDomainPattern.FindString(text)
			}
			shown := urlDomain(shownRaw)
			actual := urlDomain(href)
			if shown != "" && actual != "" && !sameRegisteredDomain(shown, actual) {
				mismatches = append(mismatches, mismatch{Shown: shown, Actual: actual})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if anchors == 0 {
		return core.CheckResult{
			Name: "link_spoofing", Status: core.StatusInfo, Score: 0.0,
			Title:       "No links in HTML",
			Description: "HTML part contains no anchors",
		}
	}
	if len(mismatches) > 0 {
		first := mismatches[0]
		return core.CheckResult{
			Name: "link_spoofing", Status: core.StatusFail, Score: -3.0,
			Title:       "Link text hides real destination",
			Description: "link shows " + first.Shown + " but targets " + first.Actual,
			Details: map[string]interface{}{
				"mismatches": mismatches,
				"anchors":    anchors,
			},
		}
	}
	return core.CheckResult{
		Name: "link_spoofing", Status: core.StatusPass, Score: 0.1,
		Title:       "Link text matches destinations",
		Description: "all anchor texts agree with their targets",
		Details:     map[string]interface{}{"anchors": anchors},
	}
}

func anchorText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// sameRegisteredDomain compares the last two labels, so www.paypal.com and
// paypal.com agree while paypal.com and paypal-secure.ru do not.
func sameRegisteredDomain(a, b string) bool {
	return lastLabels(a, 2) == lastLabels(b, 2)
}

func lastLabels(domain string, n int) string {
	parts := strings.Split(strings.ToLower(domain), ".")
	if len(parts) <= n {
		return strings.Join(parts, ".")
	}
	return strings.Join(parts[len(parts)-n:], ".")
}

// UnicodeSpoofing hunts for homograph tricks: tokens mixing Latin with
// Cyrillic or Greek letters, and security-relevant words that only appear
// after mapping confusable characters back to Latin. Content is NFKC
// normalized first so fullwidth and compatibility forms collapse. The
// mixed-script scan covers only the subject and the display name; body
// prose in other languages legitimately hyphenates Latin terms into
// native words (PDF-файл), so the body gets the confusable pass only.
func UnicodeSpoofing(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	headerText := norm.NFKC.String(msg.Subject + " " + msg.FromName)
	content := norm.NFKC.String(msg.Subject + " " + msg.FromName + " " + msg.BodyText)
	if strings.TrimSpace(content) == "" {
		return core.CheckResult{
			Name: "unicode_spoofing", Status: core.StatusInfo, Score: 0.0,
			Title:       "No text content",
			Description: "nothing to inspect",
		}
	}

	var findings []string

	for _, token := range strings.Fields(headerText) {
		if mixedScript(token) {
			findings = append(findings, "mixed-script token: "+token)
		}
	}

	if len(findings) == 0 && len(data.Confusables) > 0 {
		mapped := mapConfusables(strings.ToLower(content), data.Confusables)
		if mapped != strings.ToLower(content) {
			for word := range securityWords {
				if strings.Contains(mapped, word) && !strings.Contains(strings.ToLower(content), word) {
					findings = append(findings, "confusable characters spell \""+word+"\"")
				}
			}
		}
	}

	if len(findings) > 0 {
		return core.CheckResult{
			Name: "unicode_spoofing", Status: core.StatusFail, Score: -3.0,
			Title:       "Character-set spoofing",
			Description: strings.Join(truncateList(findings, 3), "; "),
			Details:     map[string]interface{}{"findings": truncateList(findings, 10)},
		}
	}
	return core.CheckResult{
		Name: "unicode_spoofing", Status: core.StatusPass, Score: 0.1,
		Title:       "No character spoofing",
		Description: "scripts are used consistently",
	}
}

var securityWords = map[string]bool{
	"paypal": true, "apple": true, "google": true, "microsoft": true,
	"amazon": true, "password": true, "account": true, "verify": true,
	"secure": true, "login": true, "bank": true,
}

// mixedScript reports Latin letters mixed with Cyrillic or Greek in one
// token. Whole-token foreign words are fine; the mix is the tell.
func mixedScript(token string) bool {
	var latin, other bool
	for _, r := range token {
		if !unicode.IsLetter(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Latin, r):
			latin = true
		case unicode.Is(unicode.Cyrillic, r), unicode.Is(unicode.Greek, r):
			other = true
		}
	}
	return latin && other
}

func mapConfusables(s string, table map[string]string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if repl, ok := table[string(r)]; ok {
			sb.WriteString(repl)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
