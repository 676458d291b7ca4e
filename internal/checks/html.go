package checks

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/mailsentry/mailsentry/internal/core"
)

var dangerousHTMLTags = map[string]bool{
	"script": true, "iframe": true, "object": true, "embed": true,
	"applet": true, "meta": true,
}

// HTMLContent walks the HTML part looking for active content: script and
// frame tags, hidden elements, forms and password inputs. Each class of
// finding carries its own penalty; the combined penalty decides between a
// warning and a failure.
func HTMLContent(msg *core.EmailMessage) core.CheckResult {
	if strings.TrimSpace(msg.BodyHTML) == "" {
		return core.CheckResult{
			Name: "html_content", Status: core.StatusInfo, Score: 0.0,
			Title:       "No HTML part",
			Description: "message is plain text",
		}
	}

	var (
		dangerousTags  []string
		hiddenElements int
		forms          int
		passwordInputs int
	)

	doc, err := html.Parse(strings.NewReader(msg.BodyHTML))
	if err != nil {
		// Broken markup is itself a signal, but without a parse tree there
		// is nothing more to grade.
		return core.CheckResult{
			Name: "html_content", Status: core.StatusWarn, Score: -0.5,
			Title:       "Unparsable HTML",
			Description: "HTML part could not be parsed",
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if dangerousHTMLTags[tag] {
				dangerousTags = append(dangerousTags, tag)
			}
			switch tag {
			case "form":
				forms++
			case "input":
				for _, attr := range n.Attr {
					if strings.EqualFold(attr.Key, "type") && strings.EqualFold(attr.Val, "password") {
						passwordInputs++
					}
				}
			}
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "style") {
					style := strings.ToLower(attr.Val)
					if strings.Contains(style, "display:none") ||
						strings.Contains(style, "display: none") ||
						strings.Contains(style, "visibility:hidden") ||
						strings.Contains(style, "visibility: hidden") {
						hiddenElements++
					}
				}
				if strings.EqualFold(attr.Key, "hidden") {
					hiddenElements++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	score := 0.0
	var issues []string
	for _, tag := range dangerousTags {
		score -= 1.0
		issues = append(issues, "dangerous tag: <"+tag+">")
	}
	if hiddenElements > 0 {
		score -= 0.5
		issues = append(issues, "hidden content")
	}
	if forms > 0 {
		score -= 0.5 * float64(forms)
		issues = append(issues, "embedded form")
	}
	if passwordInputs > 0 {
		score -= 1.5
		issues = append(issues, "password input field")
	}

	details := map[string]interface{}{
		"dangerous_tags":  dangerousTags,
		"hidden_elements": hiddenElements,
		"forms":           forms,
		"password_inputs": passwordInputs,
	}

	switch {
	case len(issues) == 0:
		return core.CheckResult{
			Name: "html_content", Status: core.StatusPass, Score: 0.1,
			Title:       "HTML content clean",
			Description: "no active content found",
			Details:     details,
		}
	case score < -1.5:
		return core.CheckResult{
			Name: "html_content", Status: core.StatusFail, Score: score,
			Title:       "Dangerous HTML content",
			Description: strings.Join(truncateList(issues, 5), "; "),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "html_content", Status: core.StatusWarn, Score: score,
			Title:       "Questionable HTML content",
			Description: strings.Join(truncateList(issues, 5), "; "),
			Details:     details,
		}
	}
}
