package driver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageText = 50000

// PageText turns raw page HTML into the plain-text report handed to the
// Brain. Readability picks the main content; when it finds nothing the whole
// document is stripped instead so forms and short pages still read.
func PageText(html, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}

	p := bluemonday.StrictPolicy()

	var title, excerpt, content string
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil {
		title = article.Title
		excerpt = article.Excerpt
		content = p.Sanitize(article.TextContent)
	}
	if strings.TrimSpace(content) == "" {
		content = p.Sanitize(html)
	}
	content = collapseSpace(content)

	output := fmt.Sprintf("URL: %s\n", pageURL)
	if title != "" {
		output += fmt.Sprintf("TITLE: %s\n", title)
	}
	if excerpt != "" {
		output += fmt.Sprintf("EXCERPT: %s\n", excerpt)
	}
	output += "\n-- CONTENT --\n"

	if len(content) > maxPageText {
		content = content[:maxPageText] + "\n... (content truncated) ..."
	}
	return output + content, nil
}

// collapseSpace drops blank lines and trims each remaining line.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
