package cards

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ValidateHTML checks a category page for the mistakes synchronization can
// leave behind or trip over. siteURL is the published site root; links under
// it must not contain empty path segments. It returns one message per
// problem found, or nil when the page is clean.
func ValidateHTML(data []byte, siteURL string) ([]string, error) {
	doc, err := ParseDocument(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var problems []string
	if !doc.HasContainer() {
		problems = append(problems, "missing div.content-wrapper")
	}

	for _, col := range findAll(doc.root, isAnyColumn) {
		if !inRow(col) {
			problems = append(problems, fmt.Sprintf("column outside a row: %q", attr(col, "class")))
			break
		}
	}

	host := siteHost(siteURL)
	links := findAll(doc.root, func(n *html.Node) bool { return isElement(n, atom.A) && attr(n, "href") != "" })
	for _, a := range links {
		href := attr(a, "href")
		if host != "" {
			if i := strings.Index(href, host); i >= 0 && strings.Contains(href[i+len(host):], "//") {
				problems = append(problems, "double slash in URL: "+href)
			}
		}
		if strings.Contains(href, " ") {
			problems = append(problems, "unencoded space in URL: "+href)
		}
	}

	if bytes.Count(data, []byte("<")) != bytes.Count(data, []byte(">")) {
		problems = append(problems, "unbalanced tag brackets")
	}

	counts := make(map[string]int)
	for _, a := range findAll(doc.root, isCardLink) {
		counts[attr(a, "href")]++
	}
	var duplicates []string
	for u, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, u)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		problems = append(problems, fmt.Sprintf("duplicate cards: %d URLs (%s)", len(duplicates), strings.Join(duplicates, ", ")))
	}

	return problems, nil
}

func isAnyColumn(n *html.Node) bool {
	if !isElement(n, atom.Div) {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(c, "col-") {
			return true
		}
	}
	return false
}

// inRow reports whether a column's parent or grandparent is a row.
func inRow(col *html.Node) bool {
	p := col.Parent
	for i := 0; i < 2 && p != nil; i++ {
		if p.Type == html.ElementNode && hasClass(p, rowClass) {
			return true
		}
		p = p.Parent
	}
	return false
}

func siteHost(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
