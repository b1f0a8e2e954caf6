package content

import "strings"

// TaskURL builds the published URL of a task from its path segments
// relative to the category folder. Spaces are encoded as %20 and duplicate
// slashes collapsed. Folder tasks point at their index.html.
func TaskURL(baseURL, category string, segments []string, kind Kind) string {
	parts := make([]string, 0, len(segments)+3)
	parts = append(parts, strings.TrimRight(baseURL, "/"), encodeSegment(category))
	for _, seg := range segments {
		parts = append(parts, encodeSegment(seg))
	}
	if kind == KindFolder {
		parts = append(parts, "index.html")
	}
	return collapseSlashes(strings.Join(parts, "/"))
}

func encodeSegment(seg string) string {
	return strings.ReplaceAll(seg, " ", "%20")
}

// collapseSlashes removes repeated slashes while keeping the scheme's "://".
func collapseSlashes(url string) string {
	scheme := ""
	if i := strings.Index(url, "://"); i >= 0 {
		scheme, url = url[:i+3], url[i+3:]
	}
	for strings.Contains(url, "//") {
		url = strings.ReplaceAll(url, "//", "/")
	}
	return scheme + url
}
