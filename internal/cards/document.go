package cards

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markup conventions of the target site.
const (
	containerClass  = "content-wrapper"
	sectionClass    = "mb-4"
	sectionTitle    = "subsection-title"
	subsectionTitle = "subsection-subtitle"
	rowClass        = "row"
	columnClass     = "col-sm-6"
	cardLinkClass   = "stretched-link"

	sectionTitleClasses    = "subsection-title fs-4 fw-semibold mb-3"
	subsectionTitleClasses = "subsection-subtitle fs-5 mt-4 mb-3 ms-3"
	rowClasses             = "row g-3"
	columnClasses          = "col-sm-6 col-lg-4"
	cardClasses            = "link-card text-white text-decoration-none d-block h-100 position-relative rounded-4 p-4"
	downloadClasses        = "btn btn-sm btn-outline-light d-inline-flex align-items-center gap-2 position-relative"
)

// ErrNoContainer is returned when a page has no content root.
var ErrNoContainer = errors.New("content-wrapper not found")

// Card is the data printed on one card.
type Card struct {
	Title       string
	Description string
	URL         string
}

// Stats counts the structure of a page.
type Stats struct {
	Sections int
	Cards    int
}

// Document is the page model the Synchronizer reconciles. Implementations
// operate on the content root only; everything outside it is left alone.
type Document interface {
	// HasContainer reports whether the page has a content root.
	HasContainer() bool

	// CardURLs returns the URL of every card in document order, each URL
	// once, at the position of its first occurrence.
	CardURLs() []string

	// FindSection reports whether a section heading with this exact name
	// exists.
	FindSection(name string) bool

	// InsertCard appends card to the row of (section, subsection),
	// creating the section, subsection and row as needed. An empty
	// subsection files the card directly under the section.
	InsertCard(section, subsection string, card Card) error

	// RemoveCardByURL removes the column wrapper of the first card linking
	// to url and reports whether one was found.
	RemoveCardByURL(url string) bool

	// RemoveEmptySections drops every section without cards and returns
	// the names of the removed sections.
	RemoveEmptySections() []string

	Stats() Stats
}

// HTMLDocument is a Document backed by an x/net/html tree.
type HTMLDocument struct {
	root      *html.Node
	container *html.Node
}

var _ Document = (*HTMLDocument)(nil)

// ParseDocument parses a full HTML page.
func ParseDocument(r io.Reader) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &HTMLDocument{
		root:      root,
		container: findFirst(root, func(n *html.Node) bool { return isElement(n, atom.Div) && hasClass(n, containerClass) }),
	}, nil
}

// Render serializes the page.
func (d *HTMLDocument) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Bytes renders the page into memory.
func (d *HTMLDocument) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HasContainer implements Document.
func (d *HTMLDocument) HasContainer() bool {
	return d.container != nil
}

// CardURLs implements Document.
func (d *HTMLDocument) CardURLs() []string {
	if d.container == nil {
		return nil
	}
	seen := make(map[string]bool)
	var urls []string
	for _, a := range findAll(d.container, isCardLink) {
		href := attr(a, "href")
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		urls = append(urls, href)
	}
	return urls
}

// FindSection implements Document.
func (d *HTMLDocument) FindSection(name string) bool {
	return d.sectionHeading(name) != nil
}

// InsertCard implements Document.
func (d *HTMLDocument) InsertCard(section, subsection string, card Card) error {
	if d.container == nil {
		return ErrNoContainer
	}
	if card.URL == "" {
		return fmt.Errorf("card %q has no url", card.Title)
	}

	h3 := d.sectionHeading(section)
	if h3 == nil {
		d.container.AppendChild(newSection(section, subsection, card))
		return nil
	}
	if h3.Parent == nil {
		return fmt.Errorf("section heading %q is detached", section)
	}

	if subsection == "" {
		row := directRow(h3)
		if row == nil {
			row = newElement(atom.Div, "class", rowClasses)
			insertAfter(h3, row)
		}
		row.AppendChild(newCard(card))
		return nil
	}

	h4 := subsectionHeading(h3, subsection)
	if h4 == nil {
		h4 = newHeading(atom.H4, subsectionTitleClasses, subsection)
		insertAfter(lastInSection(h3), h4)
	}
	row := subsectionRow(h4)
	if row == nil {
		row = newElement(atom.Div, "class", rowClasses)
		insertAfter(h4, row)
	}
	row.AppendChild(newCard(card))
	return nil
}

// RemoveCardByURL implements Document.
func (d *HTMLDocument) RemoveCardByURL(url string) bool {
	if d.container == nil {
		return false
	}
	for _, a := range findAll(d.container, isCardLink) {
		if attr(a, "href") != url {
			continue
		}
		for p := a.Parent; p != nil && p != d.container; p = p.Parent {
			if isElement(p, atom.Div) && hasClass(p, columnClass) {
				p.Parent.RemoveChild(p)
				return true
			}
		}
	}
	return false
}

// RemoveEmptySections implements Document.
func (d *HTMLDocument) RemoveEmptySections() []string {
	if d.container == nil {
		return nil
	}
	var removed []string
	for _, section := range d.sections() {
		if findFirst(section, isColumn) != nil || !d.contains(section) {
			continue
		}
		removed = append(removed, textOf(sectionTitleOf(section)))
		section.Parent.RemoveChild(section)
	}
	return removed
}

// Stats implements Document.
func (d *HTMLDocument) Stats() Stats {
	if d.container == nil {
		return Stats{}
	}
	return Stats{
		Sections: len(d.sections()),
		Cards:    len(findAll(d.container, isColumn)),
	}
}

// sections returns every section wrapper: a div.mb-4 whose heading is a
// direct child h3.subsection-title.
func (d *HTMLDocument) sections() []*html.Node {
	return findAll(d.container, func(n *html.Node) bool {
		return isElement(n, atom.Div) && hasClass(n, sectionClass) && sectionTitleOf(n) != nil
	})
}

// contains reports whether n is still attached below the content root.
func (d *HTMLDocument) contains(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == d.container {
			return true
		}
	}
	return false
}

func (d *HTMLDocument) sectionHeading(name string) *html.Node {
	if d.container == nil {
		return nil
	}
	return findFirst(d.container, func(n *html.Node) bool {
		return isElement(n, atom.H3) && hasClass(n, sectionTitle) && textOf(n) == name
	})
}

func sectionTitleOf(section *html.Node) *html.Node {
	for c := section.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, atom.H3) && hasClass(c, sectionTitle) {
			return c
		}
	}
	return nil
}

// directRow finds the row holding cards filed directly under a section: the
// first row after the heading, before any subsection heading.
func directRow(h3 *html.Node) *html.Node {
	for n := nextElement(h3); n != nil; n = nextElement(n) {
		if n.DataAtom == atom.H3 || n.DataAtom == atom.H4 {
			return nil
		}
		if n.DataAtom == atom.Div && hasClass(n, rowClass) {
			return n
		}
	}
	return nil
}

func subsectionHeading(h3 *html.Node, name string) *html.Node {
	for n := nextElement(h3); n != nil; n = nextElement(n) {
		if n.DataAtom == atom.H3 {
			return nil
		}
		if n.DataAtom == atom.H4 && hasClass(n, subsectionTitle) && textOf(n) == name {
			return n
		}
	}
	return nil
}

// subsectionRow finds the first row after a subsection heading, before the
// next heading.
func subsectionRow(h4 *html.Node) *html.Node {
	for n := nextElement(h4); n != nil; n = nextElement(n) {
		if n.DataAtom == atom.H3 || n.DataAtom == atom.H4 {
			return nil
		}
		if n.DataAtom == atom.Div && hasClass(n, rowClass) {
			return n
		}
	}
	return nil
}

// lastInSection returns the last sibling belonging to the section that
// starts at h3.
func lastInSection(h3 *html.Node) *html.Node {
	last := h3
	for n := h3.NextSibling; n != nil; n = n.NextSibling {
		if isElement(n, atom.H3) {
			break
		}
		last = n
	}
	return last
}

func newSection(section, subsection string, card Card) *html.Node {
	div := newElement(atom.Div, "class", sectionClass)
	div.AppendChild(newHeading(atom.H3, sectionTitleClasses, section))
	if subsection != "" {
		div.AppendChild(newHeading(atom.H4, subsectionTitleClasses, subsection))
	}
	row := newElement(atom.Div, "class", rowClasses)
	row.AppendChild(newCard(card))
	div.AppendChild(row)
	return div
}

func newHeading(a atom.Atom, classes, text string) *html.Node {
	h := newElement(a, "class", classes)
	h.AppendChild(newText(text))
	return h
}

// newCard builds the column wrapper of one card. The tree is built by hand
// so URLs are stored verbatim, exactly as the scanner produced them.
func newCard(card Card) *html.Node {
	col := newElement(atom.Div, "class", columnClasses)
	body := newElement(atom.Div, "class", cardClasses)
	col.AppendChild(body)

	body.AppendChild(newElement(atom.A, "class", cardLinkClass, "href", card.URL, "target", "_blank"))
	body.AppendChild(newHeading(atom.H3, "mb-3 fs-5 fw-semibold", card.Title))
	body.AppendChild(newHeading(atom.P, "mb-3", card.Description))

	download := newElement(atom.A,
		"class", downloadClasses,
		"download", "",
		"href", card.URL,
		"onclick", "event.stopPropagation();",
		"style", "z-index: 2;",
	)
	span := newElement(atom.Span)
	span.AppendChild(newText("⬇️"))
	download.AppendChild(span)
	download.AppendChild(newText(" Pobierz"))
	body.AppendChild(download)

	return col
}

func newElement(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func insertAfter(ref, n *html.Node) {
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

func isColumn(n *html.Node) bool {
	return isElement(n, atom.Div) && hasClass(n, columnClass)
}

func isCardLink(n *html.Node) bool {
	return isElement(n, atom.A) && hasClass(n, cardLinkClass) && attr(n, "target") == "_blank"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects matching descendants of n in document order, n excluded.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}
