// Package longdesc validates a distribution's long description the way an
// index server will treat it: Markdown must render to HTML, and links in
// the rendered output should be absolute so they still work when the
// description is shown on the project page.
//
// reStructuredText descriptions pass through unvalidated; rendering them
// faithfully needs the index server's own pipeline.
package longdesc

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Severity of a description problem.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Problem is one finding about the long description.
type Problem struct {
	Severity string
	Message  string
}

// Result is the outcome of a description check.
type Result struct {
	Rendered bool // true when the description was rendered and inspected
	Problems []Problem
}

// Errors returns the error-severity problems.
func (r Result) Errors() []Problem {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity problems.
func (r Result) Warnings() []Problem {
	return r.filter(SeverityWarning)
}

func (r Result) filter(severity string) []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if p.Severity == severity {
			out = append(out, p)
		}
	}
	return out
}

func (r *Result) warnf(format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) errorf(format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

// Check inspects a long description and its declared content type.
func Check(description, contentType string) Result {
	var res Result

	if strings.TrimSpace(description) == "" {
		res.warnf("distribution has no long description; the project page will be empty")
		return res
	}

	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			res.errorf("invalid description content type %q", contentType)
			return res
		}
		mediaType = mt
	}

	switch mediaType {
	case "":
		// Index servers assume reST when no content type is declared.
		if looksLikeMarkdown(description) {
			res.warnf("description looks like Markdown but no content type is declared; the index will treat it as reStructuredText")
		}
	case "text/markdown":
		res.checkMarkdown(description)
	case "text/x-rst", "text/plain":
		// Nothing to validate locally.
	default:
		res.errorf("unsupported description content type %q", contentType)
	}

	return res
}

// checkMarkdown renders the description and flags relative links, which
// cannot resolve against an index project page.
func (r *Result) checkMarkdown(description string) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(description), &buf); err != nil {
		r.errorf("description failed to render as Markdown: %v", err)
		return
	}
	r.Rendered = true

	doc, err := html.Parse(&buf)
	if err != nil {
		r.errorf("rendered description is not parseable HTML: %v", err)
		return
	}

	for _, dest := range extractLinks(doc) {
		if isRelative(dest) {
			r.warnf("relative link %q will not resolve on the index project page", dest)
		}
	}
}

// extractLinks walks the document tree collecting a/href and img/src
// destinations in document order.
func extractLinks(doc *html.Node) []string {
	var dests []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := getAttr(n, "href"); href != "" {
					dests = append(dests, href)
				}
			case "img":
				if src := getAttr(n, "src"); src != "" {
					dests = append(dests, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return dests
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// isRelative reports whether a link destination would resolve against the
// page it is shown on. Fragment-only links stay within the page and pass.
func isRelative(dest string) bool {
	if strings.HasPrefix(dest, "#") {
		return false
	}
	u, err := url.Parse(dest)
	if err != nil {
		return true
	}
	return !u.IsAbs()
}

// looksLikeMarkdown is a cheap heuristic for undeclared content types.
func looksLikeMarkdown(description string) bool {
	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") || strings.HasPrefix(trimmed, "```") {
			return true
		}
	}
	return strings.Contains(description, "](")
}
