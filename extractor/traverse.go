package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// findFirst returns the first node under root, in depth-first document
// order, for which match reports true. root itself is considered.
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if match(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, match); found != nil {
			return found
		}
	}
	return nil
}

// closest walks up from n's parent and returns the nearest ancestor
// accepted by match.
func closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if match(p) {
			return p
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	writeText(n, &b)
	return b.String()
}

func writeText(n *html.Node, b *strings.Builder) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, b)
	}
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClassMatching reports whether any class token of n matches re.
func hasClassMatching(n *html.Node, re *regexp.Regexp) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if re.MatchString(class) {
			return true
		}
	}
	return false
}
