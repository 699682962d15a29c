// Package parser holds the free-text field parsers used by the extractor.
// Each function takes plain text and reports whether it matched, so the
// patterns can be tested without any HTML.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aluiziolira/bookcraw/models"
)

var (
	pubDatePattern = regexp.MustCompile(`出版日期：(\d{4}-\d{2}-\d{2})`)
	pricePattern   = regexp.MustCompile(`(\d+)\s*折\s*(\d+)\s*元`)
)

// ValidateBook ensures the record carries a title and an absolute URL.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	u, err := url.Parse(b.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("book missing absolute url for %s", b.Title)
	}
	return nil
}

// ParsePubDate finds the "出版日期：YYYY-MM-DD" label in text.
func ParsePubDate(text string) (string, bool) {
	m := pubDatePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParsePrice finds a "<discount>折 <amount>元" pair in text and returns it
// in canonical spacing.
func ParsePrice(text string) (string, bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1] + "折 " + m[2] + "元", true
}

// ResolveURL makes href absolute against origin. Links that already carry a
// scheme are returned unchanged.
func ResolveURL(origin, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		if ref.Host == "" {
			return "", false
		}
		return href, true
	}
	base, err := url.Parse(origin)
	if err != nil || !base.IsAbs() {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// NormalizeImageURL upgrades protocol-relative image sources to https.
func NormalizeImageURL(src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}
