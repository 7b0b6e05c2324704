package scraper

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion
const MaxHTMLSize = 10 * 1024 * 1024

var (
	pricePattern   = regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\$\s?\d+(?:\.\d{1,2})?`)
	leadingNumber  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	leadingDollars = regexp.MustCompile(`^\s*\$?\s*(\d[\d,]*(?:\.\d+)?)`)
)

// ValidateHTML checks HTML size and returns error if empty or too large
func ValidateHTML(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(data) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// DetectCharset detects and returns charset from HTML bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// DecodeHTML returns a UTF-8 reader. Valid UTF-8 passes through untouched;
// otherwise the Content-Type charset wins, then detection.
func DecodeHTML(data []byte, contentType string) io.Reader {
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}

	if contentType != "" {
		if r, err := charset.NewReader(bytes.NewReader(data), contentType); err == nil {
			return r
		}
	}

	if enc, _ := charset.Lookup(DetectCharset(data)); enc != nil {
		return enc.NewDecoder().Reader(bytes.NewReader(data))
	}
	return bytes.NewReader(data)
}

// LoadDocument parses HTML bytes with charset handling
func LoadDocument(data []byte, contentType string) (*goquery.Document, error) {
	if err := ValidateHTML(data); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(DecodeHTML(data, contentType))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// StructurePolicy keeps the markup a selector needs (tags, classes, ids,
// data attributes, links) and drops scripts, styles, and event handlers
func StructurePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"div", "span", "section", "article", "main", "aside", "header", "footer", "nav",
		"ul", "ol", "li", "dl", "dt", "dd", "table", "thead", "tbody", "tr", "td", "th",
		"h1", "h2", "h3", "h4", "h5", "h6", "p", "a", "img", "picture", "figure", "figcaption",
		"strong", "b", "em", "i", "small", "s", "del", "ins", "sup", "sub", "br", "time",
		"button", "label", "form", "meta",
	)
	p.AllowAttrs("class", "id", "role", "title", "itemprop", "itemtype", "itemscope",
		"aria-label", "datetime", "content").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "srcset").OnElements("img")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(true)
	return p
}

// NormalizeWhitespace collapses multiple spaces into one
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateText truncates text to at most maxLen bytes without splitting a rune
func TruncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Deduplicate removes duplicate strings while preserving order
func Deduplicate(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// FindPrices returns dollar amounts in order of appearance
func FindPrices(text string) []string {
	return pricePattern.FindAllString(text, -1)
}

// ParsePrice reads the leading "$1,234.56" style amount
func ParsePrice(s string) (float64, bool) {
	m := leadingDollars.FindStringSubmatch(s)
	if m == nil {
		// Currency symbol may follow other text, e.g. "Now $12.99"
		if loc := pricePattern.FindString(s); loc != "" {
			m = leadingDollars.FindStringSubmatch(loc)
		}
	}
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLeadingFloat reads the first number in s, e.g. "4.5 out of 5"
func ParseLeadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ResolveURL makes href absolute against base; unparseable input is returned as is
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
