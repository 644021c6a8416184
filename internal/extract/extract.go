// Package extract scans recognized document text for structured data: dates,
// currency amounts, category keyword hits and the sender name.
//
// Extraction is a pure function of the input text - deterministic, no I/O.
// Absence of any field is an empty slice or empty string, never an error.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docuflat/docuflat/internal/category"
)

// KeywordHit records how often a category's indicator keywords appeared.
type KeywordHit struct {
	// Category is the category id from the registry.
	Category string `json:"category"`

	// Count is the total number of keyword occurrences.
	Count int `json:"count"`

	// Matches lists the distinct lowercased matched forms.
	Matches []string `json:"matches"`
}

// StructuredData is the read-only result of one extraction pass.
type StructuredData struct {
	// Dates holds all raw date strings found, in order of the pattern
	// priority then position. Duplicates are allowed; the consumer picks
	// the best candidate (see BestDate).
	Dates []string `json:"dates"`

	// Amounts holds all raw German-formatted currency amounts in order of
	// appearance.
	Amounts []string `json:"amounts"`

	// Keywords holds per-category keyword hits, sorted by descending
	// count.
	Keywords []KeywordHit `json:"keywords"`

	// Sender is the detected sender/company name, empty if none found.
	Sender string `json:"sender,omitempty"`
}

// Date patterns in priority order: numeric German, short-year German,
// ISO, written German month.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`),
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{2}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\.\s?(?:Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s\d{4}\b`),
}

// amountPattern matches German-formatted currency: thousands separated by
// periods, decimal comma, optionally followed by a currency marker.
var amountPattern = regexp.MustCompile(`(?i)\b\d{1,3}(?:\.\d{3})*,\d{2}(?:\s?(?:€|Euro|EUR))?`)

// Sender patterns in priority order: a company line ending in a legal-entity
// suffix beats a generic capitalized name line.
var senderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-ZÄÖÜ][\pL\d&.,\- ]+\s(?:GmbH\s*&\s*Co\.?\s*KG|GmbH|AG|KG|UG|OHG|e\.V\.)\.?$`),
	regexp.MustCompile(`^[A-ZÄÖÜ][a-zäöüß]+(?:\s[A-ZÄÖÜ][a-zäöüß]+)+$`),
}

// senderScanLines bounds the sender search to the letterhead region.
const senderScanLines = 8

// Extractor scans text against the configured category registry.
// Extractors are stateless and safe for concurrent use.
type Extractor struct {
	registry *category.Registry
}

// NewExtractor creates an Extractor bound to a category registry.
func NewExtractor(registry *category.Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract scans text and returns all structured data found.
func (e *Extractor) Extract(text string) *StructuredData {
	return &StructuredData{
		Dates:    extractDates(text),
		Amounts:  amountPattern.FindAllString(text, -1),
		Keywords: e.extractKeywords(text),
		Sender:   extractSender(text),
	}
}

func extractDates(text string) []string {
	var dates []string
	for _, pattern := range datePatterns {
		dates = append(dates, pattern.FindAllString(text, -1)...)
	}
	return dates
}

// extractKeywords counts indicator-keyword occurrences per category and
// sorts categories by descending hit count. Categories without hits are
// omitted.
func (e *Extractor) extractKeywords(text string) []KeywordHit {
	var hits []KeywordHit
	for _, c := range e.registry.All() {
		pattern := e.registry.Pattern(c.ID)
		if pattern == nil {
			continue
		}

		matches := pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}

		seen := make(map[string]bool)
		var distinct []string
		for _, m := range matches {
			lower := strings.ToLower(m)
			if !seen[lower] {
				seen[lower] = true
				distinct = append(distinct, lower)
			}
		}

		hits = append(hits, KeywordHit{
			Category: c.ID,
			Count:    len(matches),
			Matches:  distinct,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Count > hits[j].Count
	})
	return hits
}

// extractSender looks for a company-name-like line near the top of the
// document. Patterns are tried in priority order over the first non-trivial
// lines; the first match of the highest-priority pattern wins.
func extractSender(text string) string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 4 {
			continue
		}
		candidates = append(candidates, trimmed)
		if len(candidates) == senderScanLines {
			break
		}
	}

	for _, pattern := range senderPatterns {
		for _, line := range candidates {
			if pattern.MatchString(line) {
				return line
			}
		}
	}
	return ""
}
