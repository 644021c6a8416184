// Package category provides the authoritative registry of document
// categories and their indicator keywords.
//
// Both the structured-data extractor and the classifier consume this one
// registry, so the category set and keyword tables cannot drift apart. The
// set is externally configurable; nothing elsewhere in the pipeline hardcodes
// a category id into control flow.
package category

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Category describes one document category.
type Category struct {
	// ID is the stable identifier referenced by classification results
	// and folder routing.
	ID string `json:"id"`

	// Label is the human-readable display name.
	Label string `json:"label"`

	// Folder is the export folder path for documents of this category.
	Folder string `json:"folder"`

	// Strong keywords score 3 points per occurrence in the classifier.
	Strong []string `json:"strong"`

	// Medium keywords score 1 point per occurrence.
	Medium []string `json:"medium"`

	// AmountBonus marks invoice-like categories that receive a fixed
	// score bonus when a currency amount was extracted.
	AmountBonus bool `json:"amount_bonus,omitempty"`

	// MLLabel is the natural-language label phrase submitted to the
	// zero-shot classification backend for this category.
	MLLabel string `json:"ml_label"`
}

// Registry is an ordered, immutable set of categories.
//
// Order matters: the classifier breaks exact score ties by first-seen
// insertion order, so the registry preserves configuration order.
type Registry struct {
	categories []Category
	byID       map[string]*Category
	patterns   map[string]*regexp.Regexp
}

// CatchAllID is the id of the fallback category every registry must contain.
const CatchAllID = "sonstiges"

// New builds a Registry from an ordered category list.
//
// Every category needs a unique non-empty id, and the list must include the
// catch-all category so classification always has an arg-max candidate.
func New(categories []Category) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories configured")
	}

	r := &Registry{
		categories: make([]Category, len(categories)),
		byID:       make(map[string]*Category, len(categories)),
		patterns:   make(map[string]*regexp.Regexp, len(categories)),
	}
	copy(r.categories, categories)

	for i := range r.categories {
		c := &r.categories[i]
		if c.ID == "" {
			return nil, fmt.Errorf("category %d has empty id", i)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		r.byID[c.ID] = c

		if pattern := keywordPattern(c); pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("category %q keyword pattern: %w", c.ID, err)
			}
			r.patterns[c.ID] = re
		}
	}

	if _, ok := r.byID[CatchAllID]; !ok {
		return nil, fmt.Errorf("registry must contain the catch-all category %q", CatchAllID)
	}
	return r, nil
}

// Load reads a registry from a JSON file containing an ordered category
// array.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category config: %w", err)
	}
	var categories []Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse category config: %w", err)
	}
	return New(categories)
}

// All returns the categories in configuration order.
func (r *Registry) All() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Get looks up a category by id.
func (r *Registry) Get(id string) (Category, bool) {
	c, ok := r.byID[id]
	if !ok {
		return Category{}, false
	}
	return *c, true
}

// Pattern returns the compiled keyword-matching regexp for a category, or
// nil when the category has no keywords.
func (r *Registry) Pattern(id string) *regexp.Regexp {
	return r.patterns[id]
}

// MLLabels returns the map from zero-shot label phrase to category id.
//
// A map, not parallel slices: positional correspondence between label lists
// and id lists is a latent lockstep hazard, so the mapping is explicit.
func (r *Registry) MLLabels() map[string]string {
	out := make(map[string]string, len(r.categories))
	for _, c := range r.categories {
		if c.MLLabel != "" {
			out[c.MLLabel] = c.ID
		}
	}
	return out
}

// keywordPattern builds one case-insensitive alternation over all of a
// category's keywords, longest first so longer terms win overlaps.
func keywordPattern(c *Category) string {
	keywords := make([]string, 0, len(c.Strong)+len(c.Medium))
	keywords = append(keywords, c.Strong...)
	keywords = append(keywords, c.Medium...)
	if len(keywords) == 0 {
		return ""
	}

	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(k))
	}
	sort.SliceStable(quoted, func(i, j int) bool {
		return len(quoted[i]) > len(quoted[j])
	})
	return "(?i)(" + strings.Join(quoted, "|") + ")"
}

// Default returns the built-in German document taxonomy used when no
// external configuration is supplied.
func Default() *Registry {
	r, err := New([]Category{
		{
			ID: "rechnung", Label: "Rechnung", Folder: "Dokumente/Rechnungen",
			Strong:      []string{"rechnung", "invoice", "rechnungsnummer", "rechnungsbetrag"},
			Medium:      []string{"betrag", "zahlbar", "fällig", "netto", "brutto", "mwst", "ust"},
			AmountBonus: true,
			MLLabel:     "eine Rechnung mit Zahlungsaufforderung",
		},
		{
			ID: "quittung", Label: "Quittung", Folder: "Dokumente/Quittungen",
			Strong:      []string{"quittung", "kassenbon", "beleg", "bon"},
			Medium:      []string{"summe", "bar", "rückgeld", "gegeben"},
			AmountBonus: true,
			MLLabel:     "ein Kassenbeleg oder eine Quittung",
		},
		{
			ID: "vertrag", Label: "Vertrag", Folder: "Dokumente/Verträge",
			Strong:  []string{"vertrag", "vereinbarung", "vertragspartner"},
			Medium:  []string{"kündigung", "laufzeit", "unterschrift", "vertragsbeginn", "klausel"},
			MLLabel: "ein Vertrag oder eine Vereinbarung",
		},
		{
			ID: "versicherung", Label: "Versicherung", Folder: "Dokumente/Versicherungen",
			Strong:  []string{"versicherung", "versicherungsschein", "police"},
			Medium:  []string{"beitrag", "versichert", "schadensfall", "deckung", "tarif"},
			MLLabel: "ein Versicherungsdokument",
		},
		{
			ID: "steuer", Label: "Steuer", Folder: "Dokumente/Steuern",
			Strong:  []string{"finanzamt", "steuerbescheid", "steuererklärung", "steuernummer"},
			Medium:  []string{"steuer", "einkommensteuer", "umsatzsteuer", "bescheid"},
			MLLabel: "ein Steuerdokument vom Finanzamt",
		},
		{
			ID: "bank", Label: "Bank", Folder: "Dokumente/Bank",
			Strong:  []string{"kontoauszug", "überweisung", "iban", "lastschrift"},
			Medium:  []string{"konto", "bank", "buchung", "saldo", "gutschrift"},
			MLLabel: "ein Bankdokument oder Kontoauszug",
		},
		{
			ID: "gesundheit", Label: "Gesundheit", Folder: "Dokumente/Gesundheit",
			Strong:  []string{"arzt", "rezept", "diagnose", "krankenkasse"},
			Medium:  []string{"patient", "behandlung", "medikament", "praxis", "termin"},
			MLLabel: "ein medizinisches Dokument",
		},
		{
			ID: CatchAllID, Label: "Sonstiges", Folder: "Dokumente/Sonstiges",
			MLLabel: "ein sonstiges Dokument",
		},
	})
	if err != nil {
		// The built-in table is validated by tests; reaching this means a
		// programming error, not a runtime condition.
		panic(err)
	}
	return r
}
