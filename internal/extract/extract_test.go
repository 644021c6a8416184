package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/docuflat/docuflat/internal/category"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(category.Default())
}

func TestExtract_InvoiceLine(t *testing.T) {
	data := newExtractor(t).Extract("Rechnung vom 15.03.2024 über 1.234,56 €")

	if len(data.Dates) != 1 || data.Dates[0] != "15.03.2024" {
		t.Errorf("dates: got %v, want [15.03.2024]", data.Dates)
	}
	if len(data.Amounts) != 1 || data.Amounts[0] != "1.234,56 €" {
		t.Errorf("amounts: got %v, want [1.234,56 €]", data.Amounts)
	}
}

func TestExtract_DateFormats(t *testing.T) {
	text := "Datum: 01.02.2024\nAlt: 05.06.23\nISO: 2024-03-15\nBrief vom 3. März 2024"

	data := newExtractor(t).Extract(text)

	want := map[string]bool{
		"01.02.2024":   false,
		"05.06.23":     false,
		"2024-03-15":   false,
		"3. März 2024": false,
	}
	for _, d := range data.Dates {
		if _, ok := want[d]; ok {
			want[d] = true
		}
	}
	for d, found := range want {
		if !found {
			t.Errorf("date %q not extracted (got %v)", d, data.Dates)
		}
	}
}

func TestExtract_AmountVariants(t *testing.T) {
	text := "Netto 100,00 EUR, Brutto 119,00 Euro, Summe 1.234,56"

	data := newExtractor(t).Extract(text)

	if len(data.Amounts) != 3 {
		t.Fatalf("amounts: got %v, want 3 entries", data.Amounts)
	}
	if data.Amounts[0] != "100,00 EUR" {
		t.Errorf("first amount: got %q, want %q", data.Amounts[0], "100,00 EUR")
	}
	if data.Amounts[2] != "1.234,56" {
		t.Errorf("bare amount: got %q, want %q", data.Amounts[2], "1.234,56")
	}
}

func TestExtract_Keywords(t *testing.T) {
	text := "Ihre Rechnung: Rechnungsnummer 4711. Der Betrag ist zahlbar bis 01.04.2024."

	data := newExtractor(t).Extract(text)

	if len(data.Keywords) == 0 {
		t.Fatal("expected keyword hits")
	}
	if data.Keywords[0].Category != "rechnung" {
		t.Errorf("top category: got %q, want rechnung", data.Keywords[0].Category)
	}
	if data.Keywords[0].Count < 3 {
		t.Errorf("rechnung hit count: got %d, want >= 3", data.Keywords[0].Count)
	}
	// Matched forms are distinct and lowercased.
	seen := make(map[string]bool)
	for _, m := range data.Keywords[0].Matches {
		if m != strings.ToLower(m) {
			t.Errorf("match %q not lowercased", m)
		}
		if seen[m] {
			t.Errorf("duplicate match %q", m)
		}
		seen[m] = true
	}
}

func TestExtract_KeywordsSortedByCount(t *testing.T) {
	// Three insurance keywords versus one banking keyword.
	text := "Versicherung Police Versicherungsschein und ein Kontoauszug"

	data := newExtractor(t).Extract(text)

	if len(data.Keywords) < 2 {
		t.Fatalf("expected hits for two categories, got %v", data.Keywords)
	}
	if data.Keywords[0].Category != "versicherung" {
		t.Errorf("top category: got %q, want versicherung", data.Keywords[0].Category)
	}
	for i := 1; i < len(data.Keywords); i++ {
		if data.Keywords[i].Count > data.Keywords[i-1].Count {
			t.Error("keywords not sorted by descending count")
		}
	}
}

func TestExtract_SenderLegalSuffix(t *testing.T) {
	text := "Musterfirma GmbH\nBeispielstraße 12\n12345 Berlin\n\nRechnung Nr. 100"

	data := newExtractor(t).Extract(text)

	if data.Sender != "Musterfirma GmbH" {
		t.Errorf("sender: got %q, want %q", data.Sender, "Musterfirma GmbH")
	}
}

func TestExtract_SenderSuffixBeatsNameLine(t *testing.T) {
	// The capitalized name line comes first, but the legal-entity pattern
	// has higher priority.
	text := "Max Mustermann\nStark Energie AG\nHauptstraße 1"

	data := newExtractor(t).Extract(text)

	if data.Sender != "Stark Energie AG" {
		t.Errorf("sender: got %q, want %q", data.Sender, "Stark Energie AG")
	}
}

func TestExtract_NoSender(t *testing.T) {
	data := newExtractor(t).Extract("nur kleinbuchstaben\n123456\nnoch mehr text")

	if data.Sender != "" {
		t.Errorf("sender: got %q, want empty", data.Sender)
	}
}

func TestExtract_Empty(t *testing.T) {
	data := newExtractor(t).Extract("")

	if len(data.Dates) != 0 || len(data.Amounts) != 0 || len(data.Keywords) != 0 || data.Sender != "" {
		t.Errorf("empty text should yield empty data: %+v", data)
	}
}

func TestBestDate_PrefersCloserWithinWindow(t *testing.T) {
	reference := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	// One candidate 10 days away, one 3 years away.
	got, ok := BestDate([]string{"15.03.2021", "15.03.2024"}, reference)

	if !ok {
		t.Fatal("expected a qualifying date")
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("best date: got %v, want %v", got, want)
	}
}

func TestBestDate_AllOutsideWindow(t *testing.T) {
	reference := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	if _, ok := BestDate([]string{"15.03.2019", "01.01.2030"}, reference); ok {
		t.Error("dates outside the 2-year window must be rejected")
	}
}

func TestBestDate_ShortYearPivot(t *testing.T) {
	reference := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	got, ok := BestDate([]string{"15.05.24"}, reference)

	if !ok {
		t.Fatal("expected a qualifying date")
	}
	if got.Year() != 2024 {
		t.Errorf("short year pivot: got %d, want 2024", got.Year())
	}
}

func TestBestDate_Unparseable(t *testing.T) {
	reference := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)

	if _, ok := BestDate([]string{"99.99.9999", "kein datum"}, reference); ok {
		t.Error("unparseable candidates must be ignored")
	}
}
