package ocr

import (
	"encoding/json"
	"testing"
)

func TestMeanConfidence(t *testing.T) {
	words := []Word{
		{Text: "eins", Confidence: 0.8},
		{Text: "zwei", Confidence: 0.6},
		{Text: "drei", Confidence: 1.0},
	}
	got := meanConfidence(words)
	if diff := got - 0.8; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("mean confidence: got %v, want 0.8", got)
	}
}

func TestMeanConfidence_Empty(t *testing.T) {
	if got := meanConfidence(nil); got != 0 {
		t.Errorf("mean confidence of no words: got %v, want 0", got)
	}
}

func TestResult_JSONOmitsEmptyRegions(t *testing.T) {
	data, err := json.Marshal(&Result{Text: "hallo"})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"lines", "words"} {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		if _, present := m[key]; present {
			t.Errorf("empty %q must be omitted from JSON", key)
		}
	}
}
