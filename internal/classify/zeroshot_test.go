package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPBackend_Classify(t *testing.T) {
	var gotAuth string
	var gotReq zeroShotRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(zeroShotResponse{
			Labels: []string{"eine Rechnung", "ein Vertrag"},
			Scores: []float64{0.9, 0.1},
		})
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "secret", server.Client(), nil)
	ranked, err := backend.Classify(context.Background(), "Rechnung Nr. 1", []string{"eine Rechnung", "ein Vertrag"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("authorization header: got %q", gotAuth)
	}
	if gotReq.Inputs != "Rechnung Nr. 1" || len(gotReq.Parameters.CandidateLabels) != 2 {
		t.Errorf("request body: %+v", gotReq)
	}
	if len(ranked) != 2 || ranked[0].Label != "eine Rechnung" || ranked[0].Score != 0.9 {
		t.Errorf("ranked: %+v", ranked)
	}
}

func TestHTTPBackend_EmptyURLUnavailable(t *testing.T) {
	backend := NewHTTPBackend("", "", nil, nil)

	_, err := backend.Classify(context.Background(), "text", []string{"label"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestHTTPBackend_ServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "", server.Client(), nil)
	_, err := backend.Classify(context.Background(), "text", []string{"label"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestHTTPBackend_BadStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "", server.Client(), nil)
	_, err := backend.Classify(context.Background(), "text", []string{"label"})
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want a non-unavailable error", err)
	}
}

func TestHTTPBackend_WarmupReachable(t *testing.T) {
	// A rejected method still proves the endpoint is up.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "", server.Client(), nil)
	if err := backend.Warmup(context.Background()); err != nil {
		t.Errorf("Warmup: %v", err)
	}
}

func TestHTTPBackend_WarmupEmptyURL(t *testing.T) {
	backend := NewHTTPBackend("", "", nil, nil)
	if err := backend.Warmup(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestHTTPBackend_WarmupUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	backend := NewHTTPBackend(url, "", nil, nil)
	if err := backend.Warmup(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestHTTPBackend_MismatchedArrays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(zeroShotResponse{
			Labels: []string{"a", "b"},
			Scores: []float64{0.5},
		})
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, "", server.Client(), nil)
	if _, err := backend.Classify(context.Background(), "text", []string{"a", "b"}); err == nil {
		t.Error("mismatched label/score arrays must be an error")
	}
}
