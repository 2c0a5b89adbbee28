package frankfurter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := New(srv.Client())
	s.BaseURL = srv.URL
	return s
}

func TestFetch(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" || r.URL.Query().Get("to") != "TRY" {
			t.Errorf("unexpected request %s", r.URL)
		}
		switch r.URL.Query().Get("from") {
		case "USD":
			w.Write([]byte(`{"amount":1.0,"base":"USD","date":"2025-05-09","rates":{"TRY":38.71}}`))
		case "EUR":
			w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2025-05-09","rates":{"TRY":43.55}}`))
		default:
			http.NotFound(w, r)
		}
	})

	got, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.USD, kasa.EUR, kasa.XAU})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Fetch() returned %d quotes, want 2", len(got))
	}
	if want := decimal.RequireFromString("38.71"); !got[kasa.USD].Mid.Equal(want) {
		t.Errorf("USDTRY = %s, want %s", got[kasa.USD].Mid, want)
	}
	if q := got[kasa.EUR]; !q.Bid.Equal(q.Mid) || !q.Ask.Equal(q.Mid) {
		t.Errorf("EURTRY = %+v, want bid = ask = mid", q)
	}
}

func TestFetchUnsupported(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL)
	})
	got, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.XAG})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Fetch() = %v, want empty", got)
	}
}

func TestFetchFailsAtomically(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "EUR" {
			w.Write([]byte(`{"rates":`))
			return
		}
		w.Write([]byte(`{"amount":1.0,"rates":{"TRY":38.71}}`))
	})
	got, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.USD, kasa.EUR})
	if !errors.Is(err, kasa.ErrSourceUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrSourceUnavailable", err)
	}
	if got != nil {
		t.Errorf("Fetch() = %v, want nil on failure", got)
	}
}
