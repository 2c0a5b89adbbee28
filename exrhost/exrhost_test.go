package exrhost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

func newSource(t *testing.T, body string) (*Source, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	s := New(srv.Client(), "")
	s.BaseURL = srv.URL
	return s, &queries
}

func TestFetchInvertsRates(t *testing.T) {
	s, queries := newSource(t, `{"success":true,"base":"TRY","rates":{"USD":0.025,"EUR":0.02}}`)

	got, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.USD, kasa.EUR})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(*queries) != 1 {
		t.Errorf("Fetch() made %d requests, want 1", len(*queries))
	}
	tests := []struct {
		id   kasa.AssetID
		want string
	}{
		{kasa.USD, "40"},
		{kasa.EUR, "50"},
	}
	for _, tt := range tests {
		want := decimal.RequireFromString(tt.want)
		if q, ok := got[tt.id]; !ok || !q.Mid.Equal(want) {
			t.Errorf("Fetch()[%s] = %v, want %s", tt.id, q.Mid, want)
		}
	}
}

func TestFetchMissingSymbol(t *testing.T) {
	s, _ := newSource(t, `{"rates":{"USD":0.025}}`)
	got, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.USD, kasa.EUR})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if _, ok := got[kasa.EUR]; ok {
		t.Errorf("Fetch() returned EURTRY, want it absent")
	}
	if _, ok := got[kasa.USD]; !ok {
		t.Errorf("Fetch() did not return USDTRY")
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"refused", `{"success":false,"error":{"code":101,"type":"missing_access_key"}}`},
		{"zero rate", `{"rates":{"USD":0}}`},
		{"malformed", `<html>`},
		{"no rates", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSource(t, tt.body)
			_, err := s.Fetch(context.Background(), []kasa.AssetID{kasa.USD})
			if !errors.Is(err, kasa.ErrSourceUnavailable) {
				t.Errorf("Fetch() error = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}
