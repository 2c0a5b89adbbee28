package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/store"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// tableRows parses md and returns the plain text cells of every table row,
// header included.
func tableRows(t *testing.T, md string) [][]string {
	t.Helper()
	src := []byte(md)
	doc := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader(src))
	var rows [][]string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() == east.KindTableHeader || n.Kind() == east.KindTableRow {
			var cells []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, plain(c, src))
			}
			rows = append(rows, cells)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		t.Fatalf("cannot walk markdown: %v", err)
	}
	return rows
}

func plain(n ast.Node, src []byte) string {
	var b strings.Builder
	ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
		case *ast.String:
			b.Write(n.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func find(rows [][]string, first string) []string {
	for _, r := range rows {
		if len(r) > 0 && r[0] == first {
			return r
		}
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var day = time.Date(2025, 5, 9, 10, 0, 0, 0, time.UTC)

func valuation(t *testing.T, price string) kasa.Valuation {
	t.Helper()
	states, err := kasa.Replay([]kasa.Transaction{
		kasa.NewBuy(day, kasa.XAU, kasa.Q(10), kasa.TRY(3000), kasa.TRY(0), ""),
	})
	if err != nil {
		t.Fatalf("Replay() unexpected error: %v", err)
	}
	batch := kasa.NewQuoteBatch()
	batch.Set(kasa.XAU, kasa.NewQuote(dec(price)), "kapalicarsi")
	return kasa.Valuate(states, batch)
}

func TestValuation(t *testing.T) {
	md := Valuation(valuation(t, "3100"), ValuationOptions{})

	rows := tableRows(t, md)
	// header, one row per asset, total
	if got, want := len(rows), len(kasa.Assets())+2; got != want {
		t.Fatalf("Valuation() has %d table rows, want %d:\n%s", got, want, md)
	}
	gold := find(rows, "Gram Gold")
	if gold == nil {
		t.Fatalf("Valuation() has no gold row:\n%s", md)
	}
	want := []string{
		"Gram Gold",
		"10 g",
		kasa.TRY(3000).String(),
		"3100.0000",
		"kapalicarsi",
		kasa.TRY(31000).String(),
		"+" + kasa.TRY(1000).String(),
		"+3.33%",
		"-",
	}
	for i := range want {
		if gold[i] != want[i] {
			t.Errorf("gold column %d = %q, want %q", i, gold[i], want[i])
		}
	}
	silver := find(rows, "Gram Silver")
	if silver == nil || silver[3] != "-" || silver[4] != "-" {
		t.Errorf("unpriced silver row = %q, want missing price and source", silver)
	}
	total := find(rows, "Total")
	if total == nil || total[5] != kasa.TRY(31000).String() {
		t.Errorf("total row = %q, want value %s", total, kasa.TRY(31000))
	}
	if strings.Contains(md, "PnL alert") {
		t.Errorf("Valuation() without threshold has an alert:\n%s", md)
	}
}

func TestValuationAlert(t *testing.T) {
	threshold := dec("-5000")
	tests := []struct {
		price string
		alert bool
	}{
		{"3100", false},
		{"2600", false}, // -4000
		{"2500", true},  // exactly at the threshold
		{"2000", true},  // -10000
	}
	for _, tt := range tests {
		md := Valuation(valuation(t, tt.price), ValuationOptions{AlertThreshold: &threshold})
		if got := strings.Contains(md, "PnL alert"); got != tt.alert {
			t.Errorf("Valuation() at %s alert = %v, want %v:\n%s", tt.price, got, tt.alert, md)
		}
	}
}

func TestQuotesFromBatch(t *testing.T) {
	batch := kasa.NewQuoteBatch()
	batch.Set(kasa.XAU, kasa.NewSpreadQuote(dec("4100"), dec("4120")), "kapalicarsi")
	batch.Set(kasa.USD, kasa.NewQuote(dec("38.71")), "frankfurter")

	lines := LinesFromBatch(batch)
	if len(lines) != len(kasa.Assets()) {
		t.Fatalf("LinesFromBatch() = %d lines, want %d", len(lines), len(kasa.Assets()))
	}
	md := Quotes(lines)
	rows := tableRows(t, md)
	if got, want := len(rows), len(kasa.Assets())+1; got != want {
		t.Fatalf("Quotes() has %d table rows, want %d:\n%s", got, want, md)
	}
	if len(rows[0]) != 6 {
		t.Errorf("live quotes header = %q, want no time column", rows[0])
	}
	gold := find(rows, "Gram Gold")
	if want := []string{"Gram Gold", "4110.0000", "4100.0000", "4120.0000", "kapalicarsi", "fresh"}; strings.Join(gold, ",") != strings.Join(want, ",") {
		t.Errorf("gold row = %q, want %q", gold, want)
	}
	if copper := find(rows, "Copper"); copper == nil || copper[5] != "missing" {
		t.Errorf("copper row = %q, want missing", copper)
	}

	got := Batch(lines)
	if got.Len() != 2 || got.Sources[kasa.USD] != "frankfurter" {
		t.Errorf("Batch() = %+v, want the two priced lines", got)
	}
}

func TestQuotesFromPrices(t *testing.T) {
	stale := store.NewPrice(day, kasa.XAG, kasa.NewQuote(dec("41.5")), "metals.dev")
	stale.Stale, stale.Error = true, "provider_unavailable"
	prices := map[kasa.AssetID]store.Price{
		kasa.XAU: store.NewPrice(day, kasa.XAU, kasa.NewQuote(dec("4110")), "kapalicarsi"),
		kasa.XAG: stale,
		kasa.XCU: {Time: day, Asset: kasa.XCU, Source: store.NoSource, Stale: true, Error: "no_data_yet"},
	}

	lines := LinesFromPrices(prices)
	md := Quotes(lines)
	rows := tableRows(t, md)
	if len(rows[0]) != 7 {
		t.Fatalf("stored quotes header = %q, want a time column", rows[0])
	}
	if silver := find(rows, "Gram Silver"); silver == nil || silver[6] != "stale (provider_unavailable)" {
		t.Errorf("silver row = %q, want stale", silver)
	}
	if copper := find(rows, "Copper"); copper == nil || copper[1] != "-" || copper[6] != "missing (no_data_yet)" {
		t.Errorf("copper row = %q, want placeholder as missing", copper)
	}
	if usd := find(rows, "USD/TRY"); usd == nil || usd[5] != "-" {
		t.Errorf("usd row = %q, want no time", usd)
	}
	if b := Batch(lines); b.Len() != 2 {
		t.Errorf("Batch() has %d quotes, want 2", b.Len())
	}
}

func TestTransaction(t *testing.T) {
	tests := []struct {
		tx   kasa.Transaction
		want string
	}{
		{
			kasa.NewBuy(day, kasa.XAU, kasa.Q(10), kasa.TRY(3000), kasa.TRY(0), ""),
			"Bought 10 g of Gram Gold at " + kasa.TRY(3000).String(),
		},
		{
			kasa.NewSell(day, kasa.USD, kasa.Q(250.5), kasa.TRY(38.5), kasa.TRY(12), ""),
			"Sold 250.5 USD of USD/TRY at " + kasa.TRY(38.5).String() + " (fee " + kasa.TRY(12).String() + ")",
		},
	}
	for _, tt := range tests {
		if got := Transaction(tt.tx); got != tt.want {
			t.Errorf("Transaction() = %q, want %q", got, tt.want)
		}
	}
}

func TestTransactions(t *testing.T) {
	if md := Transactions(nil); !strings.Contains(md, "No transactions.") {
		t.Errorf("Transactions(nil) = %q, want an empty notice", md)
	}

	txs := []kasa.Transaction{
		kasa.NewSell(day.AddDate(0, 0, 1), kasa.XAU, kasa.Q(2), kasa.TRY(3200), kasa.TRY(10), "partial | exit"),
		kasa.NewBuy(day, kasa.XAU, kasa.Q(10), kasa.TRY(3000), kasa.TRY(50), "first"),
	}
	rows := tableRows(t, Transactions(txs))
	if len(rows) != 3 {
		t.Fatalf("Transactions() has %d table rows, want 3", len(rows))
	}
	if rows[1][2] != "BUY" || rows[2][2] != "SELL" {
		t.Errorf("Transactions() sides = %q, %q, want time order", rows[1][2], rows[2][2])
	}
	if len(rows[2]) != 9 {
		t.Errorf("sell row has %d cells, want 9: %q", len(rows[2]), rows[2])
	}
	if got, want := rows[1][7], kasa.TRY(30050).String(); got != want {
		t.Errorf("buy total = %q, want %q", got, want)
	}
	if got, want := rows[2][7], kasa.TRY(6390).String(); got != want {
		t.Errorf("sell total = %q, want %q", got, want)
	}
}

func TestSnapshots(t *testing.T) {
	snaps := []store.Snapshot{
		{Time: day, TotalValue: dec("41100"), Prices: map[kasa.AssetID]decimal.Decimal{kasa.XAU: dec("4110")}},
	}
	rows := tableRows(t, Snapshots(snaps))
	if len(rows) != 2 {
		t.Fatalf("Snapshots() has %d rows, want 2", len(rows))
	}
	if got, want := len(rows[0]), 2+len(kasa.Assets()); got != want {
		t.Errorf("Snapshots() header has %d columns, want %d", got, want)
	}
	if rows[1][2] != "4110.0000" || rows[1][3] != "-" {
		t.Errorf("Snapshots() row = %q, want gold priced and silver missing", rows[1])
	}
}

func TestSettings(t *testing.T) {
	rows := tableRows(t, Settings(map[string]string{"fx_primary": "frankfurter", "cost_method": "WAVG"}))
	if len(rows) != 3 || rows[1][0] != "cost_method" || rows[2][0] != "fx_primary" {
		t.Errorf("Settings() rows = %q, want sorted keys", rows)
	}
}

func TestHistory(t *testing.T) {
	fresh := store.NewPrice(day, kasa.XAU, kasa.NewQuote(dec("4110")), "kapalicarsi")
	stale := fresh
	stale.Time, stale.Stale, stale.Error = day.Add(time.Hour), true, "provider_unavailable"

	rows := tableRows(t, History(kasa.XAU, []store.Price{stale, fresh}))
	if len(rows) != 3 {
		t.Fatalf("History() has %d rows, want 3", len(rows))
	}
	if rows[1][3] != "stale (provider_unavailable)" || rows[2][3] != "fresh" {
		t.Errorf("History() states = %q, %q", rows[1][3], rows[2][3])
	}
	if md := History(kasa.XAG, nil); !strings.Contains(md, "No price recorded yet.") {
		t.Errorf("History(nil) = %q, want an empty notice", md)
	}
}

func TestManualPrices(t *testing.T) {
	rows := tableRows(t, ManualPrices(map[kasa.AssetID]decimal.Decimal{kasa.XCU: dec("0.42"), kasa.XAU: dec("4100")}))
	if len(rows) != 3 || rows[1][0] != "Gram Gold" || rows[2][1] != "0.4200" {
		t.Errorf("ManualPrices() rows = %q, want asset order", rows)
	}
	if md := ManualPrices(nil); strings.Contains(md, "|") {
		t.Errorf("ManualPrices(nil) = %q, want no table", md)
	}
}
