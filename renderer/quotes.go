package renderer

import (
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/store"
	"github.com/shopspring/decimal"
)

// QuoteLine is one line of a quotes report.
type QuoteLine struct {
	Asset  kasa.AssetID
	Quote  *kasa.Quote // nil when there is no price
	Source string
	Time   time.Time // zero for live quotes
	Stale  bool
	Error  string
}

// LinesFromBatch returns one line per tracked asset from a live batch.
func LinesFromBatch(batch kasa.QuoteBatch) []QuoteLine {
	var lines []QuoteLine
	for _, id := range kasa.Assets() {
		l := QuoteLine{Asset: id}
		if q, ok := batch.Quotes[id]; ok {
			l.Quote = &q
			l.Source = batch.Sources[id]
		}
		lines = append(lines, l)
	}
	return lines
}

// LinesFromPrices returns one line per tracked asset from stored prices.
// Placeholder rows count as no price.
func LinesFromPrices(prices map[kasa.AssetID]store.Price) []QuoteLine {
	var lines []QuoteLine
	for _, id := range kasa.Assets() {
		l := QuoteLine{Asset: id}
		if p, ok := prices[id]; ok {
			l.Time, l.Stale, l.Error = p.Time, p.Stale, p.Error
			if p.Mid.IsPositive() {
				q := p.Quote()
				l.Quote = &q
				l.Source = p.Source
			}
		}
		lines = append(lines, l)
	}
	return lines
}

// Batch returns the lines that have a price as a batch.
func Batch(lines []QuoteLine) kasa.QuoteBatch {
	b := kasa.NewQuoteBatch()
	for _, l := range lines {
		if l.Quote != nil {
			b.Set(l.Asset, *l.Quote, l.Source)
		}
	}
	return b
}

type quoteRow struct {
	Name                string
	Mid, Bid, Ask       *decimal.Decimal
	Source, Time, State string
}

// Quotes renders the quotes of every tracked asset.
func Quotes(lines []QuoteLine) string {
	var rows []quoteRow
	withTime := false
	for _, l := range lines {
		r := quoteRow{Name: l.Asset.Name(), Source: l.Source, State: "fresh"}
		if l.Quote != nil {
			r.Mid, r.Bid, r.Ask = &l.Quote.Mid, &l.Quote.Bid, &l.Quote.Ask
		} else {
			r.State = "missing"
		}
		if l.Stale && l.Quote != nil {
			r.State = "stale"
		}
		if l.Error != "" && r.State != "fresh" {
			r.State += " (" + l.Error + ")"
		}
		if !l.Time.IsZero() {
			r.Time = l.Time.Local().Format("2006-01-02 15:04")
			withTime = true
		}
		rows = append(rows, r)
	}
	return renderTemplate("quotes", quotesTemplate, struct {
		Rows     []quoteRow
		WithTime bool
		Currency string
	}{rows, withTime, kasa.Currency})
}

const quotesTemplate = `# Quotes ({{ .Currency }})

| Asset | Mid | Bid | Ask | Source |{{ if .WithTime }} Time |{{ end }} State |
|:---|---:|---:|---:|:---|{{ if .WithTime }}:---|{{ end }}:---|
{{- range .Rows }}
| {{ .Name }} | {{ price .Mid }} | {{ price .Bid }} | {{ price .Ask }} | {{ or .Source "-" }} |{{ if $.WithTime }} {{ or .Time "-" }} |{{ end }} {{ cell .State }} |
{{- end }}
`
