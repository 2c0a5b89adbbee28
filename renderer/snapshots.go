package renderer

import (
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/store"
	"github.com/shopspring/decimal"
)

type snapshotRow struct {
	Time   string
	Value  kasa.Money
	Prices []*decimal.Decimal
}

// Snapshots renders the recorded portfolio values, one column per asset.
func Snapshots(snaps []store.Snapshot) string {
	var rows []snapshotRow
	for _, s := range snaps {
		r := snapshotRow{Time: s.Time.Local().Format(time.DateTime), Value: kasa.TRY(s.TotalValue)}
		for _, id := range kasa.Assets() {
			if p, ok := s.Prices[id]; ok {
				r.Prices = append(r.Prices, &p)
			} else {
				r.Prices = append(r.Prices, nil)
			}
		}
		rows = append(rows, r)
	}
	return renderTemplate("snapshots", snapshotsTemplate, struct {
		Assets []kasa.AssetID
		Rows   []snapshotRow
	}{kasa.Assets(), rows})
}

const snapshotsTemplate = `# History

| Time | Value |{{ range .Assets }} {{ . }} |{{ end }}
|:---|---:|{{ range .Assets }}---:|{{ end }}
{{- range .Rows }}
| {{ .Time }} | {{ money .Value }} |{{ range .Prices }} {{ price . }} |{{ end }}
{{- end }}
`

type historyRow struct {
	Time   string
	Price  *decimal.Decimal
	Source string
	State  string
}

// History renders the price history of one asset, as returned by the store.
func History(id kasa.AssetID, prices []store.Price) string {
	var rows []historyRow
	for _, p := range prices {
		r := historyRow{Time: p.Time.Local().Format(time.DateTime), Source: p.Source, State: "fresh"}
		if p.Mid.IsPositive() {
			r.Price = &p.Mid
		}
		if p.Stale {
			r.State = "stale"
			if p.Error != "" {
				r.State += " (" + p.Error + ")"
			}
		}
		rows = append(rows, r)
	}
	return renderTemplate("history", historyTemplate, struct {
		Name string
		Rows []historyRow
	}{id.Name(), rows})
}

const historyTemplate = `# {{ .Name }} Prices
{{ if not .Rows }}
No price recorded yet.
{{- else }}

| Time | Price | Source | State |
|:---|---:|:---|:---|
{{- range .Rows }}
| {{ .Time }} | {{ price .Price }} | {{ .Source }} | {{ cell .State }} |
{{- end }}
{{- end }}
`
