package renderer

import (
	"maps"
	"slices"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// Settings renders the settings sorted by key.
func Settings(settings map[string]string) string {
	keys := slices.Sorted(maps.Keys(settings))
	type kv struct{ Key, Value string }
	var rows []kv
	for _, k := range keys {
		rows = append(rows, kv{k, settings[k]})
	}
	return renderTemplate("settings", settingsTemplate, rows)
}

const settingsTemplate = `# Settings

| Key | Value |
|:---|:---|
{{- range . }}
| {{ .Key }} | {{ cell .Value }} |
{{- end }}
`

type manualRow struct {
	Name  string
	Price *decimal.Decimal
}

// ManualPrices renders the operator prices in asset order.
func ManualPrices(prices map[kasa.AssetID]decimal.Decimal) string {
	var rows []manualRow
	for _, id := range kasa.Assets() {
		if p, ok := prices[id]; ok {
			rows = append(rows, manualRow{id.Name(), &p})
		}
	}
	return renderTemplate("manual", manualTemplate, rows)
}

const manualTemplate = `# Manual Prices
{{ if not . }}
No manual price, every asset is priced by its sources.
{{- else }}

| Asset | Price |
|:---|---:|
{{- range . }}
| {{ .Name }} | {{ price .Price }} |
{{- end }}
{{- end }}
`
