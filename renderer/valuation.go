package renderer

import (
	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// ValuationOptions tunes the valuation report.
type ValuationOptions struct {
	// AlertThreshold, when set, adds an alert when the total PnL, realized
	// and unrealized, is at or below it.
	AlertThreshold *decimal.Decimal
}

type valuationView struct {
	kasa.Valuation
	Rows      []valuationRow
	TotalPnL  kasa.Money
	Alert     bool
	Threshold kasa.Money
}

type valuationRow struct {
	kasa.ValuationRow
	Name string
	Unit string
}

// Valuation renders the portfolio valued at current prices.
func Valuation(v kasa.Valuation, opts ValuationOptions) string {
	view := valuationView{Valuation: v, TotalPnL: v.TotalRealized.Add(v.TotalUnrealized)}
	for _, r := range v.Rows {
		info, _ := r.Asset.Info()
		view.Rows = append(view.Rows, valuationRow{ValuationRow: r, Name: info.Name, Unit: info.Unit})
	}
	if opts.AlertThreshold != nil {
		view.Threshold = kasa.TRY(*opts.AlertThreshold)
		view.Alert = !view.TotalPnL.GreaterThan(view.Threshold)
	}
	return renderTemplate("valuation", valuationTemplate, view)
}

const valuationTemplate = `# Portfolio

| Asset | Quantity | Avg. Cost | Price | Source | Market Value | Unrealized | % | Realized |
|:---|---:|---:|---:|:---|---:|---:|---:|---:|
{{- range .Rows }}
| {{ .Name }} | {{ quantity .Quantity }} {{ .Unit }} | {{ money .AverageCost }} | {{ price .CurrentPrice }} | {{ or .Source "-" }} | {{ money .MarketValue }} | {{ signed .UnrealizedPnL }} | {{ percent .UnrealizedPnLPct }} | {{ signed .RealizedPnL }} |
{{- end }}
| **Total** | | | | | **{{ money .TotalValue }}** | **{{ signed .TotalUnrealized }}** | | **{{ signed .TotalRealized }}** |

Total PnL: {{ signed .TotalPnL }}
{{- if .Alert }}

> **PnL alert**: total PnL {{ signed .TotalPnL }} is at or below the {{ money .Threshold }} threshold.
{{- end }}
`
