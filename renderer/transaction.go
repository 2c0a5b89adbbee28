package renderer

import (
	"fmt"
	"time"

	"github.com/etnz/kasa"
)

// Transaction renders a transaction to a one line sentence.
func Transaction(tx kasa.Transaction) string {
	info, _ := tx.Asset.Info()
	verb := "Bought"
	if tx.Side == kasa.Sell {
		verb = "Sold"
	}
	s := fmt.Sprintf("%s %s %s of %s at %s", verb, quantity(tx.Quantity), info.Unit, tx.Asset.Name(), money(tx.UnitPrice))
	if !tx.Fee.IsZero() {
		s += fmt.Sprintf(" (fee %s)", money(tx.Fee))
	}
	return s
}

type transactionRow struct {
	kasa.Transaction
	Date  string
	Short string
	Total kasa.Money
}

// Transactions renders the ledger in time order.
func Transactions(txs []kasa.Transaction) string {
	var rows []transactionRow
	for _, tx := range kasa.SortTransactions(txs) {
		short := tx.ID
		if len(short) > 8 {
			short = short[:8]
		}
		total := tx.Gross().Add(tx.Fee)
		if tx.Side == kasa.Sell {
			total = tx.Gross().Sub(tx.Fee)
		}
		rows = append(rows, transactionRow{
			Transaction: tx,
			Date:        tx.Time.Local().Format(time.DateTime),
			Short:       short,
			Total:       total,
		})
	}
	return renderTemplate("transactions", transactionsTemplate, rows)
}

const transactionsTemplate = `# Transactions
{{ if not . }}
No transactions.
{{- else }}

| Date | ID | Side | Asset | Quantity | Unit Price | Fee | Total | Note |
|:---|:---|:---|:---|---:|---:|---:|---:|:---|
{{- range . }}
| {{ .Date }} | {{ .Short }} | {{ .Side }} | {{ .Asset.Name }} | {{ quantity .Quantity }} | {{ money .UnitPrice }} | {{ money .Fee }} | {{ money .Total }} | {{ cell .Note }} |
{{- end }}
{{- end }}
`
