// Package renderer turns valuations, quotes and transactions into markdown.
package renderer

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/etnz/kasa"
	"github.com/shopspring/decimal"
)

// missing is printed in place of an unknown value.
const missing = "-"

var funcs = template.FuncMap{
	"money":    money,
	"signed":   signed,
	"price":    price,
	"quantity": quantity,
	"percent":  percent,
	"cell":     cell,
}

// renderTemplate executes the named markdown template on data.
func renderTemplate(name, tmpl string, data any) string {
	t := template.Must(template.New(name).Funcs(funcs).Parse(tmpl))
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return fmt.Sprintf("Error executing template: %v", err)
	}
	return b.String()
}

// money formats an amount rounded to 2 places.
func money(m kasa.Money) string {
	return kasa.TRY(kasa.Round2(m.Decimal())).String()
}

// signed is money with an explicit sign, "-" for zero.
func signed(m kasa.Money) string {
	return kasa.TRY(kasa.Round2(m.Decimal())).SignedString()
}

// price formats a unit price with 4 places, nil is missing.
func price(d *decimal.Decimal) string {
	if d == nil {
		return missing
	}
	return kasa.Round4(*d).StringFixed(4)
}

func quantity(q kasa.Quantity) string {
	return kasa.Round4(q.Decimal()).String()
}

// percent formats a ratio already multiplied by 100, nil is missing.
func percent(d *decimal.Decimal) string {
	if d == nil {
		return missing
	}
	r := kasa.Round2(*d)
	if r.IsPositive() {
		return "+" + r.StringFixed(2) + "%"
	}
	return r.StringFixed(2) + "%"
}

// cell escapes free text for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
