// Package services – message template rendering.
//
// Automation messages and quick actions share one tiny placeholder scheme:
// {client_name}, {amount}, {date}, {job_title}, {business_name},
// {quote_number}, {invoice_number}, {eta}, {time}. Tenants may override the
// default per-trigger template; unknown placeholders are left as-is so a
// half-typed template degrades visibly rather than silently.
package services

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// amountPrinter renders money with thousand separators ("$1,234.50").
var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders integer cents as a dollar string.
func formatAmount(cents int64) string {
	return amountPrinter.Sprintf("$%.2f", float64(cents)/100)
}

// formatDate renders a calendar date the way it reads in a text message.
func formatDate(t time.Time) string {
	return t.Format("Mon 2 Jan")
}

// formatClock renders a local wall-clock time for quick actions.
func formatClock(t time.Time) string {
	return t.Format("3:04 PM")
}

// renderTemplate substitutes {placeholder} values into tpl.
func renderTemplate(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
