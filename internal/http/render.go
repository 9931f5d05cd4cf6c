package httpapi

import (
	"embed"
	"html/template"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

const pageTemplate = "storefront.html"

func parseTemplates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"money":   money,
		"date":    date,
		"applied": applied,
	}).ParseFS(templatesFS, "templates/*.html"))
}

// money печатает сумму с двумя знаками после запятой
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func date(ts domain.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("2006-01-02")
}

func applied(dc *domain.DiscountCode, code string) bool {
	return dc != nil && dc.Code == code
}
