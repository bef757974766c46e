package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var FS embed.FS

// Parse 解析内嵌的页面模板
func Parse() *template.Template {
	return template.Must(template.ParseFS(FS, "*.html"))
}
