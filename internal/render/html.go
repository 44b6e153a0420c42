package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
		"inc":   func(i int) int { return i + 1 },
		"dash": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "-"
			}
			return s
		},
	}

	content, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(content)))
}

// HTML renders the document as a standalone page
func HTML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HTMLResult renders the document and names the output file
func HTMLResult(doc *Document) (*Result, error) {
	data, err := HTML(doc)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: doc.Filename() + ".html",
		MimeType: "text/html; charset=utf-8",
	}, nil
}

const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Sites}}
  <h2>{{.Label}}: {{.Street}}</h2>
  {{range .Activities}}<p>{{.Channel}} {{.Sediment}} {{.Description}}</p>
  {{range .Materials}}<p>{{.Type}} {{.Quantity}} {{.Unit}}</p>{{end}}{{end}}
  {{end}}
</body>
</html>`
