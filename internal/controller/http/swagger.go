package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}} - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({ url: "{{.SpecURL}}", dom_id: '#swagger-ui', deepLinking: true });
        };
    </script>
</body>
</html>`

// DocsHandler serves the OpenAPI document and a Swagger UI page for it
type DocsHandler struct {
	title    string
	specURL  string
	specYAML []byte
	specJSON []byte
	tmpl     *template.Template
}

// NewDocsHandler creates a docs handler. The YAML document is converted to JSON once, up front.
func NewDocsHandler(title string, specYAML []byte) (*DocsHandler, error) {
	specJSON, err := yamlToJSON(specYAML)
	if err != nil {
		return nil, fmt.Errorf("converting openapi spec: %w", err)
	}

	return &DocsHandler{
		title:    title,
		specURL:  "/docs/openapi.json",
		specYAML: specYAML,
		specJSON: specJSON,
		tmpl:     template.Must(template.New("swagger").Parse(swaggerUITemplate)),
	}, nil
}

// RegisterRoutes registers documentation routes
func (h *DocsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/docs", h.UI())
	r.Get("/docs/", http.RedirectHandler("/docs", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/docs/openapi.yaml", h.raw("application/x-yaml", h.specYAML))
	r.Get("/docs/openapi.json", h.raw("application/json", h.specJSON))
}

// UI serves the Swagger UI HTML page
func (h *DocsHandler) UI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		data := struct {
			Title   string
			SpecURL string
		}{
			Title:   h.title,
			SpecURL: h.specURL,
		}

		if err := h.tmpl.Execute(w, data); err != nil {
			http.Error(w, "failed to render template", http.StatusInternalServerError)
		}
	}
}

func (h *DocsHandler) raw(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(body)
	}
}

func yamlToJSON(in []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(in, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(doc))
}

// normalizeYAML turns map[interface{}]interface{} style keys into strings for encoding/json
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
