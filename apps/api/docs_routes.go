package main

import (
	"net/http"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/contracts"
)

// docSpecs lists the contracts published under /openapi/{name}.json.
var docSpecs = []string{"api"}

const swaggerUITemplate = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Igreja Conciliada API – Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0} #swagger-ui{max-width:1400px;margin:0 auto}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        urls: [/*__SPECS__*/],
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
        layout: 'StandaloneLayout'
      });
    </script>
  </body>
</html>`

func registerDocsRoutes(router chi.Router, spec *openapi3.T, logger *zap.Logger) {
	router.Get("/docs", docsUIHandler())
	router.Get("/openapi/{name}.json", openapiJSONHandler(spec, logger))
	router.Get("/openapi/{name}.yaml", openapiYAMLHandler())
}

func docsUIHandler() http.HandlerFunc {
	ui := strings.Replace(swaggerUITemplate, "/*__SPECS__*/", buildDocSpecsList(), 1)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ui))
	}
}

func openapiJSONHandler(spec *openapi3.T, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(docSpecs, chi.URLParam(r, "name")) {
			http.NotFound(w, r)
			return
		}

		b, err := spec.MarshalJSON()
		if err != nil {
			logger.Error("marshal openapi json", zap.Error(err))
			http.Error(w, "failed to marshal OpenAPI", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func openapiYAMLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(docSpecs, chi.URLParam(r, "name")) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(contracts.Raw())
	}
}

func buildDocSpecsList() string {
	var builder strings.Builder
	for i, name := range docSpecs {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("{ url: '/openapi/" + name + ".json', name: '" + name + "' }")
	}
	return builder.String()
}
