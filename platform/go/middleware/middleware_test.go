package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
)

func TestMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	m := metrics.New("test")
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/members/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/members/"+id, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/members/{id}", "204")))
}

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://igreja.app")
		rec := httptest.NewRecorder()
		CORS([]string{"https://igreja.app"})(next).ServeHTTP(rec, req)
		require.Equal(t, "https://igreja.app", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin omitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		CORS([]string{"https://igreja.app"})(next).ServeHTTP(rec, req)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

const testContract = `
openapi: 3.0.3
info:
  title: test
  version: "1"
servers:
  - url: /api/v1
components:
  securitySchemes:
    bearerAuth:
      type: http
      scheme: bearer
paths:
  /members:
    post:
      security:
        - bearerAuth: []
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
      responses:
        "201":
          description: created
`

func TestContractValidator(t *testing.T) {
	t.Parallel()

	spec, err := openapi3.NewLoader().LoadFromData([]byte(testContract))
	require.NoError(t, err)
	require.NoError(t, spec.Validate(context.Background()))

	handler := ContractValidator(spec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(body string, token bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/members", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token {
			req.Header.Set("Authorization", "Bearer abc")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusCreated, send(`{"name":"Ana"}`, true).Code)

	invalid := send(`{}`, true)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Equal(t, "application/problem+json", invalid.Header().Get("Content-Type"))

	require.Equal(t, http.StatusUnauthorized, send(`{"name":"Ana"}`, false).Code)
}
