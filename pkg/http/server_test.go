package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

type echoRequest struct {
	Name  string `json:"name" validate:"required,max=8"`
	Limit int    `json:"limit" default:"10" validate:"gt=0,lte=100"`
}

func (echoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/echo", func(c echo.Context) error {
		var req echoRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("no series for %s", "XYZ"))
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var env APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestServerEnvelope(t *testing.T) {
	s := NewServer([]Handler{echoHandler{}}, WithMetricsPath(""))

	rec, env := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec, env = do(t, s, http.MethodPost, "/echo", `{"name":"spy"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, env.Data.(map[string]interface{})["limit"])

	rec, env = do(t, s, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.Status)

	rec, env = do(t, s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, env.Status)
}

func TestValidationUsesWireNames(t *testing.T) {
	s := NewServer([]Handler{echoHandler{}}, WithMetricsPath(""))

	rec, env := do(t, s, http.MethodPost, "/echo", `{"name":"much-too-long","limit":500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var errs []ValidationError
	require.NoError(t, json.Unmarshal(raw, &errs))
	require.Len(t, errs, 2)
	fields := []string{errs[0].Field, errs[1].Field}
	assert.ElementsMatch(t, []string{"name", "limit"}, fields)
	assert.Equal(t, "ERR_MAX", errs[0].Code)
}

func TestCORS(t *testing.T) {
	s := NewServer(nil, WithCORSOrigins("https://app.example"), WithMetricsPath(""))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"s":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient()
	var out struct {
		S string `json:"s"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"AAPL"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.S)

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
}
