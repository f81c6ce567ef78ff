package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type RequestOption func(req *http.Request) *http.Request

func WithContext(ctx context.Context) RequestOption {
	return func(req *http.Request) *http.Request {
		return req.WithContext(ctx)
	}
}

func WithHeader(key string, value string, values ...string) RequestOption {
	return func(req *http.Request) *http.Request {
		req.Header.Add(key, value)
		for _, v := range values {
			req.Header.Add(key, v)
		}
		return req
	}
}

// Get sends GET request to the echo router and returns the recorded response.
func Get(e *echo.Echo, target string, reqopts ...RequestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, opt := range reqopts {
		req = opt(req)
	}
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	return resp
}

// Serve starts a test server backed by the echo router.
//
// The server is closed when the test ends.
func Serve(t *testing.T, e *echo.Echo) *httptest.Server {
	t.Helper()
	e.HideBanner = true
	e.HidePort = true
	svr := httptest.NewServer(e)
	t.Cleanup(svr.Close)
	return svr
}

// Down starts a test server which always answers the status.
func Down(t *testing.T, status int) *httptest.Server {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(svr.Close)
	return svr
}
