package xnat_test

import (
	"archive/tar"
	"io"
	"net/http"
	"sync"
	"testing"

	thttp "github.com/humanconnectome/hcp-pipelines/internal/testutils/http"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/tarball"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// request seen by the fake store
type request struct {
	Method   string
	Resource string
	File     string
	Query    map[string]string

	// Body is the payload for plain uploads.
	Body string

	// Entries are regular files in the payload for tar.gz uploads.
	Entries []string
}

type fakeStore struct {
	mu        sync.Mutex
	requests  []request
	resources map[string]bool
}

func (fs *fakeStore) record(r request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.requests = append(fs.requests, r)
}

func (fs *fakeStore) Requests() []request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]request{}, fs.requests...)
}

func queryOf(c echo.Context) map[string]string {
	q := map[string]string{}
	for k, v := range c.QueryParams() {
		q[k] = v[0]
	}
	return q
}

// newFakeStore serves a store with one session:
// project "HCP", subject "100307", session label "100307_3T" with id "XNAT_E001".
func newFakeStore(t *testing.T, resources ...string) (*fakeStore, string) {
	t.Helper()
	fs := &fakeStore{resources: map[string]bool{}}
	for _, r := range resources {
		fs.resources[r] = true
	}

	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := e.Group("/REST/projects/HCP/subjects/100307/experiments")
	api.Use(middleware.BasicAuth(func(user, pass string, _ echo.Context) (bool, error) {
		return user == "alice" && pass == "s3cret", nil
	}))
	api.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ResultSet": map[string]any{
				"Result": []map[string]string{
					{"ID": "XNAT_E000", "label": "100307_7T"},
					{"ID": "XNAT_E001", "label": "100307_3T"},
				},
			},
		})
	})
	api.GET("/XNAT_E001/resources/:res", func(c echo.Context) error {
		fs.record(request{Method: "GET", Resource: c.Param("res"), Query: queryOf(c)})
		if !fs.resources[c.Param("res")] {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, map[string]any{})
	})
	api.DELETE("/XNAT_E001/resources/:res", func(c echo.Context) error {
		fs.record(request{Method: "DELETE", Resource: c.Param("res"), Query: queryOf(c)})
		if !fs.resources[c.Param("res")] {
			return c.NoContent(http.StatusNotFound)
		}
		return c.NoContent(http.StatusOK)
	})
	api.DELETE("/XNAT_E001/resources/:res/files/*", func(c echo.Context) error {
		fs.record(request{Method: "DELETE", Resource: c.Param("res"), File: c.Param("*"), Query: queryOf(c)})
		return c.NoContent(http.StatusOK)
	})
	api.PUT("/XNAT_E001/resources/:res/files/*", func(c echo.Context) error {
		req := request{Method: "PUT", Resource: c.Param("res"), File: c.Param("*"), Query: queryOf(c)}
		if req.Query["extract"] == "true" {
			if err := tarball.Walk(c.Request().Body, func(h *tar.Header, _ io.Reader) error {
				if h.Typeflag == tar.TypeReg {
					req.Entries = append(req.Entries, h.Name)
				}
				return nil
			}); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		} else {
			b, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return err
			}
			req.Body = string(b)
		}
		fs.record(req)
		if req.Resource == "Forbidden" {
			return c.String(http.StatusForbidden, "no write permission")
		}
		return c.NoContent(http.StatusOK)
	})

	e.POST("/data/services/refresh/catalog", func(c echo.Context) error {
		fs.record(request{Method: "POST", Query: queryOf(c)})
		return c.NoContent(http.StatusOK)
	})

	svr := thttp.Serve(t, e)
	return fs, svr.URL
}
