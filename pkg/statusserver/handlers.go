package statusserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/buildtime"
	"github.com/humanconnectome/hcp-pipelines/pkg/completion"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/pipeline"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/status"
	"github.com/labstack/echo/v4"
)

type Handlers struct {
	layout   archive.Layout
	registry *pipeline.Registry
	checker  *completion.Checker
}

func NewHandlers(layout archive.Layout, registry *pipeline.Registry, checker *completion.Checker) *Handlers {
	return &Handlers{layout: layout, registry: registry, checker: checker}
}

func (h *Handlers) Route(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/version", h.Version)
	e.GET("/projects/:project/sessions/:session/running", h.Running)
	e.GET("/projects/:project/sessions/:session/pipelines/:pipeline/completion", h.Completion)
}

func (h *Handlers) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handlers) Version(c echo.Context) error {
	return c.JSON(http.StatusOK, buildtime.Current())
}

type RunningResponse struct {
	Project string   `json:"project"`
	Session string   `json:"session"`
	Markers []string `json:"markers"`
}

func (h *Handlers) Running(c echo.Context) error {
	project, label := c.Param("project"), c.Param("session")
	markers, err := status.Running(h.layout, project, label)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, RunningResponse{Project: project, Session: label, Markers: markers})
}

type CompletionResponse struct {
	Subject  string `json:"subject"`
	Pipeline string `json:"pipeline"`
	completion.Result
}

// Completion runs the completion check.
//
// Incomplete outputs are 200 with "complete": false.
func (h *Handlers) Completion(c echo.Context) error {
	s, err := subjectOf(c.Param("project"), c.Param("session"), c.QueryParam("scan"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	name := c.Param("pipeline")
	def, err := h.registry.Lookup(name)
	if errors.Is(err, pipeline.ErrUnknownPipeline) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := def.Validate(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.checker.Check(s, def.CompletionSpec())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, CompletionResponse{
		Subject: s.String(), Pipeline: def.Name, Result: result,
	})
}

// subjectOf splits a session label like "100307_3T" at the first underscore.
func subjectOf(project, label, scan string) (session.Subject, error) {
	subject, classifier, ok := strings.Cut(label, "_")
	if !ok || subject == "" || classifier == "" {
		return session.Subject{}, xe.Configuration("malformed session label: %q", label)
	}
	if scan == "" {
		scan = archive.NoFilter
	}
	return session.Parse(strings.Join([]string{project, subject, classifier, scan}, ":"))
}
