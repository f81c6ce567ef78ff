// Package xnat is a narrow client of the remote data store: it uploads,
// removes and probes resources of one imaging session.
package xnat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/retry"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/tarball"
)

type Store interface {
	// Upload puts a local file or directory into a resource of the session.
	//
	// A directory is sent as a tar.gz stream and extracted by the store.
	//
	// # Args
	//
	// - context.Context
	//
	// - resource: resource name in the session
	//
	// - localPath: file or directory to be uploaded
	//
	// - reason: event reason recorded by the store
	//
	// # Returns
	//
	// - error: ErrExternalCall wrapped when the store rejects the request
	Upload(ctx context.Context, resource string, localPath string, reason string, opts ...UploadOption) error

	// Delete removes a resource and its files. A missing resource is not an error.
	Delete(ctx context.Context, resource string) error

	// RemoveFile removes one file (path relative to the resource root).
	// A missing file is not an error.
	RemoveFile(ctx context.Context, resource string, remotePath string) error

	// Exists tells whether the resource exists in the session.
	Exists(ctx context.Context, resource string) (bool, error)

	// RefreshCatalog asks the store to rebuild the catalog of a resource.
	RefreshCatalog(ctx context.Context, resource string) error
}

type Config struct {
	// Servers are host names (or base URLs) of interchangeable store servers.
	Servers []string

	// Protocol is used for servers without a scheme. Default "https".
	Protocol string

	Credentials Credentials

	// SelectionRounds is how many times the whole server list is probed.
	SelectionRounds int

	// SelectionInterval is the wait between rounds.
	SelectionInterval time.Duration
}

type Option func(*client) *client

func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) *client {
		c.httpclient = hc
		return c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *client) *client {
		if l != nil {
			c.logger = l
		}
		return c
	}
}

type UploadOption func(*uploadOptions) *uploadOptions

type uploadOptions struct {
	reference  bool
	remotePath string
}

// AsReference makes the store register the local path (resolved to its real path)
// instead of receiving the content. The path must be visible from the store.
func AsReference() UploadOption {
	return func(o *uploadOptions) *uploadOptions {
		o.reference = true
		return o
	}
}

// RemotePath places the upload at the path in the resource.
func RemotePath(p string) UploadOption {
	return func(o *uploadOptions) *uploadOptions {
		o.remotePath = p
		return o
	}
}

// UploadSettings are the upload options in effect.
type UploadSettings struct {
	Reference  bool
	RemotePath string
}

func UploadSettingsOf(opts ...UploadOption) UploadSettings {
	uo := &uploadOptions{}
	for _, opt := range opts {
		uo = opt(uo)
	}
	return UploadSettings{Reference: uo.reference, RemotePath: uo.remotePath}
}

type client struct {
	httpclient *http.Client
	logger     *log.Logger
	creds      Credentials

	// base URL of the chosen server, like "https://db.example.org"
	server string

	project string
	subject string

	// store side id of the session (not the label)
	sessionID string
}

// Connect chooses a live server and resolves the session label to its id.
//
// # Args
//
// - ctx: context. Server selection can wait for (SelectionRounds-1) * SelectionInterval.
//
// - cfg: connection settings
//
// - project, subject, session: the session label, like "HCP_1200", "100307", "100307_3T"
func Connect(ctx context.Context, cfg Config, project, subject, session string, opts ...Option) (Store, error) {
	c := &client{
		httpclient: http.DefaultClient,
		logger:     log.New(io.Discard, "", 0),
		creds:      cfg.Credentials,
		project:    project,
		subject:    subject,
	}
	for _, o := range opts {
		c = o(c)
	}

	server, err := selectServer(ctx, c.httpclient, c.logger, cfg)
	if err != nil {
		return nil, err
	}
	c.server = server

	id, err := c.lookupSessionID(ctx, session)
	if err != nil {
		return nil, err
	}
	c.sessionID = id
	return c, nil
}

func baseURL(protocol string, server string) string {
	if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
		return strings.TrimSuffix(server, "/")
	}
	if protocol == "" {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s", protocol, strings.TrimSuffix(server, "/"))
}

func selectServer(ctx context.Context, hc *http.Client, logger *log.Logger, cfg Config) (string, error) {
	if len(cfg.Servers) == 0 {
		return "", xe.Configuration("no store servers are configured")
	}
	rounds := cfg.SelectionRounds
	if rounds < 1 {
		rounds = 1
	}

	servers := make([]string, len(cfg.Servers))
	for i, s := range cfg.Servers {
		servers[i] = baseURL(cfg.Protocol, s)
	}

	server, err := retry.Blocking(
		ctx, retry.Limited(rounds-1, retry.StaticBackoff(cfg.SelectionInterval)),
		func() (string, error) {
			rand.Shuffle(len(servers), func(i, j int) { servers[i], servers[j] = servers[j], servers[i] })
			for _, s := range servers {
				if ping(ctx, hc, s) {
					logger.Printf("using store server %s", s)
					return s, nil
				}
				logger.Printf("store server %s is down, trying next server", s)
			}
			logger.Printf("no store server is up. checking again after %s", cfg.SelectionInterval)
			return "", retry.ErrRetry
		},
	)
	if errors.Is(err, retry.ErrGaveUp) {
		return "", xe.ExternalCall("all store servers are down (%s)", strings.Join(cfg.Servers, ", "))
	}
	if err != nil {
		return "", xe.Wrap(err)
	}
	return server, nil
}

// ping tells the server answers 200.
// A refused or reset connection counts as down, as a proxy in front of a dead server does that.
func ping(ctx context.Context, hc *http.Client, server string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server, nil)
	if err != nil {
		return false
	}
	resp, err := hc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *client) restpath(elem ...string) string {
	escaped := make([]string, 0, len(elem))
	for _, e := range elem {
		for _, seg := range strings.Split(e, "/") {
			if seg == "" {
				continue
			}
			escaped = append(escaped, url.PathEscape(seg))
		}
	}
	return c.server + "/REST/" + path.Join(escaped...)
}

func (c *client) experiments() []string {
	return []string{"projects", c.project, "subjects", c.subject, "experiments"}
}

func (c *client) resourcepath(resource string, elem ...string) string {
	p := append(c.experiments(), c.sessionID, "resources", resource)
	return c.restpath(append(p, elem...)...)
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(c.creds.User, c.creds.Password)
	c.logger.Printf("%s %s", req.Method, req.URL.Redacted())
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, xe.ExternalCall("%s %s: %s", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

type resultSet struct {
	ResultSet struct {
		Result []struct {
			ID    string `json:"ID"`
			Label string `json:"label"`
		} `json:"Result"`
	} `json:"ResultSet"`
}

func (c *client) lookupSessionID(ctx context.Context, session string) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.restpath(c.experiments()...)+"?format=json", nil,
	)
	if err != nil {
		return "", xe.Wrap(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if StatusCodeRangeOf(resp) != Status2xx {
		return "", checkResponse(resp, "listing sessions", MessageFor{
			Status4xx: fmt.Sprintf("project %s or subject %s is not accessible", c.project, c.subject),
		})
	}
	defer resp.Body.Close()

	rs := resultSet{}
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return "", xe.ExternalCall("listing sessions: unexpected response: %s", err)
	}
	for _, r := range rs.ResultSet.Result {
		if r.Label == session {
			return r.ID, nil
		}
	}
	return "", xe.ExternalCall("session %s is not found in %s/%s", session, c.project, c.subject)
}

func (c *client) Upload(ctx context.Context, resource string, localPath string, reason string, opts ...UploadOption) error {
	uo := &uploadOptions{}
	for _, o := range opts {
		uo = o(uo)
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return xe.Wrap(err)
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return xe.Wrap(err)
	}

	query := url.Values{}
	query.Set("overwrite", "true")
	query.Set("replace", "true")
	if reason == "" {
		reason = "Unspecified"
	}
	query.Set("event_reason", reason)

	remote := uo.remotePath
	var body io.Reader
	var contentType string

	switch {
	case uo.reference:
		realpath, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return xe.Wrap(err)
		}
		query.Set("reference", realpath)
	case stat.IsDir():
		if remote == "" {
			remote = filepath.Base(abs) + ".tar.gz"
		}
		query.Set("extract", "true")
		query.Set("inbody", "true")
		r := tarball.Reader(ctx, abs)
		defer r.Close()
		body = r
		contentType = "application/tar+gzip"
	default:
		if remote == "" {
			remote = filepath.Base(abs)
		}
		query.Set("inbody", "true")
		f, err := os.Open(abs)
		if err != nil {
			return xe.Wrap(err)
		}
		defer f.Close()
		body = f
		contentType = "application/octet-stream"
	}

	u := c.resourcepath(resource, "files", remote)
	if remote == "" {
		u += "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u+"?"+query.Encode(), body)
	if err != nil {
		return xe.Wrap(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !uo.reference && !stat.IsDir() {
		req.ContentLength = stat.Size()
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return checkResponse(resp, fmt.Sprintf("uploading %s to %s", localPath, resource), MessageFor{
		Status4xx: "upload is rejected by the store",
		Status5xx: "store error",
	})
}

func (c *client) Delete(ctx context.Context, resource string) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.resourcepath(resource)+"?removeFiles=true", nil,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil
	}
	return checkResponse(resp, "deleting "+resource, nil)
}

func (c *client) RemoveFile(ctx context.Context, resource string, remotePath string) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.resourcepath(resource, "files", remotePath), nil,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil
	}
	return checkResponse(resp, fmt.Sprintf("removing %s from %s", remotePath, resource), nil)
}

func (c *client) Exists(ctx context.Context, resource string) (bool, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.resourcepath(resource)+"?format=json", nil,
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return false, nil
	}
	if err := checkResponse(resp, "probing "+resource, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (c *client) RefreshCatalog(ctx context.Context, resource string) error {
	target := "/" + path.Join(
		"archive", "projects", c.project, "subjects", c.subject,
		"experiments", c.sessionID, "resources", resource,
	)
	query := url.Values{}
	query.Set("resource", target)
	query.Set("options", "delete,append,populateStats")

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.server+"/data/services/refresh/catalog?"+query.Encode(), nil,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return checkResponse(resp, "refreshing catalog of "+resource, nil)
}
