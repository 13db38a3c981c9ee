// Package ilovepdf implements the remote task client for the iLovePDF REST
// API (and compatible services).
//
// A task is started on the public entry server, the answer assigns a worker
// server and every following call of the task goes to that worker.
package ilovepdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/remote"
)

// DefaultEntryURL is the public entry endpoint of the API.
const DefaultEntryURL = "https://api.ilovepdf.com/v1"

// Remote task statuses.
const (
	statusSuccess    = "TaskSuccess"
	statusWaiting    = "TaskWaiting"
	statusProcessing = "TaskProcessing"
)

// ClientConfig is the configuration of the client.
type ClientConfig struct {
	// HTTPClient is the shared transport, its timeout bounds every call.
	HTTPClient *http.Client
	// EntryURL is the versioned entry endpoint, worker URLs reuse its
	// scheme and path.
	EntryURL  string
	PublicKey string
	// SecretKey, when set, makes the client sign its own tokens instead of
	// calling the auth endpoint.
	SecretKey string
	// Authenticator overrides the authenticator selected from the keys.
	Authenticator Authenticator
	Logger        log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.HTTPClient == nil {
		return fmt.Errorf("http client is required")
	}

	if c.EntryURL == "" {
		c.EntryURL = DefaultEntryURL
	}
	c.EntryURL = strings.TrimRight(c.EntryURL, "/")

	if c.Authenticator == nil && c.PublicKey == "" {
		return fmt.Errorf("public key is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "remote.ILovePDF"})

	return nil
}

// Client is the remote task client.
type Client struct {
	t        transport
	auth     Authenticator
	entryURL string
	entry    *url.URL
	logger   log.Logger
}

// NewClient creates a new client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	entry, err := url.Parse(cfg.EntryURL)
	if err != nil || entry.Scheme == "" || entry.Host == "" {
		return nil, fmt.Errorf("invalid entry URL %q", cfg.EntryURL)
	}

	t := transport{httpClient: cfg.HTTPClient, logger: cfg.Logger}

	auth := cfg.Authenticator
	switch {
	case auth != nil:
	case cfg.SecretKey != "":
		auth, err = NewSelfSignedAuthenticator(cfg.PublicKey, cfg.SecretKey, DefaultTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("could not create authenticator: %w", err)
		}
	default:
		auth = APIKeyAuthenticator{
			t:         t,
			authURL:   cfg.EntryURL + "/auth",
			publicKey: cfg.PublicKey,
		}
	}

	return &Client{
		t:        t,
		auth:     auth,
		entryURL: cfg.EntryURL,
		entry:    entry,
		logger:   cfg.Logger,
	}, nil
}

var _ remote.TaskAPI = &Client{}

// Authenticate returns a new bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	return c.auth.Authenticate(ctx)
}

type startResponse struct {
	Server string `json:"server"`
	Task   string `json:"task"`
}

// Start starts a task for the tool on the entry server.
func (c *Client) Start(ctx context.Context, token, tool string) (model.TaskSession, error) {
	var resp startResponse
	err := c.t.doJSON(ctx, http.MethodGet, c.entryURL+"/start/"+url.PathEscape(tool), token, nil, "", &resp)
	if err != nil {
		return model.TaskSession{}, fmt.Errorf("could not start %q task: %w", tool, err)
	}

	if resp.Server == "" || resp.Task == "" {
		return model.TaskSession{}, model.UpstreamError(errDetail, fmt.Errorf("start response without server or task"))
	}

	return model.TaskSession{
		Tool:          tool,
		AuthToken:     token,
		ServerBaseURL: c.workerURL(resp.Server),
		TaskID:        resp.Task,
		Status:        model.TaskStatusPending,
	}, nil
}

// workerURL returns the base URL of a worker, the API answers with a bare
// host name.
func (c *Client) workerURL(server string) string {
	if strings.Contains(server, "://") {
		return strings.TrimRight(server, "/")
	}

	u := url.URL{
		Scheme: c.entry.Scheme,
		Host:   server,
		Path:   c.entry.Path,
	}
	return strings.TrimRight(u.String(), "/")
}

// RegisterFile makes the worker fetch the file from its storage URL.
func (c *Client) RegisterFile(ctx context.Context, session model.TaskSession, file model.StagedFile) (model.StagedFile, error) {
	form := url.Values{
		"task":       {session.TaskID},
		"cloud_file": {file.StorageURL},
	}

	var resp struct {
		ServerFilename string `json:"server_filename"`
	}
	err := c.t.doJSON(ctx, http.MethodPost, session.ServerBaseURL+"/upload", session.AuthToken, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		return file, fmt.Errorf("could not register %q: %w", file.OriginalName, err)
	}

	if resp.ServerFilename == "" {
		return file, model.UpstreamError(errDetail, fmt.Errorf("upload response without server filename for %q", file.OriginalName))
	}

	file.RemoteServerName = resp.ServerFilename
	return file, nil
}

type processFile struct {
	ServerFilename string `json:"server_filename"`
	Filename       string `json:"filename"`
}

type processResponse struct {
	Status           string `json:"status"`
	DownloadFilename string `json:"download_filename"`
}

// reservedParameters can't be overridden by the tool parameters.
var reservedParameters = map[string]bool{"task": true, "tool": true, "files": true}

// Execute processes all the registered files of the task.
func (c *Client) Execute(ctx context.Context, session model.TaskSession, files []model.StagedFile) (model.TaskSession, error) {
	logger := c.logger.WithCtxValues(ctx)

	payload := make(map[string]any, len(session.ExtraParameters)+3)
	for k, v := range session.ExtraParameters {
		if reservedParameters[k] {
			logger.Warningf("ignoring reserved tool parameter %q", k)
			continue
		}
		payload[k] = v
	}

	pf := make([]processFile, 0, len(files))
	for _, f := range files {
		if !f.Registered() {
			return session, model.UpstreamError(errDetail, fmt.Errorf("file %q is not registered on the task", f.OriginalName))
		}
		pf = append(pf, processFile{ServerFilename: f.RemoteServerName, Filename: f.OriginalName})
	}
	payload["task"] = session.TaskID
	payload["tool"] = session.Tool
	payload["files"] = pf

	body, err := json.Marshal(payload)
	if err != nil {
		return session, model.UpstreamError(errDetail, fmt.Errorf("could not encode process request: %w", err))
	}

	var resp processResponse
	err = c.t.doJSON(ctx, http.MethodPost, session.ServerBaseURL+"/process", session.AuthToken, bytes.NewReader(body), "application/json", &resp)
	if err != nil {
		return session, fmt.Errorf("could not process task: %w", err)
	}

	session.RemoteStatus = resp.Status
	session.Status = statusFromRemote(resp.Status)
	session.OutputFileName = resp.DownloadFilename

	return session, nil
}

func statusFromRemote(s string) model.TaskStatus {
	switch s {
	case statusSuccess:
		return model.TaskStatusSuccess
	case statusWaiting, statusProcessing:
		return model.TaskStatusPending
	default:
		return model.TaskStatusFailure
	}
}

// Download returns the output of the task.
func (c *Client) Download(ctx context.Context, session model.TaskSession) (io.ReadCloser, error) {
	resp, err := c.t.do(ctx, http.MethodGet, session.ServerBaseURL+"/download/"+url.PathEscape(session.TaskID), session.AuthToken, nil, "")
	if err != nil {
		return nil, fmt.Errorf("could not download task output: %w", err)
	}

	return resp.Body, nil
}

// DeleteTask deletes the task from the worker.
func (c *Client) DeleteTask(ctx context.Context, session model.TaskSession) error {
	resp, err := c.t.do(ctx, http.MethodDelete, session.ServerBaseURL+"/task/"+url.PathEscape(session.TaskID), session.AuthToken, nil, "")
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return nil
}
