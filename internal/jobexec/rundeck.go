package jobexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/observability"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

const (
	systemName = "rundeck"
	apiVersion = "45"
)

// JobStatus is the normalized execution status.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobAborted   JobStatus = "aborted"
)

// IsTerminal reports whether the execution has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobAborted
}

var statusMapping = map[string]JobStatus{
	"running":           JobRunning,
	"scheduled":         JobRunning,
	"succeeded":         JobSucceeded,
	"failed":            JobFailed,
	"timedout":          JobFailed,
	"failed-with-retry": JobFailed,
	"aborted":           JobAborted,
}

type runRequest struct {
	Options map[string]string `json:"options"`
}

type executionResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// RundeckClient triggers the installation job and reads execution status.
type RundeckClient struct {
	baseURL string
	token   string
	jobID   string
	http    *http.Client
}

// NewRundeckClient builds a client for the configured job.
func NewRundeckClient(cfg config.RundeckConfig, httpClient *http.Client) *RundeckClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RundeckClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.APIToken,
		jobID:   cfg.JobID,
		http:    httpClient,
	}
}

// TriggerJob runs the installation job for the given application and returns the execution id.
func (c *RundeckClient) TriggerJob(ctx context.Context, softwareName, version string) (ref string, err error) {
	start := time.Now()
	defer func() { observability.RecordExternalCall(systemName, "trigger_job", err, time.Since(start)) }()

	options := map[string]string{"app": softwareName}
	if version != "" {
		options["version"] = version
	}
	endpoint := fmt.Sprintf("%s/api/%s/job/%s/run", c.baseURL, apiVersion, url.PathEscape(c.jobID))

	var resp executionResponse
	status, err := c.do(ctx, http.MethodPost, endpoint, runRequest{Options: options}, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return "", apperrors.NewNotFound("job", map[string]any{"job_id": c.jobID})
		}
		return "", apperrors.NewExternalCallFailure(systemName, "trigger_job", err)
	}
	if resp.ID == 0 {
		return "", apperrors.NewExternalCallFailure(systemName, "trigger_job", fmt.Errorf("response carried no execution id"))
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

// PollStatus reads the current status of an execution.
func (c *RundeckClient) PollStatus(ctx context.Context, executionRef string) (st JobStatus, err error) {
	start := time.Now()
	defer func() { observability.RecordExternalCall(systemName, "poll_status", err, time.Since(start)) }()

	endpoint := fmt.Sprintf("%s/api/%s/execution/%s", c.baseURL, apiVersion, url.PathEscape(executionRef))
	var resp executionResponse
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return "", apperrors.NewNotFound("execution", map[string]any{"execution_ref": executionRef})
		}
		return "", apperrors.NewExternalCallFailure(systemName, "poll_status", err)
	}
	mapped, ok := statusMapping[strings.ToLower(resp.Status)]
	if !ok {
		return "", apperrors.NewExternalCallFailure(systemName, "poll_status", fmt.Errorf("unrecognized execution status %q", resp.Status))
	}
	return mapped, nil
}

func (c *RundeckClient) do(ctx context.Context, method, endpoint string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Rundeck-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}
