package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/jonboulle/clockwork"
)

// ErrJobFailed is returned when the archive reports a job as failed,
// rejected, or dismissed.
var ErrJobFailed = errors.New("cds job did not succeed")

// Job states reported by the Retrieve API.
const (
	statusAccepted   = "accepted"
	statusRunning    = "running"
	statusSuccessful = "successful"
	statusFailed     = "failed"
	statusRejected   = "rejected"
	statusDismissed  = "dismissed"
)

// Client implements domain.Retriever using the Copernicus CDS Retrieve API.
type Client struct {
	baseURL      string
	key          string
	httpClient   *http.Client
	pollInterval time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewClient creates a CDS client. timeout bounds each HTTP call, not the
// whole retrieval: jobs can sit in the archive queue for hours.
func NewClient(creds Credentials, timeout, pollInterval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(creds.URL, "/"),
		key:     creds.Key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pollInterval: pollInterval,
		clock:        clock,
		logger:       logger,
	}
}

// Retrieve submits req, waits for the job to finish, and downloads the result
// to target.
func (c *Client) Retrieve(ctx context.Context, req domain.Request, target string) error {
	jobID, err := c.submit(ctx, req)
	if err != nil {
		return err
	}
	c.logger.Debug("cds job submitted", "job_id", jobID, "target", target)

	if err := c.wait(ctx, jobID); err != nil {
		return err
	}

	href, err := c.resultHref(ctx, jobID)
	if err != nil {
		return err
	}
	return c.download(ctx, href, target)
}

func (c *Client) submit(ctx context.Context, req domain.Request) (string, error) {
	body, err := json.Marshal(executeRequest{Inputs: buildInputs(req)})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	u := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.baseURL, url.PathEscape(req.Dataset))
	var st jobStatus
	if err := c.doJSON(ctx, http.MethodPost, u, body, &st); err != nil {
		return "", fmt.Errorf("submit %s request: %w", req.Dataset, err)
	}
	if st.JobID == "" {
		return "", errors.New("submit request: response has no job id")
	}
	return st.JobID, nil
}

func (c *Client) wait(ctx context.Context, jobID string) error {
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.baseURL, url.PathEscape(jobID))
	for {
		var st jobStatus
		if err := c.doJSON(ctx, http.MethodGet, u, nil, &st); err != nil {
			return fmt.Errorf("job %s status: %w", jobID, err)
		}

		switch st.Status {
		case statusSuccessful:
			return nil
		case statusFailed, statusRejected, statusDismissed:
			return c.jobError(ctx, jobID, st.Status)
		case statusAccepted, statusRunning:
		default:
			c.logger.Warn("unknown cds job status", "job_id", jobID, "status", st.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
}

// jobError builds the error for a job that ended unsuccessfully, including the
// archive's explanation when it provides one.
func (c *Client) jobError(ctx context.Context, jobID, status string) error {
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.baseURL, url.PathEscape(jobID))
	var detail problem
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &detail); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			_ = json.Unmarshal(se.body, &detail)
		}
	}
	if msg := detail.message(); msg != "" {
		return fmt.Errorf("job %s %s: %w: %s", jobID, status, ErrJobFailed, msg)
	}
	return fmt.Errorf("job %s %s: %w", jobID, status, ErrJobFailed)
}

func (c *Client) resultHref(ctx context.Context, jobID string) (string, error) {
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.baseURL, url.PathEscape(jobID))
	var res results
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &res); err != nil {
		return "", fmt.Errorf("job %s results: %w", jobID, err)
	}
	if res.Asset.Value.Href == "" {
		return "", fmt.Errorf("job %s results: no download link", jobID)
	}

	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(res.Asset.Value.Href)
	if err != nil {
		return "", fmt.Errorf("parse download link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// download streams href into a temporary file next to target and renames it
// into place once the body has been fully written.
func (c *Client) download(ctx context.Context, href, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download %s: status %d: %s", href, resp.StatusCode, body)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		tmp.Close()
		return fmt.Errorf("write %s: got %d of %d bytes", target, n, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("cds API error: status %d: %s", e.code, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: b}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// buildInputs converts a domain request into the archive's process inputs.
func buildInputs(req domain.Request) inputs {
	levels := make([]string, len(req.PressureLevels))
	for i, p := range req.PressureLevels {
		levels[i] = strconv.Itoa(p)
	}
	return inputs{
		ProductType:    []string{req.ProductType},
		Variable:       req.Variables,
		Year:           []string{fmt.Sprintf("%04d", req.Year)},
		Month:          []string{fmt.Sprintf("%02d", req.Month)},
		Day:            []string{fmt.Sprintf("%02d", req.Day)},
		Time:           []string{fmt.Sprintf("%02d:00", req.Hour)},
		PressureLevel:  levels,
		DataFormat:     req.Format,
		DownloadFormat: "unarchived",
		Area:           req.Area.Area(),
	}
}

// CDS Retrieve API payloads.

type executeRequest struct {
	Inputs inputs `json:"inputs"`
}

type inputs struct {
	ProductType    []string  `json:"product_type"`
	Variable       []string  `json:"variable"`
	Year           []string  `json:"year"`
	Month          []string  `json:"month"`
	Day            []string  `json:"day"`
	Time           []string  `json:"time"`
	PressureLevel  []string  `json:"pressure_level"`
	DataFormat     string    `json:"data_format"`
	DownloadFormat string    `json:"download_format"`
	Area           []float64 `json:"area"`
}

type jobStatus struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
}

type results struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (p problem) message() string {
	switch {
	case p.Title != "" && p.Detail != "":
		return p.Title + ": " + p.Detail
	case p.Title != "":
		return p.Title
	default:
		return p.Detail
	}
}
