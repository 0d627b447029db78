// Package notion commits a finished plan as a page in a Notion database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/pipeline"
	"github.com/mohans/capturex/retry"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://api.notion.com/v1"
	DefaultVersion   = "2022-06-28"
	DefaultTitleProp = "Name"
	DefaultTimeout   = 30 * time.Second
)

// StatusError is a non-2xx response from the Notion API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notion: status %d: %s", e.Code, e.Body)
}

// StatusCode makes StatusError classifiable by retry.IsServerError.
func (e *StatusError) StatusCode() int { return e.Code }

type Config struct {
	Secret     string
	DatabaseID string
	TitleProp  string // default: "Name"
	DueProp    string // optional date property
	Version    string // Notion-Version header
	BaseURL    string
	Timeout    time.Duration // per request
	MaxRetries int           // 0 disables retries, negative selects retry.DefaultMaxRetries
	BaseDelay  time.Duration // default: 1s
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *capturex.Metrics
	Sleep      retry.SleepFunc
}

// Client implements pipeline.Committer.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.TitleProp == "" {
		cfg.TitleProp = DefaultTitleProp
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = retry.DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: hc, logger: logger.With(zap.String("stage", pipeline.StageCommit))}
}

type pageRequest struct {
	Parent     map[string]string `json:"parent"`
	Properties map[string]any    `json:"properties"`
	Children   []Block           `json:"children"`
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Commit creates the page. Only 5xx responses and transport failures are retried.
func (c *Client) Commit(ctx context.Context, req pipeline.CommitRequest) (capturex.ArtifactRef, error) {
	body, err := json.Marshal(pageRequest{
		Parent:     map[string]string{"database_id": c.cfg.DatabaseID},
		Properties: BuildProperties(c.cfg.TitleProp, req.Plan.NotionPageTitle, c.cfg.DueProp, req.TaskDate),
		Children:   BuildBlocks(req.TaskContent, req.Plan.Summary, req.Plan.HumanTodos, req.Research),
	})
	if err != nil {
		return capturex.ArtifactRef{}, fmt.Errorf("encode page: %w", err)
	}

	policy := retry.Policy{
		Name:       pipeline.StageCommit,
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.BaseDelay,
		Classify:   retry.IsServerError,
		Sleep:      c.cfg.Sleep,
		Logger:     c.logger,
		OnRetry:    func(int, error) { c.cfg.Metrics.IncRetry(pipeline.StageCommit) },
	}
	page, err := retry.Do(ctx, policy, func(ctx context.Context) (pageResponse, error) {
		return c.createPage(ctx, body)
	})
	if err != nil {
		return capturex.ArtifactRef{}, fmt.Errorf("create page: %w", err)
	}

	url := page.URL
	if url == "" {
		url = "https://www.notion.so/" + strings.ReplaceAll(page.ID, "-", "")
	}
	c.logger.Info("page created", zap.String("page_id", page.ID))
	return capturex.ArtifactRef{PageID: page.ID, PageURL: url}, nil
}

func (c *Client) createPage(ctx context.Context, body []byte) (pageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/pages", bytes.NewReader(body))
	if err != nil {
		return pageResponse{}, retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
	req.Header.Set("Notion-Version", c.cfg.Version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pageResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pageResponse{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return pageResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return page, nil
}
