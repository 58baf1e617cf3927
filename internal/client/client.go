// internal/client/client.go

// Package client is the typed HTTP client for the StoryLoom API. The editing
// and review controllers talk to the server exclusively through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// APIError is a non-2xx response decoded into its envelope error.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Client talks to one StoryLoom server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do runs one request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Stories

func (c *Client) ListStories(ctx context.Context) ([]models.Story, error) {
	var stories []models.Story
	err := c.do(ctx, http.MethodGet, "/api/stories", nil, &stories)
	return stories, err
}

func (c *Client) CreateStory(ctx context.Context, story models.Story) (*models.Story, error) {
	var created models.Story
	if err := c.do(ctx, http.MethodPost, "/api/stories", story, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ---------------------------------------------------------------------------
// Chapters

func (c *Client) ListChapters(ctx context.Context, storyID int) ([]models.Chapter, error) {
	var chapters []models.Chapter
	err := c.do(ctx, http.MethodGet, "/api/manuscript?story_id="+strconv.Itoa(storyID), nil, &chapters)
	return chapters, err
}

func (c *Client) GetChapter(ctx context.Context, chapterID int) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := c.do(ctx, http.MethodGet, "/api/manuscript/"+strconv.Itoa(chapterID), nil, &chapter); err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (c *Client) CreateChapter(ctx context.Context, chapter models.Chapter) (*models.Chapter, error) {
	var created models.Chapter
	if err := c.do(ctx, http.MethodPost, "/api/manuscript", chapter, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateChapter(ctx context.Context, chapter models.Chapter) (*models.Chapter, error) {
	var updated models.Chapter
	path := "/api/manuscript/" + strconv.Itoa(chapter.ID)
	if err := c.do(ctx, http.MethodPut, path, chapter, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteChapter(ctx context.Context, chapterID int) error {
	return c.do(ctx, http.MethodDelete, "/api/manuscript/"+strconv.Itoa(chapterID), nil, nil)
}

func (c *Client) AnalyzeChapter(ctx context.Context, chapterID int, mode models.AnalysisMode) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	path := fmt.Sprintf("/api/manuscript/%d/analyze?mode=%s", chapterID, mode)
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ---------------------------------------------------------------------------
// Extraction

func (c *Client) ExtractEntities(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResult, error) {
	var result models.ExtractionResult
	if err := c.do(ctx, http.MethodPost, "/api/extraction/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ValidateAndCreate(ctx context.Context, req models.ValidationRequest) (*models.CreatedEntity, error) {
	var result models.CreatedEntity
	if err := c.do(ctx, http.MethodPost, "/api/extraction/validate-and-create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
