// internal/session/session.go

// Package session holds the editing session controller: one current chapter,
// a dirty flag, and a periodic flush that persists accumulated edits.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
)

// DefaultFlushInterval is how often the periodic flush checks for a dirty
// chapter.
const DefaultFlushInterval = 10 * time.Second

// ChapterAPI is the backend surface the controller needs. *client.Client
// satisfies it.
type ChapterAPI interface {
	ListChapters(ctx context.Context, storyID int) ([]models.Chapter, error)
	CreateChapter(ctx context.Context, chapter models.Chapter) (*models.Chapter, error)
	UpdateChapter(ctx context.Context, chapter models.Chapter) (*models.Chapter, error)
	DeleteChapter(ctx context.Context, chapterID int) error
	AnalyzeChapter(ctx context.Context, chapterID int, mode models.AnalysisMode) (*models.AnalysisReport, error)
}

// State is the controller's lifecycle position.
type State string

const (
	StateNoSession State = "no_session"
	StateClean     State = "clean"
	StateDirty     State = "dirty"
	StateSaving    State = "saving"
)

// Controller owns exactly one current chapter. All mutation goes through its
// methods; the embedded lock makes the single-writer contract hold even when
// the flush goroutine and a caller race.
type Controller struct {
	api      ChapterAPI
	interval time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	current  *models.Chapter
	analysis *models.AnalysisReport
	dirty    bool
	// saving guards entry into a save. Both the periodic flush and manual
	// saves check it, so an unpersisted chapter can never have two create
	// requests in flight.
	saving  bool
	editSeq uint64
}

// Option configures the controller.
type Option func(*Controller)

// WithFlushInterval overrides the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// NewController creates an idle controller with no current chapter.
func NewController(api ChapterAPI, opts ...Option) *Controller {
	c := &Controller{api: api, interval: DefaultFlushInterval}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.current == nil:
		return StateNoSession
	case c.saving:
		return StateSaving
	case c.dirty:
		return StateDirty
	default:
		return StateClean
	}
}

// Current returns a copy of the current chapter, or nil.
func (c *Controller) Current() *models.Chapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// Dirty reports whether local edits have not been persisted yet.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Analysis returns the last attached analysis report, or nil.
func (c *Controller) Analysis() *models.AnalysisReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// Select replaces the current chapter wholesale and discards any previous
// analysis. If a save for the previous chapter is in flight it is awaited
// first, so the old chapter's edits never bleed into the new one.
func (c *Controller) Select(chapter models.Chapter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.saving {
		c.cond.Wait()
	}

	selected := chapter
	c.current = &selected
	c.analysis = nil
	c.dirty = false
}

// Edit applies one local field mutation. No network call is made; the change
// is picked up by the next flush or explicit save. Every call lands
// immediately, there is no debounce.
func (c *Controller) Edit(field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return apperrors.NewPreconditionError("no chapter selected")
	}

	switch field {
	case "title":
		v, ok := value.(string)
		if !ok {
			return apperrors.NewValidationError("title must be a string", nil)
		}
		c.current.Title = v
	case "chapter":
		v, ok := value.(int)
		if !ok {
			return apperrors.NewValidationError("chapter must be an int", nil)
		}
		c.current.Number = v
	case "text":
		v, ok := value.(string)
		if !ok {
			return apperrors.NewValidationError("text must be a string", nil)
		}
		c.current.Text = v
	case "status":
		switch v := value.(type) {
		case models.ChapterStatus:
			c.current.Status = v
		case string:
			c.current.Status = models.ChapterStatus(v)
		default:
			return apperrors.NewValidationError("status must be a string", nil)
		}
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown chapter field %q", field), nil)
	}

	c.dirty = true
	c.editSeq++
	return nil
}

// CreateChapter starts a fresh chapter on the server and makes it current.
// The chapter number is one past the story's highest, starting at 1.
func (c *Controller) CreateChapter(ctx context.Context, storyID int, title string) (*models.Chapter, error) {
	c.mu.Lock()
	for c.saving {
		c.cond.Wait()
	}
	c.saving = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.saving = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	existing, err := c.api.ListChapters(ctx, storyID)
	if err != nil {
		return nil, err
	}
	number := 1
	for _, ch := range existing {
		if ch.Number >= number {
			number = ch.Number + 1
		}
	}

	if title == "" {
		title = fmt.Sprintf("Chapter %d", number)
	}

	created, err := c.api.CreateChapter(ctx, models.Chapter{
		StoryID: storyID,
		Title:   title,
		Number:  number,
		Text:    "",
		Status:  models.StatusDraft,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	selected := *created
	c.current = &selected
	c.analysis = nil
	c.dirty = false
	c.mu.Unlock()

	return created, nil
}

// Save persists the current chapter: create when it has no identifier yet,
// update otherwise. A save already in flight suppresses this one; the record
// stays dirty and the next trigger retries.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return apperrors.NewPreconditionError("no chapter selected")
	}
	if c.saving {
		c.mu.Unlock()
		return nil
	}
	c.saving = true
	snapshot := *c.current
	seqAtSave := c.editSeq
	c.mu.Unlock()

	var (
		saved *models.Chapter
		err   error
	)
	if snapshot.Persisted() {
		saved, err = c.api.UpdateChapter(ctx, snapshot)
	} else {
		saved, err = c.api.CreateChapter(ctx, snapshot)
	}

	c.mu.Lock()
	defer func() {
		c.saving = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	if err != nil {
		// Edits are preserved; the next periodic tick retries.
		return err
	}

	if c.current != nil {
		if !c.current.Persisted() {
			c.current.ID = saved.ID
			c.current.CreatedAt = saved.CreatedAt
		}
		c.current.UpdatedAt = saved.UpdatedAt
	}
	// Edits made while the request was in flight keep the record dirty.
	if c.editSeq == seqAtSave {
		c.dirty = false
	}
	return nil
}

// Delete removes the current chapter on the server, clears the session and
// returns the story's refreshed chapter list. Confirmation is the caller's
// responsibility. The saving flag is held for the duration so the periodic
// flush cannot race an update against the delete.
func (c *Controller) Delete(ctx context.Context) ([]models.Chapter, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NewPreconditionError("no chapter selected")
	}
	for c.saving {
		c.cond.Wait()
	}
	c.saving = true
	chapterID := c.current.ID
	storyID := c.current.StoryID
	persisted := c.current.Persisted()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.saving = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	if persisted {
		if err := c.api.DeleteChapter(ctx, chapterID); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.current = nil
	c.analysis = nil
	c.dirty = false
	c.mu.Unlock()

	return c.api.ListChapters(ctx, storyID)
}

// RequestAnalysis fetches an analysis report for the current chapter and
// attaches it without touching the dirty flag. The chapter must be persisted.
func (c *Controller) RequestAnalysis(ctx context.Context, mode models.AnalysisMode) (*models.AnalysisReport, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NewPreconditionError("no chapter selected")
	}
	if !c.current.Persisted() {
		c.mu.Unlock()
		return nil, apperrors.NewPreconditionError("chapter must be saved before it can be analyzed")
	}
	chapterID := c.current.ID
	c.mu.Unlock()

	report, err := c.api.AnalyzeChapter(ctx, chapterID, mode)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == chapterID {
		c.analysis = report
	}
	c.mu.Unlock()
	return report, nil
}

// RunAutoSave drives the periodic flush until the context is canceled. Only
// a dirty, not-currently-saving chapter triggers a save; failures are logged
// and retried on the next tick.
func (c *Controller) RunAutoSave(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.needsFlush() {
				continue
			}
			if err := c.Save(ctx); err != nil {
				log.Printf("auto-save failed: %v", err)
			}
		}
	}
}

func (c *Controller) needsFlush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.dirty && !c.saving
}

// Close flushes pending edits best-effort. Losing up to one flush interval
// of edits on an abrupt exit is the accepted trade-off; a graceful close
// loses nothing.
func (c *Controller) Close(ctx context.Context) error {
	if !c.needsFlush() {
		return nil
	}
	return c.Save(ctx)
}
