// internal/review/review.go

// Package review holds the extraction review controller: it drives the
// extract, validate, commit pipeline over a batch of AI-proposed entities.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/google/uuid"
)

// ApprovalThreshold is the confidence above which a proposed item starts out
// approved.
const ApprovalThreshold = 0.7

// EntityAPI is the backend surface the controller needs. *client.Client
// satisfies it.
type EntityAPI interface {
	ExtractEntities(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResult, error)
	ValidateAndCreate(ctx context.Context, req models.ValidationRequest) (*models.CreatedEntity, error)
}

// Stage is the controller's position in the pipeline.
type Stage string

const (
	StageSelect     Stage = "select"
	StageExtracting Stage = "extracting"
	StageValidate   Stage = "validate"
	StageCreating   Stage = "creating"
)

// ItemState is the per-item review overlay. Handle is assigned at batch load
// and stays stable however the UI re-renders or filters the list.
type ItemState struct {
	Handle   uuid.UUID
	Approved bool
	Edited   bool
}

// CategoryOutcome counts one collection's commit results.
type CategoryOutcome struct {
	Attempted  int `json:"attempted"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// CommitReport aggregates one commit run across all four collections.
type CommitReport struct {
	Outcomes map[models.EntityType]CategoryOutcome `json:"outcomes"`
}

// TotalCreated sums created items across collections.
func (r *CommitReport) TotalCreated() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Created
	}
	return total
}

// Controller owns one extraction batch and its review overlay. The batch is
// never mutated from outside; every change goes through a method.
type Controller struct {
	api EntityAPI

	mu      sync.Mutex
	stage   Stage
	results *models.ExtractionResult
	states  map[models.EntityType][]ItemState
}

// NewController creates the controller in the Select stage with no batch.
func NewController(api EntityAPI) *Controller {
	return &Controller{api: api, stage: StageSelect}
}

// Stage reports the current pipeline stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Result returns the loaded batch, or nil outside Validate.
func (c *Controller) Result() *models.ExtractionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// ItemStates returns a copy of one collection's review overlay.
func (c *Controller) ItemStates(t models.EntityType) []ItemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := c.states[t]
	out := make([]ItemState, len(states))
	copy(out, states)
	return out
}

// Extract runs one extraction pass and loads the batch for review. A failure
// leaves the controller back in Select with no partial batch.
func (c *Controller) Extract(ctx context.Context, manuscriptID int, types []models.EntityType) error {
	if manuscriptID <= 0 {
		return apperrors.NewPreconditionError("no manuscript selected")
	}
	if len(types) == 0 {
		return apperrors.NewPreconditionError("no entity types selected")
	}

	c.mu.Lock()
	if c.stage != StageSelect {
		stage := c.stage
		c.mu.Unlock()
		return apperrors.NewConflictError(fmt.Sprintf("cannot extract while %s", stage), nil)
	}
	c.stage = StageExtracting
	c.mu.Unlock()

	result, err := c.api.ExtractEntities(ctx, models.ExtractionRequest{
		ManuscriptID: manuscriptID,
		ExtractTypes: types,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.stage = StageSelect
		return err
	}

	c.results = result
	c.states = buildItemStates(result)
	c.stage = StageValidate
	return nil
}

// buildItemStates assigns every proposed item a stable handle and its
// confidence-based initial approval. Each collection's overlay has exactly
// one entry per item.
func buildItemStates(result *models.ExtractionResult) map[models.EntityType][]ItemState {
	states := make(map[models.EntityType][]ItemState, len(models.AllEntityTypes))

	confidences := func(t models.EntityType) []float64 {
		switch t {
		case models.EntityCharacters:
			out := make([]float64, len(result.Characters))
			for i, item := range result.Characters {
				out[i] = item.Confidence
			}
			return out
		case models.EntityLocations:
			out := make([]float64, len(result.Locations))
			for i, item := range result.Locations {
				out[i] = item.Confidence
			}
			return out
		case models.EntityTimeline:
			out := make([]float64, len(result.Timeline))
			for i, item := range result.Timeline {
				out[i] = item.Confidence
			}
			return out
		case models.EntityLore:
			out := make([]float64, len(result.Lore))
			for i, item := range result.Lore {
				out[i] = item.Confidence
			}
			return out
		}
		return nil
	}

	for _, t := range models.AllEntityTypes {
		conf := confidences(t)
		overlay := make([]ItemState, len(conf))
		for i, confidence := range conf {
			overlay[i] = ItemState{
				Handle:   uuid.New(),
				Approved: confidence > ApprovalThreshold,
			}
		}
		states[t] = overlay
	}
	return states
}

// ToggleApproval flips one item's approved flag.
func (c *Controller) ToggleApproval(t models.EntityType, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageValidate {
		return apperrors.NewConflictError("no batch under review", nil)
	}
	states, ok := c.states[t]
	if !ok || index < 0 || index >= len(states) {
		return apperrors.NewValidationError(fmt.Sprintf("no %s item at index %d", t, index), nil)
	}
	states[index].Approved = !states[index].Approved
	return nil
}

// UpdateItem edits one field of a proposed item in place and marks it
// edited. Approval is never changed here.
func (c *Controller) UpdateItem(t models.EntityType, index int, field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageValidate {
		return apperrors.NewConflictError("no batch under review", nil)
	}
	states, ok := c.states[t]
	if !ok || index < 0 || index >= len(states) {
		return apperrors.NewValidationError(fmt.Sprintf("no %s item at index %d", t, index), nil)
	}

	if err := c.applyFieldEdit(t, index, field, value); err != nil {
		return err
	}
	states[index].Edited = true
	return nil
}

func (c *Controller) applyFieldEdit(t models.EntityType, index int, field string, value any) error {
	badType := func(want string) error {
		return apperrors.NewValidationError(fmt.Sprintf("%s must be a %s", field, want), nil)
	}

	setString := func(dst *string) error {
		v, ok := value.(string)
		if !ok {
			return badType("string")
		}
		*dst = v
		return nil
	}
	setInt := func(dst *int) error {
		v, ok := value.(int)
		if !ok {
			return badType("int")
		}
		*dst = v
		return nil
	}

	unknown := apperrors.NewValidationError(fmt.Sprintf("unknown %s field %q", t, field), nil)

	switch t {
	case models.EntityCharacters:
		item := &c.results.Characters[index]
		switch field {
		case "name":
			return setString(&item.Name)
		case "surname":
			return setString(&item.Surname)
		case "role":
			return setString(&item.Role)
		case "age":
			return setInt(&item.Age)
		case "physical_description":
			return setString(&item.PhysicalDescription)
		case "personality":
			return setString(&item.Personality)
		case "motivation":
			return setString(&item.Motivation)
		}
	case models.EntityLocations:
		item := &c.results.Locations[index]
		switch field {
		case "name":
			return setString(&item.Name)
		case "type":
			return setString(&item.Type)
		case "summary":
			return setString(&item.Summary)
		}
	case models.EntityTimeline:
		item := &c.results.Timeline[index]
		switch field {
		case "title":
			return setString(&item.Title)
		case "date":
			return setString(&item.Date)
		case "summary":
			return setString(&item.Summary)
		case "sort_order":
			return setInt(&item.SortOrder)
		case "location_name":
			return setString(&item.LocationName)
		}
	case models.EntityLore:
		item := &c.results.Lore[index]
		switch field {
		case "title":
			return setString(&item.Title)
		case "category":
			return setString(&item.Category)
		case "content":
			return setString(&item.Content)
		}
	}
	return unknown
}

// itemTypeNames maps a collection to the singular item_type the backend
// expects.
var itemTypeNames = map[models.EntityType]string{
	models.EntityCharacters: "character",
	models.EntityLocations:  "location",
	models.EntityTimeline:   "timeline",
	models.EntityLore:       "lore",
}

// Commit creates every approved item, one call at a time, in the fixed order
// characters, locations, lore, timeline. Timeline goes last because its
// events may reference characters and locations created in the same run.
// Individual failures are logged and counted, never aborting the rest; the
// batch is discarded afterwards regardless of partial failures.
func (c *Controller) Commit(ctx context.Context, storyID int) (*CommitReport, error) {
	c.mu.Lock()
	if c.stage != StageValidate {
		stage := c.stage
		c.mu.Unlock()
		return nil, apperrors.NewConflictError(fmt.Sprintf("cannot commit while %s", stage), nil)
	}
	c.stage = StageCreating
	results := c.results
	states := c.states
	c.mu.Unlock()

	report := &CommitReport{Outcomes: make(map[models.EntityType]CategoryOutcome, len(models.AllEntityTypes))}

	for _, t := range models.AllEntityTypes {
		outcome := CategoryOutcome{}
		for index, state := range states[t] {
			if !state.Approved {
				continue
			}
			outcome.Attempted++

			itemData, err := itemDataAt(results, t, index)
			if err != nil {
				outcome.Failed++
				log.Printf("commit: encoding %s item %d failed: %v", t, index, err)
				continue
			}

			created, err := c.api.ValidateAndCreate(ctx, models.ValidationRequest{
				StoryID:  storyID,
				ItemType: itemTypeNames[t],
				ItemData: itemData,
				Approved: true,
			})
			if err != nil {
				outcome.Failed++
				log.Printf("commit: creating %s item %d failed: %v", t, index, err)
				continue
			}

			switch created.Status {
			case "created":
				outcome.Created++
			case "duplicate":
				outcome.Duplicates++
			default:
				outcome.Failed++
			}
		}
		report.Outcomes[t] = outcome
	}

	c.mu.Lock()
	c.results = nil
	c.states = nil
	c.stage = StageSelect
	c.mu.Unlock()

	return report, nil
}

// Cancel discards the batch without any create calls.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageValidate {
		return apperrors.NewConflictError("no batch under review", nil)
	}
	c.results = nil
	c.states = nil
	c.stage = StageSelect
	return nil
}

// itemDataAt flattens one proposed item into the generic payload the
// validate-and-create endpoint takes.
func itemDataAt(results *models.ExtractionResult, t models.EntityType, index int) (map[string]any, error) {
	var item any
	switch t {
	case models.EntityCharacters:
		item = results.Characters[index]
	case models.EntityLocations:
		item = results.Locations[index]
	case models.EntityTimeline:
		item = results.Timeline[index]
	case models.EntityLore:
		item = results.Lore[index]
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
