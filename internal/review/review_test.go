// internal/review/review_test.go
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/Halcyon-Ink/StoryLoom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntityAPI records every create call in order and can fail specific
// items by name or title.
type fakeEntityAPI struct {
	mu          sync.Mutex
	result      *models.ExtractionResult
	extractErr  error
	failNames   map[string]bool
	createOrder []string
	nextID      int
}

func newFakeEntityAPI(result *models.ExtractionResult) *fakeEntityAPI {
	return &fakeEntityAPI{result: result, failNames: map[string]bool{}}
}

func (f *fakeEntityAPI) ExtractEntities(_ context.Context, _ models.ExtractionRequest) (*models.ExtractionResult, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.result, nil
}

func (f *fakeEntityAPI) ValidateAndCreate(_ context.Context, req models.ValidationRequest) (*models.CreatedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	label, _ := req.ItemData["name"].(string)
	if label == "" {
		label, _ = req.ItemData["title"].(string)
	}
	f.createOrder = append(f.createOrder, fmt.Sprintf("%s:%s", req.ItemType, label))

	if f.failNames[label] {
		return nil, errors.New("creation failed for " + label)
	}
	f.nextID++
	return &models.CreatedEntity{Status: "created", ItemType: req.ItemType, ID: f.nextID}, nil
}

func sampleBatch() *models.ExtractionResult {
	return &models.ExtractionResult{
		Characters: []models.ExtractedCharacter{
			{Name: "Elara", Confidence: 0.9},
			{Name: "Bram", Confidence: 0.8},
			{Name: "Stranger", Confidence: 0.4},
		},
		Locations: []models.ExtractedLocation{
			{Name: "Hollowmere", Confidence: 0.85},
		},
		Timeline: []models.ExtractedEvent{
			{Title: "Escape", Confidence: 0.5},
			{Title: "The Siege", Confidence: 0.95, CharacterNames: []string{"Elara"}},
		},
		Lore: []models.ExtractedLore{
			{Title: "The Veil", Confidence: 0.75},
		},
	}
}

func loadedController(t *testing.T, api EntityAPI) *Controller {
	t.Helper()
	ctrl := NewController(api)
	require.NoError(t, ctrl.Extract(context.Background(), 1, models.AllEntityTypes))
	require.Equal(t, StageValidate, ctrl.Stage())
	return ctrl
}

func TestExtractBuildsParityAndDefaults(t *testing.T) {
	api := newFakeEntityAPI(sampleBatch())
	ctrl := loadedController(t, api)

	result := ctrl.Result()
	for _, entityType := range models.AllEntityTypes {
		states := ctrl.ItemStates(entityType)
		assert.Len(t, states, result.Count(entityType),
			"overlay for %s must have one entry per proposed item", entityType)
		for i, state := range states {
			assert.NotEqual(t, [16]byte{}, [16]byte(state.Handle), "item %s[%d] needs a handle", entityType, i)
			assert.False(t, state.Edited)
		}
	}

	// confidence > 0.7 starts approved, anything at or below does not
	characters := ctrl.ItemStates(models.EntityCharacters)
	assert.True(t, characters[0].Approved)  // 0.9
	assert.True(t, characters[1].Approved)  // 0.8
	assert.False(t, characters[2].Approved) // 0.4

	timeline := ctrl.ItemStates(models.EntityTimeline)
	assert.False(t, timeline[0].Approved) // 0.5
	assert.True(t, timeline[1].Approved)  // 0.95

	lore := ctrl.ItemStates(models.EntityLore)
	assert.True(t, lore[0].Approved) // 0.75
}

func TestThresholdIsStrict(t *testing.T) {
	api := newFakeEntityAPI(&models.ExtractionResult{
		Characters: []models.ExtractedCharacter{{Name: "Edge", Confidence: 0.7}},
	})
	ctrl := loadedController(t, api)

	assert.False(t, ctrl.ItemStates(models.EntityCharacters)[0].Approved)
}

func TestExtractPreconditions(t *testing.T) {
	ctrl := NewController(newFakeEntityAPI(sampleBatch()))

	err := ctrl.Extract(context.Background(), 0, models.AllEntityTypes)
	assert.True(t, apperrors.IsPreconditionError(err))

	err = ctrl.Extract(context.Background(), 1, nil)
	assert.True(t, apperrors.IsPreconditionError(err))

	assert.Equal(t, StageSelect, ctrl.Stage())
}

func TestExtractFailureReturnsToSelect(t *testing.T) {
	api := newFakeEntityAPI(nil)
	api.extractErr = errors.New("backend down")
	ctrl := NewController(api)

	err := ctrl.Extract(context.Background(), 1, models.AllEntityTypes)
	require.Error(t, err)
	assert.Equal(t, StageSelect, ctrl.Stage())
	assert.Nil(t, ctrl.Result(), "a failed extract must not leave a partial batch")
}

func TestExtractRejectedOutsideSelect(t *testing.T) {
	ctrl := loadedController(t, newFakeEntityAPI(sampleBatch()))

	err := ctrl.Extract(context.Background(), 1, models.AllEntityTypes)
	assert.True(t, apperrors.IsConflictError(err))
}

func TestToggleAndUpdate(t *testing.T) {
	ctrl := loadedController(t, newFakeEntityAPI(sampleBatch()))

	require.NoError(t, ctrl.ToggleApproval(models.EntityCharacters, 2))
	assert.True(t, ctrl.ItemStates(models.EntityCharacters)[2].Approved)

	require.NoError(t, ctrl.UpdateItem(models.EntityCharacters, 0, "role", "protagonist"))
	states := ctrl.ItemStates(models.EntityCharacters)
	assert.True(t, states[0].Edited)
	assert.True(t, states[0].Approved, "editing never changes approval")
	assert.Equal(t, "protagonist", ctrl.Result().Characters[0].Role)

	err := ctrl.ToggleApproval(models.EntityCharacters, 9)
	assert.True(t, apperrors.IsValidationError(err))
	err = ctrl.UpdateItem(models.EntityLore, 0, "flavor", "x")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCommitOrdering(t *testing.T) {
	api := newFakeEntityAPI(sampleBatch())
	ctrl := loadedController(t, api)

	// Approve everything so all four collections participate.
	require.NoError(t, ctrl.ToggleApproval(models.EntityCharacters, 2))
	require.NoError(t, ctrl.ToggleApproval(models.EntityTimeline, 0))

	report, err := ctrl.Commit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StageSelect, ctrl.Stage())
	assert.Nil(t, ctrl.Result())

	expected := []string{
		"character:Elara",
		"character:Bram",
		"character:Stranger",
		"location:Hollowmere",
		"lore:The Veil",
		"timeline:Escape",
		"timeline:The Siege",
	}
	assert.Equal(t, expected, api.createOrder)
	assert.Equal(t, 7, report.TotalCreated())
}

func TestCommitPartialFailure(t *testing.T) {
	api := newFakeEntityAPI(sampleBatch())
	api.failNames["Bram"] = true
	ctrl := loadedController(t, api)

	require.NoError(t, ctrl.ToggleApproval(models.EntityCharacters, 2))

	report, err := ctrl.Commit(context.Background(), 1)
	require.NoError(t, err)

	characters := report.Outcomes[models.EntityCharacters]
	assert.Equal(t, 3, characters.Attempted)
	assert.Equal(t, 2, characters.Created)
	assert.Equal(t, 1, characters.Failed)

	// Remaining collections are still attempted after the failure.
	assert.Equal(t, 1, report.Outcomes[models.EntityLocations].Created)
	assert.Equal(t, 1, report.Outcomes[models.EntityLore].Created)
	assert.Equal(t, 1, report.Outcomes[models.EntityTimeline].Created)
	assert.Equal(t, StageSelect, ctrl.Stage())
}

func TestCommitSkipsUnapproved(t *testing.T) {
	api := newFakeEntityAPI(sampleBatch())
	ctrl := loadedController(t, api)

	report, err := ctrl.Commit(context.Background(), 1)
	require.NoError(t, err)

	// Only items above the confidence threshold were approved by default.
	assert.Equal(t, 2, report.Outcomes[models.EntityCharacters].Attempted)
	assert.Equal(t, 1, report.Outcomes[models.EntityTimeline].Attempted)
	for _, call := range api.createOrder {
		assert.NotContains(t, call, "Stranger")
		assert.NotContains(t, call, "Escape")
	}
}

func TestCancelDiscardsBatch(t *testing.T) {
	api := newFakeEntityAPI(sampleBatch())
	ctrl := loadedController(t, api)

	require.NoError(t, ctrl.Cancel())
	assert.Equal(t, StageSelect, ctrl.Stage())
	assert.Nil(t, ctrl.Result())
	assert.Empty(t, api.createOrder, "cancel must not issue create calls")

	assert.True(t, apperrors.IsConflictError(ctrl.Cancel()))
}

func TestCommitRequiresValidate(t *testing.T) {
	ctrl := NewController(newFakeEntityAPI(sampleBatch()))

	_, err := ctrl.Commit(context.Background(), 1)
	assert.True(t, apperrors.IsConflictError(err))
}
