package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/segments"
)

type fakeRepo struct {
	segments map[string]*models.Segment
	nextID   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{segments: map[string]*models.Segment{}}
}

func (r *fakeRepo) Create(_ context.Context, segment *models.Segment) (*models.Segment, error) {
	r.nextID++
	segment.ID = fmt.Sprintf("seg-%d", r.nextID)
	segment.CreatedAt = time.Now().UTC()
	r.segments[segment.ID] = segment
	return segment, nil
}

func (r *fakeRepo) Get(_ context.Context, tenantID, id string) (*models.Segment, error) {
	segment, ok := r.segments[id]
	if !ok || segment.TenantID != tenantID || segment.DeletedAt != nil {
		return nil, httperror.NewHTTPError(404, "segment not found")
	}
	return segment, nil
}

func (r *fakeRepo) Update(_ context.Context, segment *models.Segment) (*models.Segment, error) {
	r.segments[segment.ID] = segment
	return segment, nil
}

func (r *fakeRepo) Delete(_ context.Context, tenantID, id string) error {
	segment, ok := r.segments[id]
	if !ok || segment.TenantID != tenantID {
		return httperror.NewHTTPError(404, "segment not found")
	}
	now := time.Now().UTC()
	segment.DeletedAt = &now
	return nil
}

func (r *fakeRepo) List(_ context.Context, tenantID, status string, page, pageSize int) ([]models.Segment, int, error) {
	var out []models.Segment
	for _, segment := range r.segments {
		if segment.TenantID != tenantID || segment.DeletedAt != nil {
			continue
		}
		if status != "" && segment.Status != status {
			continue
		}
		out = append(out, *segment)
	}
	return out, len(out), nil
}

type fakeScanner struct {
	donors []models.Donor
}

func (s *fakeScanner) ScanBatch(_ context.Context, tenantID string, offset, limit int) ([]models.Donor, error) {
	if offset >= len(s.donors) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.donors) {
		end = len(s.donors)
	}
	return s.donors[offset:end], nil
}

type fakeCache struct {
	counts      map[string]int
	countedAt   map[string]time.Time
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: map[string]int{}, countedAt: map[string]time.Time{}}
}

func (c *fakeCache) Get(_ context.Context, tenantID, segmentID string) (int, time.Time, bool) {
	count, ok := c.counts[segmentID]
	if !ok {
		return 0, time.Time{}, false
	}
	return count, c.countedAt[segmentID], true
}

func (c *fakeCache) Set(_ context.Context, tenantID, segmentID string, count int, countedAt time.Time) {
	c.counts[segmentID] = count
	c.countedAt[segmentID] = countedAt
}

func (c *fakeCache) InvalidateSegment(_ context.Context, tenantID, segmentID string) {
	delete(c.counts, segmentID)
	c.invalidated = append(c.invalidated, segmentID)
}

type fakeEmitter struct {
	events []string
}

func (e *fakeEmitter) EmitSegment(_ context.Context, eventType string, _ *models.Segment) error {
	e.events = append(e.events, eventType)
	return nil
}

func testService(donors []models.Donor) (*Service, *fakeRepo, *fakeCache, *fakeEmitter) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := newFakeRepo()
	cache := newFakeCache()
	emitter := &fakeEmitter{}
	svc := NewService(repo, &fakeScanner{donors: donors}, segments.NewEvaluator(), cache, emitter, Options{PreviewLimit: 3, ScanBatch: 2}, logger)
	return svc, repo, cache, emitter
}

func alumniDefinition() json.RawMessage {
	return json.RawMessage(`{
		"combinator": "and",
		"rules": [
			{"field": "donor_type", "operator": "equals", "value": "alumni"}
		]
	}`)
}

func testDonors() []models.Donor {
	types := []string{"alumni", "parent", "alumni", "community", "alumni"}
	donors := make([]models.Donor, 0, len(types))
	for i, dt := range types {
		donors = append(donors, models.Donor{
			ID:        fmt.Sprintf("d-%d", i),
			TenantID:  "t1",
			FirstName: fmt.Sprintf("Donor%d", i),
			LastName:  "Example",
			DonorType: dt,
		})
	}
	return donors
}

func TestCreate_ValidatesDefinition(t *testing.T) {
	svc, _, _, emitter := testService(nil)

	_, err := svc.Create(context.Background(), "t1", "u1", &models.CreateSegmentRequest{
		Name:       "Broken",
		Definition: json.RawMessage(`{"combinator": "and", "rules": [{"field": "no_such_field", "operator": "equals", "value": "x"}]}`),
	})
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, 400, httperror.GetStatusCode(err))
	assert.Empty(t, emitter.events)
}

func TestCreate_EmitsEvent(t *testing.T) {
	svc, _, _, emitter := testService(nil)

	created, err := svc.Create(context.Background(), "t1", "u1", &models.CreateSegmentRequest{
		Name:       "Alumni",
		Definition: alumniDefinition(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.SegmentStatusActive, created.Status)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "u1", *created.CreatedBy)
	assert.Equal(t, []string{events.SegmentCreated}, emitter.events)
}

func TestValidate_ReportsErrorsWithoutSaving(t *testing.T) {
	svc, repo, _, _ := testService(nil)

	resp, err := svc.Validate(context.Background(), json.RawMessage(`{
		"combinator": "and",
		"rules": [
			{"field": "total_donated", "operator": "between", "value": [100]},
			{"field": "donor_type", "operator": "equals", "value": "alumni"}
		]
	}`))
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "$.rules[0]", resp.Errors[0].Path)
	assert.Empty(t, repo.segments)
}

func TestValidate_MalformedJSON(t *testing.T) {
	svc, _, _, _ := testService(nil)

	resp, err := svc.Validate(context.Background(), json.RawMessage(`{"combinator":`))
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "$", resp.Errors[0].Path)
}

func TestPreview_LimitsItemsButCountsAll(t *testing.T) {
	svc, _, _, _ := testService(testDonors())

	resp, err := svc.Preview(context.Background(), "t1", &models.SegmentPreviewRequest{
		Definition: alumniDefinition(),
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.MatchCount)
	assert.Equal(t, 5, resp.Scanned)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "d-0", resp.Items[0].ID)
	assert.Equal(t, "d-2", resp.Items[1].ID)
}

func TestPreview_InvalidDefinition(t *testing.T) {
	svc, _, _, _ := testService(testDonors())

	_, err := svc.Preview(context.Background(), "t1", &models.SegmentPreviewRequest{
		Definition: json.RawMessage(`{"combinator": "nand", "rules": []}`),
	})
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestMembers_Paging(t *testing.T) {
	svc, repo, _, _ := testService(testDonors())
	repo.segments["seg-1"] = &models.Segment{
		ID: "seg-1", TenantID: "t1", Name: "Alumni",
		Definition: alumniDefinition(), Status: models.SegmentStatusActive,
	}

	members, total, err := svc.Members(context.Background(), "t1", "seg-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, members, 2)
	assert.Equal(t, "d-0", members[0].ID)
	assert.Equal(t, "d-2", members[1].ID)

	members, total, err = svc.Members(context.Background(), "t1", "seg-1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, members, 1)
	assert.Equal(t, "d-4", members[0].ID)
}

func TestCount_CachesResult(t *testing.T) {
	svc, repo, cache, _ := testService(testDonors())
	repo.segments["seg-1"] = &models.Segment{
		ID: "seg-1", TenantID: "t1", Name: "Alumni",
		Definition: alumniDefinition(), Status: models.SegmentStatusActive,
	}

	resp, err := svc.Count(context.Background(), "t1", "seg-1")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	assert.False(t, resp.Cached)
	assert.Equal(t, 3, cache.counts["seg-1"])

	resp, err = svc.Count(context.Background(), "t1", "seg-1")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	assert.True(t, resp.Cached)
}

func TestUpdate_ArchiveEmitsArchivedAndInvalidatesCount(t *testing.T) {
	svc, repo, cache, emitter := testService(testDonors())
	repo.segments["seg-1"] = &models.Segment{
		ID: "seg-1", TenantID: "t1", Name: "Alumni",
		Definition: alumniDefinition(), Status: models.SegmentStatusActive,
	}
	cache.counts["seg-1"] = 3

	archived := models.SegmentStatusArchived
	updated, err := svc.Update(context.Background(), "t1", "seg-1", &models.UpdateSegmentRequest{Status: &archived})
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusArchived, updated.Status)
	assert.Equal(t, []string{events.SegmentArchived}, emitter.events)
	assert.Contains(t, cache.invalidated, "seg-1")
}

func TestUpdate_RejectsInvalidDefinition(t *testing.T) {
	svc, repo, _, _ := testService(nil)
	repo.segments["seg-1"] = &models.Segment{
		ID: "seg-1", TenantID: "t1", Name: "Alumni",
		Definition: alumniDefinition(), Status: models.SegmentStatusActive,
	}

	_, err := svc.Update(context.Background(), "t1", "seg-1", &models.UpdateSegmentRequest{
		Definition: json.RawMessage(`{"combinator": "and", "rules": [{"field": "donor_type", "operator": "gt", "value": 1}]}`),
	})
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestDelete_EmitsDeletedEvent(t *testing.T) {
	svc, repo, cache, emitter := testService(nil)
	repo.segments["seg-1"] = &models.Segment{
		ID: "seg-1", TenantID: "t1", Name: "Alumni",
		Definition: alumniDefinition(), Status: models.SegmentStatusActive,
	}
	cache.counts["seg-1"] = 3

	err := svc.Delete(context.Background(), "t1", "seg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{events.SegmentDeleted}, emitter.events)
	assert.NotContains(t, cache.counts, "seg-1")

	_, err = svc.Get(context.Background(), "t1", "seg-1")
	assert.Error(t, err)
}
