package donor

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	donorrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/donor"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/matching"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
)

type fakeRepo struct {
	donors []models.Donor
	nextID int
}

func (r *fakeRepo) Create(_ context.Context, donor *models.Donor) (*models.Donor, error) {
	r.nextID++
	donor.ID = fmt.Sprintf("d-%d", r.nextID)
	r.donors = append(r.donors, *donor)
	return donor, nil
}

func (r *fakeRepo) Get(_ context.Context, tenantID, id string) (*models.Donor, error) {
	for i := range r.donors {
		if r.donors[i].ID == id && r.donors[i].TenantID == tenantID {
			d := r.donors[i]
			return &d, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "donor not found")
}

func (r *fakeRepo) Update(_ context.Context, donor *models.Donor) (*models.Donor, error) {
	for i := range r.donors {
		if r.donors[i].ID == donor.ID {
			r.donors[i] = *donor
			return donor, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "donor not found")
}

func (r *fakeRepo) Delete(_ context.Context, tenantID, id string) error {
	for i := range r.donors {
		if r.donors[i].ID == id && r.donors[i].TenantID == tenantID {
			r.donors = append(r.donors[:i], r.donors[i+1:]...)
			return nil
		}
	}
	return httperror.NewHTTPError(http.StatusNotFound, "donor not found")
}

func (r *fakeRepo) List(_ context.Context, tenantID string, filter donorrepo.ListFilter) ([]models.Donor, int, error) {
	return r.donors, len(r.donors), nil
}

func (r *fakeRepo) FindCandidates(_ context.Context, tenantID string, _ *models.Donor, _ int) ([]models.Donor, error) {
	var out []models.Donor
	for _, d := range r.donors {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeQueue struct {
	queued []*models.DuplicateCandidate
}

func (q *fakeQueue) Create(_ context.Context, candidate *models.DuplicateCandidate) (*models.DuplicateCandidate, error) {
	candidate.ID = fmt.Sprintf("q-%d", len(q.queued)+1)
	q.queued = append(q.queued, candidate)
	return candidate, nil
}

type fakeEmitter struct {
	events []string
}

func (e *fakeEmitter) EmitDonor(_ context.Context, eventType string, _ *models.Donor) error {
	e.events = append(e.events, eventType)
	return nil
}

func (e *fakeEmitter) EmitDuplicate(_ context.Context, eventType string, _ *models.DuplicateCandidate) error {
	e.events = append(e.events, eventType)
	return nil
}

type fakeGraph struct {
	upserted []string
	deleted  []string
}

func (g *fakeGraph) Upsert(_ context.Context, donor *models.Donor) error {
	g.upserted = append(g.upserted, donor.ID)
	return nil
}

func (g *fakeGraph) Delete(_ context.Context, _, donorID string) error {
	g.deleted = append(g.deleted, donorID)
	return nil
}

type fakeCounts struct {
	invalidated []string
}

func (c *fakeCounts) InvalidateTenant(_ context.Context, tenantID string) {
	c.invalidated = append(c.invalidated, tenantID)
}

type testHarness struct {
	repo    *fakeRepo
	queue   *fakeQueue
	emitter *fakeEmitter
	graph   *fakeGraph
	counts  *fakeCounts
	service *Service
}

func newHarness(existing ...models.Donor) *testHarness {
	h := &testHarness{
		repo:    &fakeRepo{donors: existing, nextID: len(existing)},
		queue:   &fakeQueue{},
		emitter: &fakeEmitter{},
		graph:   &fakeGraph{},
		counts:  &fakeCounts{},
	}
	engine := matching.NewEngine(matching.DefaultWeights(), matching.DefaultThresholds())
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	h.service = NewService(h.repo, h.queue, engine, h.emitter, h.graph, h.counts, Options{
		CandidateLimit:        100,
		MaxResults:            10,
		BlockOnHighConfidence: true,
	}, logger)
	return h
}

const tenant = "11111111-1111-1111-1111-111111111111"

func TestCreate_BlocksHighConfidenceDuplicate(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant,
		FirstName: "John", LastName: "Smith", Email: "jsmith@example.com",
	})

	_, err := h.service.Create(context.Background(), tenant, &models.CreateDonorRequest{
		FirstName: "Jon", LastName: "Smith", Email: "JSMITH@example.com",
	})

	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "d-1")
	assert.Len(t, h.repo.donors, 1, "the conflicting donor must not be written")
	assert.Empty(t, h.emitter.events)
	assert.Empty(t, h.queue.queued)
}

func TestCreate_SkipDuplicateCheck(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant,
		FirstName: "John", LastName: "Smith", Email: "jsmith@example.com",
	})

	created, err := h.service.Create(context.Background(), tenant, &models.CreateDonorRequest{
		FirstName: "Jon", LastName: "Smith", Email: "jsmith@example.com",
		SkipDuplicateCheck: true,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, h.repo.donors, 2)
	assert.Equal(t, []string{events.DonorCreated}, h.emitter.events)
	assert.Equal(t, []string{created.ID}, h.graph.upserted)
	assert.Equal(t, []string{tenant}, h.counts.invalidated)
	// Skipping the check skips queueing too; the caller made the call.
	assert.Empty(t, h.queue.queued)
}

func TestCreate_QueuesMediumConfidenceForReview(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant,
		FirstName: "Stephanie", LastName: "Winters",
	})

	created, err := h.service.Create(context.Background(), tenant, &models.CreateDonorRequest{
		FirstName: "Steph", LastName: "Winters",
	})

	require.NoError(t, err)
	require.Len(t, h.queue.queued, 1)

	candidate := h.queue.queued[0]
	assert.Equal(t, created.ID, candidate.DonorID)
	assert.Equal(t, "d-1", candidate.CandidateDonorID)
	assert.Equal(t, models.ConfidenceMedium, candidate.Confidence)
	assert.Equal(t, matching.StrategyFuzzyName, candidate.MatchStrategy)
	assert.Contains(t, h.emitter.events, events.DuplicateQueued)
	assert.Contains(t, h.emitter.events, events.DonorCreated)
}

func TestCheckDuplicates_DoesNotPersist(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant,
		FirstName: "John", LastName: "Smith", Email: "jsmith@example.com",
	})

	matches, err := h.service.CheckDuplicates(context.Background(), tenant, &models.CreateDonorRequest{
		FirstName: "John", LastName: "Smith", Email: "jsmith@example.com",
	})

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.ConfidenceHigh, matches[0].Confidence)
	assert.Len(t, h.repo.donors, 1)
	assert.Empty(t, h.emitter.events)
	assert.Empty(t, h.queue.queued)
}

func TestUpdate_AppliesPartialFields(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant,
		FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com", City: "Queens",
	})

	email := "ana.reyes@example.com"
	updated, err := h.service.Update(context.Background(), tenant, "d-1", &models.UpdateDonorRequest{
		Email: &email,
	})

	require.NoError(t, err)
	assert.Equal(t, "ana.reyes@example.com", updated.Email)
	assert.Equal(t, "Ana", updated.FirstName, "unset fields stay put")
	assert.Equal(t, "Queens", updated.City)
	assert.Equal(t, []string{events.DonorUpdated}, h.emitter.events)
	assert.Equal(t, []string{"d-1"}, h.graph.upserted)
	assert.Equal(t, []string{tenant}, h.counts.invalidated)
}

func TestDelete_RemovesAndFansOut(t *testing.T) {
	h := newHarness(models.Donor{
		ID: "d-1", TenantID: tenant, FirstName: "Sam", LastName: "Ortiz",
	})

	err := h.service.Delete(context.Background(), tenant, "d-1")

	require.NoError(t, err)
	assert.Empty(t, h.repo.donors)
	assert.Equal(t, []string{events.DonorDeleted}, h.emitter.events)
	assert.Equal(t, []string{"d-1"}, h.graph.deleted)
	assert.Empty(t, h.graph.upserted)
	assert.Equal(t, []string{tenant}, h.counts.invalidated)
}

func TestDelete_UnknownDonor(t *testing.T) {
	h := newHarness()

	err := h.service.Delete(context.Background(), tenant, "missing")

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Empty(t, h.emitter.events)
}
