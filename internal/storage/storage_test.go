package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedEndpoint(t *testing.T, db *sql.DB) (models.API, models.Endpoint) {
	t.Helper()
	ctx := context.Background()
	api, err := NewAPIRepo(db).Upsert(ctx, "users", "http://localhost")
	require.NoError(t, err)
	ep, err := NewEndpointRepo(db).Upsert(ctx, models.Endpoint{
		APIID: api.ID, Path: "/users", Method: "GET", ExpectedStatus: 200, ExpectedFields: []string{"id"},
	})
	require.NoError(t, err)
	return api, ep
}

func TestInitDB_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestAPIRepo_UpsertIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewAPIRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "users", "http://one")
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, "users", "http://two")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "http://one", second.BaseURL, "api rows are immutable after creation")

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndpointRepo_UpsertUpdatesExpectations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	repo := NewEndpointRepo(db)

	updated, err := repo.Upsert(ctx, models.Endpoint{
		APIID: api.ID, Path: "/users", Method: "GET", ExpectedStatus: 202,
		ExpectedFields: []string{"id", "name"}, ParamKeys: []string{"limit"},
	})
	require.NoError(t, err)

	assert.Equal(t, ep.ID, updated.ID, "identity key is stable")
	assert.Equal(t, 202, updated.ExpectedStatus)
	assert.Equal(t, []string{"id", "name"}, updated.ExpectedFields)
	assert.Equal(t, []string{"limit"}, updated.ParamKeys)

	other, err := repo.Upsert(ctx, models.Endpoint{APIID: api.ID, Path: "/users", Method: "POST", ExpectedStatus: 201})
	require.NoError(t, err)
	assert.NotEqual(t, ep.ID, other.ID)
	assert.Equal(t, []string{}, other.ExpectedFields)

	list, err := repo.GetByAPIID(ctx, api.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProbeRepo_RecentOrdersNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	repo := NewProbeRepo(db)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.Add(ctx, models.Probe{
			APIID: api.ID, EndpointID: ep.ID, Passed: i%2 == 0, StatusCode: 200 + i,
			Latency: models.LatencyFast, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, api.ID, ep.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int{204, 203, 202}, []int{recent[0].StatusCode, recent[1].StatusCode, recent[2].StatusCode})
	assert.True(t, recent[0].Passed)
	assert.False(t, recent[1].Passed)
	assert.True(t, base.Add(4*time.Second).Equal(recent[0].CreatedAt))
}

func TestProbeRepo_SameTimestampFallsBackToID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	repo := NewProbeRepo(db)

	at := time.Now()
	first, err := repo.Add(ctx, models.Probe{APIID: api.ID, EndpointID: ep.ID, Latency: models.LatencyFast, CreatedAt: at})
	require.NoError(t, err)
	second, err := repo.Add(ctx, models.Probe{APIID: api.ID, EndpointID: ep.ID, Latency: models.LatencyFast, CreatedAt: at})
	require.NoError(t, err)

	recent, err := repo.Recent(ctx, api.ID, ep.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)
}

func TestBaselineRepo_AddAndLatest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	probes := NewProbeRepo(db)
	repo := NewBaselineRepo(db)

	_, err := repo.Latest(ctx, api.ID, ep.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := probes.Add(ctx, models.Probe{
		APIID: api.ID, EndpointID: ep.ID, Passed: true, StatusCode: 200,
		ContentType: "application/json", Latency: models.LatencySlow, LatencyMS: 250,
	})
	require.NoError(t, err)

	b, err := repo.Add(ctx, api.ID, ep.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, b.ProbeID)
	require.NotNil(t, b.Probe)
	assert.Equal(t, "application/json", b.Probe.ContentType)

	latest, err := repo.Latest(ctx, api.ID, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
	assert.Equal(t, models.LatencySlow, latest.Probe.Latency)
}

func TestBaselineRepo_RejectsForeignProbe(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)

	other, err := NewEndpointRepo(db).Upsert(ctx, models.Endpoint{APIID: api.ID, Path: "/other", Method: "GET", ExpectedStatus: 200})
	require.NoError(t, err)
	p, err := NewProbeRepo(db).Add(ctx, models.Probe{APIID: api.ID, EndpointID: other.ID, Latency: models.LatencyFast})
	require.NoError(t, err)

	_, err = NewBaselineRepo(db).Add(ctx, api.ID, ep.ID, p.ID)
	assert.ErrorIs(t, err, ErrProbeMismatch)
}

func TestDeleteAPI_Cascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	p, err := NewProbeRepo(db).Add(ctx, models.Probe{APIID: api.ID, EndpointID: ep.ID, Passed: true, Latency: models.LatencyFast})
	require.NoError(t, err)
	_, err = NewBaselineRepo(db).Add(ctx, api.ID, ep.ID, p.ID)
	require.NoError(t, err)

	deleted, err := NewAPIRepo(db).DeleteByID(ctx, api.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, table := range []string{"endpoints", "probes", "baselines"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestBaselineRepo_DeleteForEndpoint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	api, ep := seedEndpoint(t, db)
	p, err := NewProbeRepo(db).Add(ctx, models.Probe{APIID: api.ID, EndpointID: ep.ID, Passed: true, Latency: models.LatencyFast})
	require.NoError(t, err)
	repo := NewBaselineRepo(db)
	_, err = repo.Add(ctx, api.ID, ep.ID, p.ID)
	require.NoError(t, err)

	n, err := repo.DeleteForEndpoint(ctx, api.ID, ep.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := repo.CountForEndpoint(ctx, api.ID, ep.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
