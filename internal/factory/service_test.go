package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/publish"
	"github.com/PratikDhanave/empleaido-factory/internal/store"
	"github.com/PratikDhanave/empleaido-factory/internal/validate"
)

type failingPublisher struct {
	removed []string
}

func (f *failingPublisher) Publish(context.Context, models.Empleaido) (string, error) {
	return "", errors.New("disk full")
}

func (f *failingPublisher) Remove(_ context.Context, rec models.Empleaido) error {
	f.removed = append(f.removed, rec.ID)
	return errors.New("permission denied")
}

type fixture struct {
	svc    *Service
	store  *store.FileStore
	skills string
}

func newFixture(t *testing.T, pub Publisher) fixture {
	t.Helper()
	dir := t.TempDir()
	st := store.NewFileStore(filepath.Join(dir, "empleaidos.json"), nil)
	skills := filepath.Join(dir, "skills")
	if pub == nil {
		pub = publish.New(skills)
	}

	n := 0
	svc := New(st, pub,
		WithClock(func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600)) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	return fixture{svc: svc, store: st, skills: skills}
}

func adaRequest() models.CreateEmpleaidoRequest {
	return models.CreateEmpleaidoRequest{
		Name:              "Ada",
		Role:              "Analyst",
		Specialty:         "Data review",
		SefirotActivation: []string{"Keter", "Keter", "Unknown"},
		Skills:            []string{"sql", "sql"},
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)
	assert.Equal(t, models.Empleaido{
		ID:                "id-1",
		Name:              "Ada",
		Role:              "Analyst",
		Specialty:         "Data review",
		SefirotActivation: []string{"Keter"},
		Skills:            []string{"sql"},
		Status:            models.StatusActive,
		CreatedAt:         "2026-05-06T06:08:09Z",
		Deployed:          false,
	}, rec)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Empleaido{rec}, all)

	_, err = f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)
	all, err = f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "id-2", all[1].ID, "new records are appended")
}

func TestCreate_InvalidNeverPersisted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []func(*models.CreateEmpleaidoRequest){
		func(r *models.CreateEmpleaidoRequest) { r.Skills = nil },
		func(r *models.CreateEmpleaidoRequest) { r.Skills = []string{"!", "x"} },
		func(r *models.CreateEmpleaidoRequest) { r.SefirotActivation = []string{"Unknown"} },
		func(r *models.CreateEmpleaidoRequest) { r.Name = "A" },
		func(r *models.CreateEmpleaidoRequest) { r.Name = "<script>" },
	}
	for i, mutate := range cases {
		req := adaRequest()
		mutate(&req)
		_, err := f.svc.Create(ctx, req)
		var ve *validate.Error
		assert.True(t, errors.As(err, &ve), "case %d: %v", i, err)
	}

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoFileExists(t, f.store.Path())
}

func TestDeploy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)

	rec, path, err := f.svc.Deploy(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, rec.Deployed)
	assert.Equal(t, filepath.Join(f.skills, "ada", publish.SkillFile), path)
	assert.FileExists(t, path)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.True(t, all[0].Deployed, "deployed flag is persisted")

	// deploying again republishes
	_, _, err = f.svc.Deploy(ctx, created.ID)
	assert.NoError(t, err)
}

func TestDeploy_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, _, err := f.svc.Deploy(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, _, err = f.svc.Deploy(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, _, err = f.svc.Deploy(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeploy_PublishFailureLeavesRecord(t *testing.T) {
	f := newFixture(t, &failingPublisher{})
	ctx := context.Background()
	created, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)

	_, _, err = f.svc.Deploy(ctx, created.ID)
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorContains(t, err, "disk full")

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.False(t, all[0].Deployed)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)

	removed, err := f.svc.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, removed)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Empleaido{b}, all)

	_, err = f.svc.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Delete(ctx, "bad id!")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDelete_DeployedRemovesArtifact(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)
	_, path, err := f.svc.Deploy(ctx, created.ID)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = f.svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Dir(path))
}

func TestDelete_ArtifactFailureStillDeletes(t *testing.T) {
	pub := &failingPublisher{}
	f := newFixture(t, pub)
	ctx := context.Background()

	rec := models.Empleaido{
		ID: "deployed-1", Name: "Ada", Role: "Analyst", Specialty: "Data review",
		SefirotActivation: []string{"Keter"}, Skills: []string{"sql"},
		Status: models.StatusActive, CreatedAt: "2026-05-06T07:08:09Z", Deployed: true,
	}
	require.NoError(t, f.store.ReplaceAll(ctx, []models.Empleaido{rec}))

	_, err := f.svc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, pub.removed)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

type readOnlyStore struct {
	store.Store
}

func (readOnlyStore) ReplaceAll(context.Context, []models.Empleaido) error {
	return errors.New("read-only file system")
}

func TestDelete_SaveFailureKeepsArtifact(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, adaRequest())
	require.NoError(t, err)
	_, path, err := f.svc.Deploy(ctx, created.ID)
	require.NoError(t, err)

	svc := New(readOnlyStore{f.store}, publish.New(f.skills))
	_, err = svc.Delete(ctx, created.ID)
	require.Error(t, err)

	assert.FileExists(t, path, "a record still marked deployed keeps its skill")
	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deployed)
}

func TestCreate_Concurrent(t *testing.T) {
	dir := t.TempDir()
	st := store.NewFileStore(filepath.Join(dir, "empleaidos.json"), nil)
	svc := New(st, publish.New(filepath.Join(dir, "skills")))
	ctx := context.Background()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := svc.Create(ctx, adaRequest())
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n, "no lost updates within one process")
}
