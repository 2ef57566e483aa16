package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/store"
)

type cliEnv struct {
	dataFile, skillsDir, sessionsFile string
}

func setupEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	e := cliEnv{
		dataFile:     filepath.Join(dir, "empleaidos.json"),
		skillsDir:    filepath.Join(dir, "skills"),
		sessionsFile: filepath.Join(dir, "sessions.json"),
	}
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("RATE_LIMIT_BACKEND", "memory")
	t.Setenv("DATA_FILE", e.dataFile)
	t.Setenv("SKILLS_DIR", e.skillsDir)
	t.Setenv("SESSIONS_FILE", e.sessionsFile)
	return e
}

func seed(t *testing.T, e cliEnv, records ...models.Empleaido) {
	t.Helper()
	st := store.NewFileStore(e.dataFile, nil)
	require.NoError(t, st.ReplaceAll(context.Background(), records))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	listJSON = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func ada() models.Empleaido {
	return models.Empleaido{
		ID: "rec-1", Name: "Ada", Role: "Analyst", Specialty: "Data review",
		SefirotActivation: []string{"Keter", "Hod"}, Skills: []string{"sql"},
		Status: models.StatusActive, CreatedAt: "2026-05-06T07:08:09Z",
	}
}

func TestRecordsList(t *testing.T) {
	e := setupEnv(t)
	seed(t, e, ada())

	out, err := run(t, "records", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "draft")
	assert.Contains(t, out, "[Keter,Hod]")

	out, err = run(t, "records", "list", "--json")
	require.NoError(t, err)
	var got []models.Empleaido
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []models.Empleaido{ada()}, got)
}

func TestRecordsDeployThenDelete(t *testing.T) {
	e := setupEnv(t)
	seed(t, e, ada())

	out, err := run(t, "records", "deploy", "rec-1")
	require.NoError(t, err)
	skill := filepath.Join(e.skillsDir, "ada", "skill.md")
	assert.Equal(t, "Empleaido Ada deployed: "+skill+"\n", out)
	assert.FileExists(t, skill)

	out, err = run(t, "records", "delete", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Empleaido deleted: Ada (rec-1)\n", out)
	assert.NoDirExists(t, filepath.Dir(skill))

	out, err = run(t, "records", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestRecordsErrors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "records", "deploy", "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "records", "delete", "bad id!")
	assert.ErrorContains(t, err, "invalid")

	_, err = run(t, "records", "deploy")
	assert.Error(t, err)
}

func TestRecords_BadConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := run(t, "records", "list")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestSessionCreate(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, "session", "create")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.Len(t, token, 43)

	data, err := os.ReadFile(e.sessionsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), token)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, models.Version+"\n", out)
}
