package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SeedsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "data.json")
	s := New(path)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), doc.NextIncidentID)
	assert.Empty(t, doc.Incidents)
	assert.Empty(t, doc.History)
	require.Len(t, doc.Config.Lines, 1)
	assert.Equal(t, "L1", doc.Config.Lines[0].ID)
	require.Len(t, doc.Config.Technicians, 1)
	assert.True(t, doc.Config.Technicians[0].HasPIN())

	_, err = os.Stat(path)
	assert.NoError(t, err, "seed must be written to disk")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := New(path)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)

	doc.NextIncidentID = 7
	doc.Incidents = append(doc.Incidents, &domain.Incident{
		ID:       6,
		Team:     domain.TeamElectrical,
		Status:   domain.StatusOpen,
		LineName: "Linha 2",
	})
	require.NoError(t, s.Save(context.Background(), doc))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.NextIncidentID)
	require.Len(t, loaded.Incidents, 1)
	assert.Equal(t, domain.TeamElectrical, loaded.Incidents[0].Team)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "data.json"))

	require.NoError(t, s.Save(context.Background(), store.Seed()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestRaw_ReturnsVerbatimBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := New(path)

	raw, err := s.Raw(context.Background())
	require.NoError(t, err)

	var doc store.Document
	require.NoError(t, json.Unmarshal(raw, &doc))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, onDisk, raw)
}

func TestRepo_UpdateAbortsWithoutSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	repo := store.NewRepo(New(path))
	ctx := context.Background()

	err := repo.Update(ctx, func(doc *store.Document) error {
		doc.NextIncidentID = 99
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	err = repo.View(ctx, func(doc *store.Document) error {
		assert.Equal(t, int64(1), doc.NextIncidentID, "aborted mutation must not persist")
		return nil
	})
	require.NoError(t, err)
}

func TestRepo_ViewDoesNotPersistMutations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	repo := store.NewRepo(New(path))
	ctx := context.Background()

	require.NoError(t, repo.View(ctx, func(doc *store.Document) error {
		doc.NextIncidentID = 42
		return nil
	}))

	require.NoError(t, repo.View(ctx, func(doc *store.Document) error {
		assert.Equal(t, int64(1), doc.NextIncidentID)
		return nil
	}))
}
