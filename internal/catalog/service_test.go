package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/store"
	"github.com/plantops/breakdown-board/internal/store/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHasher struct{}

func (fakeHasher) Hash(pin string) *domain.Credential {
	return &domain.Credential{Scheme: domain.CredentialPlain, Value: pin}
}

type fakeRevoker struct {
	revoked []string
}

func (r *fakeRevoker) RevokeTechnician(number string) {
	r.revoked = append(r.revoked, number)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, _ := newTestServiceWithRevoker(t)
	return svc
}

func newTestServiceWithRevoker(t *testing.T) (*Service, *fakeRevoker) {
	t.Helper()
	repo := store.NewRepo(file.New(filepath.Join(t.TempDir(), "data.json")))
	revoker := &fakeRevoker{}
	return NewService(repo, fakeHasher{}, revoker), revoker
}

func TestCreateLine_RejectsAccentInsensitiveDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.CreateLine(ctx, "Linha Três")
	require.NoError(t, err)
	assert.True(t, line.Active)

	_, err = svc.CreateLine(ctx, "  linha tres ")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.CreateLine(ctx, "LINHA TRÊS")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateLine_RenameAndToggle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.CreateLine(ctx, "Linha 2")
	require.NoError(t, err)

	name := "Linha 2B"
	inactive := false
	updated, err := svc.UpdateLine(ctx, line.ID, LineUpdate{Name: &name, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Linha 2B", updated.Name)
	assert.False(t, updated.Active)

	// Renaming onto the seeded line collides.
	taken := "linha 1"
	_, err = svc.UpdateLine(ctx, line.ID, LineUpdate{Name: &taken})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.UpdateLine(ctx, "missing", LineUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLine_CascadesMachines(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.CreateLine(ctx, "Linha 2")
	require.NoError(t, err)
	_, err = svc.CreateMachines(ctx, line.ID, []MachineInput{{Number: "07"}, {Number: "08"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLine(ctx, line.ID))

	cfg, err := svc.AdminConfig(ctx)
	require.NoError(t, err)
	for _, m := range cfg.Machines {
		assert.NotEqual(t, line.ID, m.LineID)
	}
	// The seeded line's machine survives.
	assert.Len(t, cfg.Machines, 1)
}

func TestCreateMachines_Batch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateMachines(ctx, "L1", []MachineInput{
		{Number: "02", Name: "Prensa"},
		{Number: "  "},
		{Number: "03"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2, "blank rows are dropped")
	assert.Equal(t, "Prensa", created[0].Name)
	assert.Equal(t, "Máquina 03", created[1].Name, "missing name defaults from the number")

	// Number 01 exists on the seeded line; whole batch fails.
	_, err = svc.CreateMachines(ctx, "L1", []MachineInput{{Number: "04"}, {Number: "01"}})
	assert.ErrorIs(t, err, ErrDuplicate)
	cfg, err := svc.AdminConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, cfg.Machines, 3, "failed batch creates nothing")

	_, err = svc.CreateMachines(ctx, "L1", []MachineInput{{Number: " "}})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.CreateMachines(ctx, "missing", []MachineInput{{Number: "05"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMachineNumbers_UniquePerLineNotGlobally(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.CreateLine(ctx, "Linha 2")
	require.NoError(t, err)

	// 01 is taken on L1 but free on the new line.
	_, err = svc.CreateMachines(ctx, line.ID, []MachineInput{{Number: "01"}})
	assert.NoError(t, err)
}

func TestObservations_CRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	obs, err := svc.CreateObservation(ctx, "Fuga de óleo")
	require.NoError(t, err)

	_, err = svc.CreateObservation(ctx, "fuga de oleo")
	assert.ErrorIs(t, err, ErrDuplicate)

	inactive := false
	updated, err := svc.UpdateObservation(ctx, obs.ID, ObservationUpdate{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	for _, q := range snap.QuickObservations {
		assert.NotEqual(t, obs.ID, q.ID, "inactive tags are hidden from the public view")
	}

	require.NoError(t, svc.DeleteObservation(ctx, obs.ID))
	assert.ErrorIs(t, svc.DeleteObservation(ctx, obs.ID), ErrNotFound)
}

func TestTechnicians_CreateListAndMaskCredential(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	view, err := svc.CreateTechnician(ctx, TechnicianInput{
		Number: "0230",
		Name:   "Técnico 230",
		Team:   "ELETRICA",
		PIN:    "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamElectrical, view.Team, "portuguese team spelling is accepted")
	assert.True(t, view.HasPIN)

	_, err = svc.CreateTechnician(ctx, TechnicianInput{Number: "0230", Name: "Outro", Team: "MECHANICAL"})
	assert.ErrorIs(t, err, ErrDuplicate)

	noPin, err := svc.CreateTechnician(ctx, TechnicianInput{Number: "0777", Name: "Sem PIN", Team: "MECHANICAL"})
	require.NoError(t, err)
	assert.False(t, noPin.HasPIN)

	electrical, err := svc.Technicians(ctx, domain.TeamElectrical, false)
	require.NoError(t, err)
	require.Len(t, electrical, 1)
	assert.Equal(t, "0230", electrical[0].Number)

	require.NoError(t, svc.DeleteTechnician(ctx, noPin.ID))
	assert.ErrorIs(t, svc.DeleteTechnician(ctx, noPin.ID), ErrNotFound)
}

func TestUpdateTechnician_RotatesPIN(t *testing.T) {
	svc, revoker := newTestServiceWithRevoker(t)
	ctx := context.Background()

	view, err := svc.CreateTechnician(ctx, TechnicianInput{Number: "0555", Name: "Novo", Team: "MECHANICAL"})
	require.NoError(t, err)
	require.False(t, view.HasPIN)

	updated, err := svc.UpdateTechnician(ctx, view.ID, TechnicianUpdate{PIN: "9876"})
	require.NoError(t, err)
	assert.True(t, updated.HasPIN)

	inactive := false
	updated, err = svc.UpdateTechnician(ctx, view.ID, TechnicianUpdate{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Contains(t, revoker.revoked, "0555", "deactivation drops live sessions")

	active, err := svc.Technicians(ctx, "", false)
	require.NoError(t, err)
	for _, v := range active {
		assert.NotEqual(t, view.ID, v.ID, "inactive technicians are hidden from the public listing")
	}

	all, err := svc.Technicians(ctx, "", true)
	require.NoError(t, err)
	assert.Greater(t, len(all), len(active))
}

func TestSnapshot_ActiveOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.CreateLine(ctx, "Linha 2")
	require.NoError(t, err)
	inactive := false
	_, err = svc.UpdateLine(ctx, line.ID, LineUpdate{Active: &inactive})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "Linha 1", snap.Lines[0].Name)
}
