package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/store"
	"github.com/plantops/breakdown-board/internal/store/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *store.Repo) {
	t.Helper()
	repo := store.NewRepo(file.New(filepath.Join(t.TempDir(), "data.json")))
	return NewService(repo, "9999", time.Hour), repo
}

func TestVerifyPIN_Schemes(t *testing.T) {
	plain := &domain.Credential{Scheme: domain.CredentialPlain, Value: "1234"}
	assert.True(t, VerifyPIN(plain, "1234"))
	assert.False(t, VerifyPIN(plain, "4321"))

	derived := HashPIN("1234")
	assert.Equal(t, domain.CredentialPBKDF2, derived.Scheme)
	assert.Empty(t, derived.Value, "derived credentials never store the raw pin")
	assert.True(t, VerifyPIN(derived, "1234"))
	assert.False(t, VerifyPIN(derived, "4321"))

	assert.False(t, VerifyPIN(nil, "1234"))
	assert.False(t, VerifyPIN(&domain.Credential{Scheme: "unknown"}, "1234"))
}

func TestHashPIN_SaltsDiffer(t *testing.T) {
	a := HashPIN("1234")
	b := HashPIN("1234")
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestLoginTech_Succeeds(t *testing.T) {
	svc, _ := newTestService(t)

	// The seed ships technician 819 with PIN 1234 on the mechanical team.
	sess, err := svc.LoginTech(context.Background(), "819", "1234", "MECHANICAL")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "819", sess.Number)
	assert.Equal(t, domain.TeamMechanical, sess.Team)

	actor, err := svc.AuthenticateTech(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "819", actor.Number)
	assert.False(t, actor.IsAdmin)
}

func TestLoginTech_WrongPINOrNumber(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.LoginTech(ctx, "819", "0000", "MECHANICAL")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LoginTech(ctx, "000", "1234", "MECHANICAL")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginTech_WrongTeam(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.LoginTech(context.Background(), "819", "1234", "ELECTRICAL")
	assert.ErrorIs(t, err, ErrWrongTeam)
}

func TestLoginTech_InactiveTechnicianRejected(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, func(doc *store.Document) error {
		doc.Config.Technicians[0].Active = false
		return nil
	}))

	_, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginTech_UpgradesPlaintextCredential(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	require.NoError(t, err)

	err = repo.View(ctx, func(doc *store.Document) error {
		cred := doc.Config.Technicians[0].Credential
		require.NotNil(t, cred)
		assert.Equal(t, domain.CredentialPBKDF2, cred.Scheme)
		assert.Empty(t, cred.Value)
		return nil
	})
	require.NoError(t, err)

	// The same PIN keeps working against the upgraded record.
	_, err = svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	assert.NoError(t, err)
}

func TestLoginTech_RateLimited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < loginBurst; i++ {
		_, err := svc.LoginTech(ctx, "819", "0000", "MECHANICAL")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	assert.ErrorIs(t, err, ErrRateLimited)

	// Other numbers have their own budget.
	_, err = svc.LoginTech(ctx, "230", "0000", "MECHANICAL")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginTech_SuccessesNeverThrottled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Only failures consume the login budget.
	for i := 0; i < loginBurst*3; i++ {
		_, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
		require.NoError(t, err)
	}
}

func TestLoginAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.LoginAdmin(ctx, "0000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.LoginAdmin(ctx, "9999")
	require.NoError(t, err)

	actor, err := svc.AuthenticateAdmin(ctx, token)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin)

	// A tech lookup never honors admin tokens.
	_, err = svc.AuthenticateTech(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoginAdmin_DisabledWithoutPIN(t *testing.T) {
	repo := store.NewRepo(file.New(filepath.Join(t.TempDir(), "data.json")))
	svc := NewService(repo, "", time.Hour)

	_, err := svc.LoginAdmin(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_RevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	require.NoError(t, err)

	svc.LogoutTech(sess.Token)
	_, err = svc.AuthenticateTech(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Revoking again is a no-op.
	svc.LogoutTech(sess.Token)
}

func TestSessions_Expire(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	require.NoError(t, err)

	svc.techSessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.AuthenticateTech(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRevokeTechnician_DropsAllSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	require.NoError(t, err)
	second, err := svc.LoginTech(ctx, "819", "1234", "MECHANICAL")
	require.NoError(t, err)

	svc.RevokeTechnician("819")

	_, err = svc.AuthenticateTech(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = svc.AuthenticateTech(ctx, second.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
