//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/plantops/breakdown-board/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyEnvelope struct {
	Role    string            `json:"role"`
	History []incidentPayload `json:"history"`
}

func resolveFreshIncident(t *testing.T, tech *testutil.Client) incidentPayload {
	t.Helper()

	inc := reportIncident(t, tech, "MECHANICAL")
	resp, err := tech.POST(fmt.Sprintf("/api/incidents/%d/resolve", inc.ID), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resolved incidentPayload
	testutil.DecodeData(t, resp, &resolved)
	return resolved
}

func TestHistory_TechSeesOwnAdminSeesAll(t *testing.T) {
	tech := asSeedTech(t)
	resolved := resolveFreshIncident(t, tech)

	resp, err := tech.GET("/api/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var techView historyEnvelope
	testutil.DecodeData(t, resp, &techView)
	assert.Equal(t, "TECH", techView.Role)
	for _, item := range techView.History {
		assert.Equal(t, "819", item.AssignedTo, "technicians only see their own work")
	}

	admin := asAdmin(t)
	resp, err = admin.GET("/api/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var adminView historyEnvelope
	testutil.DecodeData(t, resp, &adminView)
	assert.Equal(t, "ADMIN", adminView.Role)

	found := false
	for _, item := range adminView.History {
		if item.ID == resolved.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHistory_Unauthenticated(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/api/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHistory_MachineFilter(t *testing.T) {
	tech := asSeedTech(t)
	resolved := resolveFreshIncident(t, tech)

	admin := asAdmin(t)
	resp, err := admin.GET("/api/history?machine=" + resolved.MachineNumber)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view historyEnvelope
	testutil.DecodeData(t, resp, &view)
	require.Len(t, view.History, 1)
	assert.Equal(t, resolved.ID, view.History[0].ID)
}

func TestHistory_DateFilter(t *testing.T) {
	tech := asSeedTech(t)
	resolveFreshIncident(t, tech)

	admin := asAdmin(t)

	resp, err := admin.GET("/api/history?from=2099-01-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var future historyEnvelope
	testutil.DecodeData(t, resp, &future)
	assert.Empty(t, future.History)

	resp, err = admin.WithoutValidation().GET("/api/history?from=not-a-date")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestPurgeHistory(t *testing.T) {
	tech := asSeedTech(t)
	resolveFreshIncident(t, tech)

	admin := asAdmin(t)

	resp, err := admin.WithoutValidation().DELETE("/api/admin/history?scope=bogus")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.DELETE("/api/admin/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.GET("/api/history")
	require.NoError(t, err)
	var view historyEnvelope
	testutil.DecodeData(t, resp, &view)
	assert.Empty(t, view.History)

	// scope=all clears the live board too.
	reportIncident(t, tech, "MECHANICAL")
	resp, err = admin.DELETE("/api/admin/history?scope=all")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = admin.GET("/api/incidents")
	require.NoError(t, err)
	var live []incidentPayload
	testutil.DecodeData(t, resp, &live)
	assert.Empty(t, live)
}
