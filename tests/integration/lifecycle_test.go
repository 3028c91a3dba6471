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

func TestLifecycle_ReportAssignStartResolve(t *testing.T) {
	tech := asSeedTech(t)

	inc := reportIncident(t, tech, "MECHANICAL")
	assert.Equal(t, "OPEN", inc.Status)
	assert.Equal(t, "MECHANICAL", inc.Team)
	require.Len(t, inc.Logs, 1)
	assert.Equal(t, "REPORTED", inc.Logs[0].Action)

	resp, err := tech.POST(fmt.Sprintf("/api/incidents/%d/assign", inc.ID), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var assigned incidentPayload
	testutil.DecodeData(t, resp, &assigned)
	assert.Equal(t, "ASSIGNED", assigned.Status)
	assert.Equal(t, "819", assigned.AssignedTo)

	resp, err = tech.POST(fmt.Sprintf("/api/incidents/%d/start", inc.ID), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started incidentPayload
	testutil.DecodeData(t, resp, &started)
	assert.Equal(t, "IN_PROGRESS", started.Status)

	resp, err = tech.POST(fmt.Sprintf("/api/incidents/%d/status", inc.ID), map[string]string{
		"status": "WAITING_PARTS",
		"note":   "sem correia",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var waiting incidentPayload
	testutil.DecodeData(t, resp, &waiting)
	assert.Equal(t, "WAITING_PARTS", waiting.Status)

	resp, err = tech.POST(fmt.Sprintf("/api/incidents/%d/resolve", inc.ID), map[string]string{
		"note":      "correia substituída",
		"partsUsed": "correia B-42",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved incidentPayload
	testutil.DecodeData(t, resp, &resolved)
	assert.Equal(t, "RESOLVED", resolved.Status)
	require.NotNil(t, resolved.Durations)
	assert.GreaterOrEqual(t, resolved.Durations.TotalDownMs, int64(0))
	assert.Len(t, resolved.Logs, 5)

	// Resolved incidents leave the live board.
	resp, err = tech.POST(fmt.Sprintf("/api/incidents/%d/start", inc.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLifecycle_DuplicateReportConflicts(t *testing.T) {
	client := newTestClient(t)
	machine := uniqueMachine()

	payload := map[string]any{
		"lineName":       "Linha 1",
		"machineNumber":  machine,
		"operatorNumber": "42",
		"team":           "MECHANICAL",
	}

	resp, err := client.POST("/api/incidents", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/api/incidents", payload)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLifecycle_RequiresTechSession(t *testing.T) {
	anon := newTestClient(t)
	inc := reportIncident(t, anon, "MECHANICAL")

	resp, err := anon.POST(fmt.Sprintf("/api/incidents/%d/assign", inc.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLifecycle_TeamMismatchForbidden(t *testing.T) {
	tech := asSeedTech(t)

	// Seeded tech 819 is mechanical; report for the electrical team.
	inc := reportIncident(t, tech, "ELECTRICAL")

	resp, err := tech.POST(fmt.Sprintf("/api/incidents/%d/assign", inc.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLifecycle_InvalidStatusRejected(t *testing.T) {
	tech := asSeedTech(t)
	inc := reportIncident(t, tech, "MECHANICAL")

	resp, err := tech.WithoutValidation().POST(fmt.Sprintf("/api/incidents/%d/status", inc.ID), map[string]string{
		"status": "RESOLVED",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLifecycle_ValidationErrors(t *testing.T) {
	client := newTestClient(t).WithoutValidation()

	resp, err := client.POST("/api/incidents", map[string]any{
		"machineNumber": "01",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestBoard_ListsNewestFirst(t *testing.T) {
	client := newTestClient(t)

	first := reportIncident(t, client, "MECHANICAL")
	second := reportIncident(t, client, "MECHANICAL")

	resp, err := client.GET("/api/incidents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []incidentPayload
	testutil.DecodeData(t, resp, &list)
	require.GreaterOrEqual(t, len(list), 2)

	var firstIdx, secondIdx int
	for i, inc := range list {
		if inc.ID == first.ID {
			firstIdx = i
		}
		if inc.ID == second.ID {
			secondIdx = i
		}
	}
	assert.Less(t, secondIdx, firstIdx, "later reports render first")
}
