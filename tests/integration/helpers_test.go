//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/plantops/breakdown-board/internal/testutil"
	"github.com/stretchr/testify/require"
)

var machineSeq atomic.Int64

// uniqueMachine returns a machine number unused by other tests, so
// duplicate-open checks never trip across tests sharing the server.
func uniqueMachine() string {
	return fmt.Sprintf("it-%03d", machineSeq.Add(1))
}

type incidentPayload struct {
	ID                int64    `json:"id"`
	Team              string   `json:"team"`
	Status            string   `json:"status"`
	LineName          string   `json:"lineName"`
	MachineNumber     string   `json:"machineNumber"`
	AssignedTo        string   `json:"assignedToTechnicianNumber"`
	WaitingMs         int64    `json:"waitingMs"`
	QuickObservations []string `json:"quickObservations"`
	Logs              []struct {
		Action string `json:"action"`
	} `json:"logs"`
	Durations *struct {
		TotalDownMs int64 `json:"totalDownMs"`
		WaitingMs   int64 `json:"waitingMs"`
	} `json:"durations"`
}

// reportIncident reports a breakdown on the seeded line with a unique
// machine number and returns the created incident.
func reportIncident(t *testing.T, client *testutil.Client, team string) incidentPayload {
	t.Helper()

	resp, err := client.POST("/api/incidents", map[string]any{
		"lineName":       "Linha 1",
		"machineNumber":  uniqueMachine(),
		"operatorNumber": "42",
		"observations":   []string{"Não arranca"},
		"team":           team,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inc incidentPayload
	testutil.DecodeData(t, resp, &inc)
	return inc
}

// asAdmin returns a client logged in with the suite's admin PIN.
func asAdmin(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.LoginAsAdmin(t, testAdminPIN)
	return client
}

// asSeedTech returns a client logged in as the seeded technician 819.
func asSeedTech(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.LoginAsSeedTech(t)
	return client
}
