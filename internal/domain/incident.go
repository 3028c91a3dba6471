// Package domain contains the core entities of the breakdown board:
// incidents, their lifecycle statuses, audit logs and the reference-data
// catalog (lines, machines, observation tags, technicians).
package domain

import (
	"strings"
	"time"
)

// Team is the technical discipline responsible for an incident.
type Team string

// Teams.
const (
	TeamMechanical Team = "MECHANICAL"
	TeamElectrical Team = "ELECTRICAL"
)

// NormalizeTeam maps free-form input to a Team. The Portuguese spelling
// used by older clients is accepted; anything unrecognized falls back to
// the mechanical team, matching how reports were classified historically.
func NormalizeTeam(value string) Team {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ELECTRICAL", "ELETRICA", "ELÉTRICA":
		return TeamElectrical
	}
	return TeamMechanical
}

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. There is no transition back to OPEN, and RESOLVED
// is terminal.
const (
	StatusOpen         IncidentStatus = "OPEN"
	StatusAssigned     IncidentStatus = "ASSIGNED"
	StatusInProgress   IncidentStatus = "IN_PROGRESS"
	StatusWaitingParts IncidentStatus = "WAITING_PARTS"
	StatusLongRepair   IncidentStatus = "LONG_REPAIR"
	StatusResolved     IncidentStatus = "RESOLVED"
)

// IsWaiting reports whether the status is a waiting sub-status during
// which downtime accrues as waiting time instead of repair time.
func (s IncidentStatus) IsWaiting() bool {
	return s == StatusWaitingParts || s == StatusLongRepair
}

// LogAction identifies the kind of mutation recorded in an audit entry.
type LogAction string

// Log actions.
const (
	ActionReported      LogAction = "REPORTED"
	ActionAssigned      LogAction = "ASSIGNED"
	ActionWorkStarted   LogAction = "WORK_STARTED"
	ActionStatusChanged LogAction = "STATUS_CHANGED"
	ActionResolved      LogAction = "RESOLVED"
)

// ActorType distinguishes who performed an action.
type ActorType string

// Actor types.
const (
	ActorOperator   ActorType = "OPERATOR"
	ActorTechnician ActorType = "TECH"
	ActorAdmin      ActorType = "ADMIN"
)

// Actor is an already-authenticated identity performing an operation.
// Technicians carry a number, name and team; admins carry IsAdmin.
type Actor struct {
	Number  string
	Name    string
	Team    Team
	IsAdmin bool
}

// LogEntry is one append-only audit record. Every successful mutation of
// an incident appends exactly one entry.
type LogEntry struct {
	At        time.Time      `json:"at"`
	ActorType ActorType      `json:"actorType"`
	ActorID   string         `json:"actorId"`
	ActorName string         `json:"actorName,omitempty"`
	Action    LogAction      `json:"action"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details,omitempty"`
}

// Incident is a reported machine breakdown tracked through its lifecycle.
// The JSON shape matches the persisted document so backups replay cleanly.
type Incident struct {
	ID                int64          `json:"id"`
	Team              Team           `json:"team"`
	Status            IncidentStatus `json:"status"`
	LineName          string         `json:"lineName"`
	MachineNumber     string         `json:"machineNumber"`
	ReportedBy        string         `json:"reportedByOperatorNumber"`
	QuickObservations []string       `json:"quickObservations"`
	OpenedAt          time.Time      `json:"openedAt"`
	AssignedTo        string         `json:"assignedToTechnicianNumber,omitempty"`
	AssignedAt        *time.Time     `json:"assignedAt,omitempty"`
	WorkStartedAt     *time.Time     `json:"workStartedAt,omitempty"`
	ResolvedAt        *time.Time     `json:"resolvedAt,omitempty"`
	WaitingMs         int64          `json:"waitingMs"`
	WaitingSince      *time.Time     `json:"waitingSince,omitempty"`
	Logs              []LogEntry     `json:"logs"`
	Durations         *Durations     `json:"durations,omitempty"`
}

// IsResolved reports whether the incident reached its terminal state.
func (i *Incident) IsResolved() bool {
	return i.Status == StatusResolved
}

// AppendLog appends one audit entry.
func (i *Incident) AppendLog(entry LogEntry) {
	i.Logs = append(i.Logs, entry)
}

// SameAsset reports whether the incident targets the given asset tuple.
// Line and machine comparisons are exact; team is normalized by callers.
func (i *Incident) SameAsset(team Team, lineName, machineNumber string) bool {
	return i.Team == team && i.LineName == lineName && i.MachineNumber == machineNumber
}
