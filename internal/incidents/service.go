// Package incidents owns the incident lifecycle: reporting, claiming,
// waiting-time accounting and resolution, plus the resolved history.
package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/pkg/metrics"
	"github.com/plantops/breakdown-board/internal/store"
)

// Event names emitted on successful mutations.
const (
	EventIncidentCreated = "incident_created"
	EventIncidentUpdated = "incident_updated"
	EventHistoryDeleted  = "history_deleted"
)

// Notifier broadcasts lifecycle events, fire-and-forget.
type Notifier interface {
	Emit(event string, payload any)
}

// Service implements the incident lifecycle over the document repository.
// All mutations run inside a single repository update, so either the full
// transition persists or nothing does.
type Service struct {
	repo     *store.Repo
	notifier Notifier
	now      func() time.Time
}

// NewService creates the incident service.
func NewService(repo *store.Repo, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

// ReportInput holds data for reporting a breakdown.
type ReportInput struct {
	LineName       string
	MachineNumber  string
	OperatorNumber string
	Observations   []string
	Team           string
}

// Report creates a new incident in OPEN. At most one unresolved incident
// may exist per (team, line, machine); a duplicate fails with
// ErrDuplicateOpen.
func (s *Service) Report(ctx context.Context, input ReportInput) (*domain.Incident, error) {
	team := domain.NormalizeTeam(input.Team)
	at := s.now()

	observations := make([]string, len(input.Observations))
	copy(observations, input.Observations)

	var incident *domain.Incident
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		for _, existing := range doc.Incidents {
			if !existing.IsResolved() && existing.SameAsset(team, input.LineName, input.MachineNumber) {
				return ErrDuplicateOpen
			}
		}

		incident = &domain.Incident{
			ID:                doc.NextIncidentID,
			Team:              team,
			Status:            domain.StatusOpen,
			LineName:          input.LineName,
			MachineNumber:     input.MachineNumber,
			ReportedBy:        input.OperatorNumber,
			QuickObservations: observations,
			OpenedAt:          at,
			Logs: []domain.LogEntry{{
				At:        at,
				ActorType: domain.ActorOperator,
				ActorID:   input.OperatorNumber,
				Action:    domain.ActionReported,
				Summary:   fmt.Sprintf("Operator %s reported a breakdown.", input.OperatorNumber),
				Details: map[string]any{
					"lineName":          input.LineName,
					"machineNumber":     input.MachineNumber,
					"quickObservations": observations,
				},
			}},
		}
		doc.NextIncidentID++

		// Newest first, matching how the floor dashboard renders.
		doc.Incidents = append([]*domain.Incident{incident}, doc.Incidents...)
		metrics.IncidentsLive.Set(float64(len(doc.Incidents)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(EventIncidentCreated, map[string]int64{"id": incident.ID})
	return incident, nil
}

// Assign claims the incident for the acting technician. The first
// technician to touch an incident becomes its owner of record; later
// assigns change the status but never the owner.
func (s *Service) Assign(ctx context.Context, id int64, actor domain.Actor) (*domain.Incident, error) {
	return s.transition(ctx, id, actor, func(inc *domain.Incident, at time.Time) {
		s.claim(inc, actor, at)
		inc.Status = domain.StatusAssigned
		inc.AppendLog(domain.LogEntry{
			At:        at,
			ActorType: domain.ActorTechnician,
			ActorID:   actor.Number,
			ActorName: actor.Name,
			Action:    domain.ActionAssigned,
			Summary:   fmt.Sprintf("Technician %s took the incident.", actor.Number),
			Details:   map[string]any{"status": domain.StatusAssigned},
		})
	})
}

// Start moves the incident into IN_PROGRESS, flushing any pending
// waiting interval and stamping workStartedAt on first entry.
func (s *Service) Start(ctx context.Context, id int64, actor domain.Actor) (*domain.Incident, error) {
	return s.transition(ctx, id, actor, func(inc *domain.Incident, at time.Time) {
		domain.AccrueWaiting(inc, at)
		s.claim(inc, actor, at)
		if inc.WorkStartedAt == nil {
			t := at
			inc.WorkStartedAt = &t
		}
		inc.Status = domain.StatusInProgress
		inc.AppendLog(domain.LogEntry{
			At:        at,
			ActorType: domain.ActorTechnician,
			ActorID:   actor.Number,
			ActorName: actor.Name,
			Action:    domain.ActionWorkStarted,
			Summary:   fmt.Sprintf("Technician %s started working.", actor.Number),
			Details:   map[string]any{"workStartedAt": *inc.WorkStartedAt},
		})
	})
}

// SetStatus moves the incident into one of the waiting sub-statuses. A
// waiting window already in progress is kept, so hopping between the two
// waiting statuses counts as one continuous interval.
func (s *Service) SetStatus(ctx context.Context, id int64, actor domain.Actor, status domain.IncidentStatus, note string) (*domain.Incident, error) {
	if !status.IsWaiting() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	return s.transition(ctx, id, actor, func(inc *domain.Incident, at time.Time) {
		s.claim(inc, actor, at)
		domain.EnterWaiting(inc, at)
		inc.Status = status
		inc.AppendLog(domain.LogEntry{
			At:        at,
			ActorType: domain.ActorTechnician,
			ActorID:   actor.Number,
			ActorName: actor.Name,
			Action:    domain.ActionStatusChanged,
			Summary:   fmt.Sprintf("Technician %s changed status to %s.", actor.Number, status),
			Details:   map[string]any{"status": status, "note": note},
		})
	})
}

// Resolve terminates the incident: flushes waiting time, stamps any
// missing ownership timestamps, attaches the durations snapshot and
// moves the record from the live set to history.
func (s *Service) Resolve(ctx context.Context, id int64, actor domain.Actor, note, partsUsed string) (*domain.Incident, error) {
	at := s.now()

	var resolved *domain.Incident
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		inc := doc.FindIncident(id)
		if inc == nil {
			return ErrNotFound
		}
		if inc.Team != actor.Team {
			return ErrTeamMismatch
		}

		domain.AccrueWaiting(inc, at)
		s.claim(inc, actor, at)
		if inc.WorkStartedAt == nil {
			t := at
			inc.WorkStartedAt = &t
		}
		t := at
		inc.ResolvedAt = &t
		inc.Status = domain.StatusResolved

		inc.AppendLog(domain.LogEntry{
			At:        at,
			ActorType: domain.ActorTechnician,
			ActorID:   actor.Number,
			ActorName: actor.Name,
			Action:    domain.ActionResolved,
			Summary:   fmt.Sprintf("Machine back up, resolved by technician %s.", actor.Number),
			Details:   map[string]any{"resolvedAt": at, "note": note, "partsUsed": partsUsed},
		})

		inc.Durations = domain.ComputeDurations(inc)

		doc.History = append([]*domain.Incident{inc}, doc.History...)
		doc.RemoveIncident(id)
		metrics.IncidentsLive.Set(float64(len(doc.Incidents)))

		resolved = inc
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncidentsResolvedTotal.Inc()
	s.notifier.Emit(EventIncidentUpdated, map[string]int64{"id": id})
	return resolved, nil
}

// List returns the live incident set, newest first.
func (s *Service) List(ctx context.Context) ([]*domain.Incident, error) {
	var list []*domain.Incident
	err := s.repo.View(ctx, func(doc *store.Document) error {
		list = doc.Incidents
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// HistoryFilter narrows the resolved-incident listing.
type HistoryFilter struct {
	From             *time.Time // resolvedAt lower bound, inclusive
	To               *time.Time // resolvedAt upper bound, inclusive
	Line             string     // case-insensitive substring on line name
	Machine          string     // case-insensitive substring on machine number
	TechnicianNumber string     // exact match on the assigned technician
}

// History returns resolved incidents matching the filter. Technician
// actors only ever see incidents assigned to them; admins see all.
func (s *Service) History(ctx context.Context, actor domain.Actor, filter HistoryFilter) ([]*domain.Incident, error) {
	var items []*domain.Incident
	err := s.repo.View(ctx, func(doc *store.Document) error {
		for _, inc := range doc.History {
			if !actor.IsAdmin && inc.AssignedTo != actor.Number {
				continue
			}
			if !matchesHistoryFilter(inc, filter) {
				continue
			}
			items = append(items, inc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Incident{}
	}
	return items, nil
}

// PurgeScope selects what PurgeHistory deletes.
type PurgeScope string

// Purge scopes.
const (
	// PurgeResolved clears only the resolved history.
	PurgeResolved PurgeScope = "resolved"
	// PurgeAll clears history and the live set and resets the id counter.
	PurgeAll PurgeScope = "all"
)

// PurgeHistory deletes resolved incidents, and with PurgeAll the live
// set too. Emits a history_deleted event on success.
func (s *Service) PurgeHistory(ctx context.Context, scope PurgeScope) error {
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		doc.History = []*domain.Incident{}
		if scope == PurgeAll {
			doc.Incidents = []*domain.Incident{}
			doc.NextIncidentID = 1
			metrics.IncidentsLive.Set(0)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Emit(EventHistoryDeleted, map[string]PurgeScope{"scope": scope})
	return nil
}

// transition runs one technician-initiated mutation on a live incident:
// lookup, team authorization, the mutation itself, then persistence and
// the update event. An authorization failure leaves the incident
// untouched and appends no log entry.
func (s *Service) transition(ctx context.Context, id int64, actor domain.Actor, mutate func(inc *domain.Incident, at time.Time)) (*domain.Incident, error) {
	at := s.now()

	var updated *domain.Incident
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		inc := doc.FindIncident(id)
		if inc == nil {
			return ErrNotFound
		}
		if inc.Team != actor.Team {
			return ErrTeamMismatch
		}

		mutate(inc, at)
		updated = inc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(EventIncidentUpdated, map[string]int64{"id": id})
	return updated, nil
}

// claim records the acting technician as owner if the incident has none.
// First writer wins; a later actor never overwrites the assignment.
func (s *Service) claim(inc *domain.Incident, actor domain.Actor, at time.Time) {
	if inc.AssignedTo != "" {
		return
	}
	inc.AssignedTo = actor.Number
	if inc.AssignedAt == nil {
		t := at
		inc.AssignedAt = &t
	}
}

func matchesHistoryFilter(inc *domain.Incident, f HistoryFilter) bool {
	if f.From != nil && (inc.ResolvedAt == nil || inc.ResolvedAt.Before(*f.From)) {
		return false
	}
	if f.To != nil && (inc.ResolvedAt == nil || inc.ResolvedAt.After(*f.To)) {
		return false
	}
	if f.Line != "" && !containsFold(inc.LineName, f.Line) {
		return false
	}
	if f.Machine != "" && !containsFold(inc.MachineNumber, f.Machine) {
		return false
	}
	if f.TechnicianNumber != "" && inc.AssignedTo != f.TechnicianNumber {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
