// Package catalog manages the reference data administrators maintain:
// production lines, machines, quick observation tags and technicians.
package catalog

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/store"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PINHasher derives a stored credential from a raw PIN. The identity
// package provides the implementation; catalog only stores the result.
type PINHasher interface {
	Hash(pin string) *domain.Credential
}

// SessionRevoker drops live sessions of a technician. Called when an
// admin deactivates or deletes one, so stale tokens stop working at
// once instead of at expiry.
type SessionRevoker interface {
	RevokeTechnician(number string)
}

// Service implements catalog CRUD over the document repository.
type Service struct {
	repo    *store.Repo
	hasher  PINHasher
	revoker SessionRevoker
}

// NewService creates the catalog service.
func NewService(repo *store.Repo, hasher PINHasher, revoker SessionRevoker) *Service {
	return &Service{repo: repo, hasher: hasher, revoker: revoker}
}

// foldKey lowercases, trims and strips diacritics, so "Linha Três" and
// "linha tres" collide as duplicates. Portuguese line names carry accents
// inconsistently across terminals.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func newID() string { return uuid.NewString() }

// Snapshot is the public reference-data view served to floor terminals:
// active entries only, technician credentials reduced to a hasPin flag.
type Snapshot struct {
	Lines             []domain.Line             `json:"lines"`
	Machines          []domain.Machine          `json:"machines"`
	QuickObservations []domain.QuickObservation `json:"quickObservations"`
}

// Snapshot returns the active reference data for unauthenticated clients.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Lines:             []domain.Line{},
		Machines:          []domain.Machine{},
		QuickObservations: []domain.QuickObservation{},
	}
	err := s.repo.View(ctx, func(doc *store.Document) error {
		for _, l := range doc.Config.Lines {
			if l.Active {
				snap.Lines = append(snap.Lines, l)
			}
		}
		for _, m := range doc.Config.Machines {
			if m.Active {
				snap.Machines = append(snap.Machines, m)
			}
		}
		for _, q := range doc.Config.QuickObservations {
			if q.Active {
				snap.QuickObservations = append(snap.QuickObservations, q)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// TechnicianView is a technician listing entry with the credential
// reduced to a presence flag.
type TechnicianView struct {
	ID     string      `json:"id"`
	Number string      `json:"number"`
	Name   string      `json:"name"`
	Team   domain.Team `json:"team"`
	Active bool        `json:"active"`
	HasPIN bool        `json:"hasPin"`
}

func viewOf(t domain.Technician) TechnicianView {
	return TechnicianView{
		ID:     t.ID,
		Number: t.Number,
		Name:   t.Name,
		Team:   t.Team,
		Active: t.Active,
		HasPIN: t.HasPIN(),
	}
}

// Technicians lists technicians. Team narrows to one discipline;
// includeInactive is the admin view, the public listing shows active only.
func (s *Service) Technicians(ctx context.Context, team domain.Team, includeInactive bool) ([]TechnicianView, error) {
	views := []TechnicianView{}
	err := s.repo.View(ctx, func(doc *store.Document) error {
		for _, t := range doc.Config.Technicians {
			if !includeInactive && !t.Active {
				continue
			}
			if team != "" && t.Team != team {
				continue
			}
			views = append(views, viewOf(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// AdminConfig is the full reference-data view for the admin console,
// inactive entries included and credentials masked.
type AdminConfig struct {
	Lines             []domain.Line             `json:"lines"`
	Machines          []domain.Machine          `json:"machines"`
	QuickObservations []domain.QuickObservation `json:"quickObservations"`
	Technicians       []TechnicianView          `json:"technicians"`
}

// AdminConfig returns all reference data for the admin console.
func (s *Service) AdminConfig(ctx context.Context) (*AdminConfig, error) {
	cfg := &AdminConfig{
		Lines:             []domain.Line{},
		Machines:          []domain.Machine{},
		QuickObservations: []domain.QuickObservation{},
		Technicians:       []TechnicianView{},
	}
	err := s.repo.View(ctx, func(doc *store.Document) error {
		cfg.Lines = append(cfg.Lines, doc.Config.Lines...)
		cfg.Machines = append(cfg.Machines, doc.Config.Machines...)
		cfg.QuickObservations = append(cfg.QuickObservations, doc.Config.QuickObservations...)
		for _, t := range doc.Config.Technicians {
			cfg.Technicians = append(cfg.Technicians, viewOf(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateLine adds a production line. Names are unique ignoring case and
// diacritics, inactive lines included.
func (s *Service) CreateLine(ctx context.Context, name string) (*domain.Line, error) {
	var line domain.Line
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		key := foldKey(name)
		for _, l := range doc.Config.Lines {
			if foldKey(l.Name) == key {
				return ErrDuplicate
			}
		}
		line = domain.Line{ID: newID(), Name: strings.TrimSpace(name), Active: true}
		doc.Config.Lines = append(doc.Config.Lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// LineUpdate is a partial line update; nil fields are left unchanged.
type LineUpdate struct {
	Name   *string
	Active *bool
}

// UpdateLine renames or toggles a line.
func (s *Service) UpdateLine(ctx context.Context, id string, update LineUpdate) (*domain.Line, error) {
	var line domain.Line
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		idx := -1
		for i, l := range doc.Config.Lines {
			if l.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}

		if update.Name != nil {
			key := foldKey(*update.Name)
			for i, l := range doc.Config.Lines {
				if i != idx && foldKey(l.Name) == key {
					return ErrDuplicate
				}
			}
			doc.Config.Lines[idx].Name = strings.TrimSpace(*update.Name)
		}
		if update.Active != nil {
			doc.Config.Lines[idx].Active = *update.Active
		}
		line = doc.Config.Lines[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// DeleteLine removes a line and all machines attached to it.
func (s *Service) DeleteLine(ctx context.Context, id string) error {
	return s.repo.Update(ctx, func(doc *store.Document) error {
		idx := -1
		for i, l := range doc.Config.Lines {
			if l.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		doc.Config.Lines = append(doc.Config.Lines[:idx], doc.Config.Lines[idx+1:]...)

		kept := doc.Config.Machines[:0]
		for _, m := range doc.Config.Machines {
			if m.LineID != id {
				kept = append(kept, m)
			}
		}
		doc.Config.Machines = kept
		return nil
	})
}

// MachineInput is one row of a machine batch create.
type MachineInput struct {
	Number string
	Name   string
}

// CreateMachines adds machines to a line in one batch. Blank rows are
// skipped; a row whose number already exists on the line fails the whole
// batch, so partial imports never happen.
func (s *Service) CreateMachines(ctx context.Context, lineID string, inputs []MachineInput) ([]domain.Machine, error) {
	var created []domain.Machine
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		found := false
		for _, l := range doc.Config.Lines {
			if l.ID == lineID {
				found = true
				break
			}
		}
		if !found {
			return ErrNotFound
		}

		taken := map[string]bool{}
		for _, m := range doc.Config.Machines {
			if m.LineID == lineID {
				taken[foldKey(m.Number)] = true
			}
		}

		created = nil
		for _, in := range inputs {
			number := strings.TrimSpace(in.Number)
			if number == "" {
				continue
			}
			key := foldKey(number)
			if taken[key] {
				return ErrDuplicate
			}
			taken[key] = true

			name := strings.TrimSpace(in.Name)
			if name == "" {
				name = "Máquina " + number
			}
			created = append(created, domain.Machine{
				ID:     newID(),
				LineID: lineID,
				Number: number,
				Name:   name,
				Active: true,
			})
		}
		if len(created) == 0 {
			return ErrEmptyBatch
		}

		doc.Config.Machines = append(doc.Config.Machines, created...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MachineUpdate is a partial machine update; nil fields are left unchanged.
type MachineUpdate struct {
	Number *string
	Name   *string
	Active *bool
}

// UpdateMachine edits or toggles a machine.
func (s *Service) UpdateMachine(ctx context.Context, id string, update MachineUpdate) (*domain.Machine, error) {
	var machine domain.Machine
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		idx := -1
		for i, m := range doc.Config.Machines {
			if m.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}

		if update.Number != nil {
			key := foldKey(*update.Number)
			for i, m := range doc.Config.Machines {
				if i != idx && m.LineID == doc.Config.Machines[idx].LineID && foldKey(m.Number) == key {
					return ErrDuplicate
				}
			}
			doc.Config.Machines[idx].Number = strings.TrimSpace(*update.Number)
		}
		if update.Name != nil {
			doc.Config.Machines[idx].Name = strings.TrimSpace(*update.Name)
		}
		if update.Active != nil {
			doc.Config.Machines[idx].Active = *update.Active
		}
		machine = doc.Config.Machines[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &machine, nil
}

// DeleteMachine removes a machine.
func (s *Service) DeleteMachine(ctx context.Context, id string) error {
	return s.repo.Update(ctx, func(doc *store.Document) error {
		for i, m := range doc.Config.Machines {
			if m.ID == id {
				doc.Config.Machines = append(doc.Config.Machines[:i], doc.Config.Machines[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// CreateObservation adds a quick observation tag.
func (s *Service) CreateObservation(ctx context.Context, text string) (*domain.QuickObservation, error) {
	var obs domain.QuickObservation
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		key := foldKey(text)
		for _, q := range doc.Config.QuickObservations {
			if foldKey(q.Text) == key {
				return ErrDuplicate
			}
		}
		obs = domain.QuickObservation{ID: newID(), Text: strings.TrimSpace(text), Active: true}
		doc.Config.QuickObservations = append(doc.Config.QuickObservations, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// ObservationUpdate is a partial observation update.
type ObservationUpdate struct {
	Text   *string
	Active *bool
}

// UpdateObservation edits or toggles a quick observation tag.
func (s *Service) UpdateObservation(ctx context.Context, id string, update ObservationUpdate) (*domain.QuickObservation, error) {
	var obs domain.QuickObservation
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		idx := -1
		for i, q := range doc.Config.QuickObservations {
			if q.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}

		if update.Text != nil {
			key := foldKey(*update.Text)
			for i, q := range doc.Config.QuickObservations {
				if i != idx && foldKey(q.Text) == key {
					return ErrDuplicate
				}
			}
			doc.Config.QuickObservations[idx].Text = strings.TrimSpace(*update.Text)
		}
		if update.Active != nil {
			doc.Config.QuickObservations[idx].Active = *update.Active
		}
		obs = doc.Config.QuickObservations[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// DeleteObservation removes a quick observation tag.
func (s *Service) DeleteObservation(ctx context.Context, id string) error {
	return s.repo.Update(ctx, func(doc *store.Document) error {
		for i, q := range doc.Config.QuickObservations {
			if q.ID == id {
				doc.Config.QuickObservations = append(doc.Config.QuickObservations[:i], doc.Config.QuickObservations[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// TechnicianInput holds data for creating a technician. PIN is optional;
// a technician without one cannot log in until an admin sets it.
type TechnicianInput struct {
	Number string
	Name   string
	Team   string
	PIN    string
}

// CreateTechnician adds a technician. Numbers are unique across teams.
func (s *Service) CreateTechnician(ctx context.Context, input TechnicianInput) (*TechnicianView, error) {
	var view TechnicianView
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		number := strings.TrimSpace(input.Number)
		for _, t := range doc.Config.Technicians {
			if t.Number == number {
				return ErrDuplicate
			}
		}

		tech := domain.Technician{
			ID:     newID(),
			Number: number,
			Name:   strings.TrimSpace(input.Name),
			Team:   domain.NormalizeTeam(input.Team),
			Active: true,
		}
		if input.PIN != "" {
			tech.Credential = s.hasher.Hash(input.PIN)
		}
		doc.Config.Technicians = append(doc.Config.Technicians, tech)
		view = viewOf(tech)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// TechnicianUpdate is a partial technician update. A non-empty PIN
// replaces the stored credential with a freshly derived one.
type TechnicianUpdate struct {
	Name   *string
	Team   *string
	Active *bool
	PIN    string
}

// UpdateTechnician edits a technician, optionally rotating the PIN.
// Deactivation revokes the technician's live sessions.
func (s *Service) UpdateTechnician(ctx context.Context, id string, update TechnicianUpdate) (*TechnicianView, error) {
	var view TechnicianView
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		idx := -1
		for i, t := range doc.Config.Technicians {
			if t.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}

		tech := &doc.Config.Technicians[idx]
		if update.Name != nil {
			tech.Name = strings.TrimSpace(*update.Name)
		}
		if update.Team != nil {
			tech.Team = domain.NormalizeTeam(*update.Team)
		}
		if update.Active != nil {
			tech.Active = *update.Active
		}
		if update.PIN != "" {
			tech.Credential = s.hasher.Hash(update.PIN)
		}
		view = viewOf(*tech)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if update.Active != nil && !*update.Active {
		s.revoker.RevokeTechnician(view.Number)
	}
	return &view, nil
}

// DeleteTechnician removes a technician and revokes their sessions.
// Resolved history keeps the technician number, so past incidents stay
// attributable.
func (s *Service) DeleteTechnician(ctx context.Context, id string) error {
	var number string
	err := s.repo.Update(ctx, func(doc *store.Document) error {
		for i, t := range doc.Config.Technicians {
			if t.ID == id {
				number = t.Number
				doc.Config.Technicians = append(doc.Config.Technicians[:i], doc.Config.Technicians[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return err
	}
	s.revoker.RevokeTechnician(number)
	return nil
}
