// Package store defines the persisted document model and the repository
// that serializes whole-document read/mutate/write cycles over a backend.
package store

import "github.com/plantops/breakdown-board/internal/domain"

// Config is the reference-data sub-document managed by administrators.
type Config struct {
	Lines             []domain.Line             `json:"lines"`
	Machines          []domain.Machine          `json:"machines"`
	QuickObservations []domain.QuickObservation `json:"quickObservations"`
	Technicians       []domain.Technician       `json:"technicians"`
}

// Document is the whole persisted state: reference data, the live
// incident set, the resolved history and the id counter.
type Document struct {
	Config         Config             `json:"config"`
	Incidents      []*domain.Incident `json:"incidents"`
	History        []*domain.Incident `json:"history"`
	NextIncidentID int64              `json:"nextIncidentId"`
}

// Seed returns the document written on first run: one line, one machine,
// three observation tags and one technician with a known PIN, enough to
// exercise a fresh installation.
func Seed() *Document {
	return &Document{
		Config: Config{
			Lines: []domain.Line{
				{ID: "L1", Name: "Linha 1", Active: true},
			},
			Machines: []domain.Machine{
				{ID: "M1", LineID: "L1", Number: "01", Name: "Máquina 01", Active: true},
			},
			QuickObservations: []domain.QuickObservation{
				{ID: "Q1", Text: "Não arranca", Active: true},
				{ID: "Q2", Text: "Barulho anormal", Active: true},
				{ID: "Q3", Text: "Paragens intermitentes", Active: true},
			},
			Technicians: []domain.Technician{
				{
					ID:     "T1",
					Number: "819",
					Name:   "Técnico 819",
					Team:   domain.TeamMechanical,
					Active: true,
					Credential: &domain.Credential{
						Scheme: domain.CredentialPlain,
						Value:  "1234",
					},
				},
			},
		},
		Incidents:      []*domain.Incident{},
		History:        []*domain.Incident{},
		NextIncidentID: 1,
	}
}

// FindIncident returns the live incident with the given id, or nil.
func (d *Document) FindIncident(id int64) *domain.Incident {
	for _, inc := range d.Incidents {
		if inc.ID == id {
			return inc
		}
	}
	return nil
}

// RemoveIncident removes the live incident with the given id.
func (d *Document) RemoveIncident(id int64) {
	kept := d.Incidents[:0]
	for _, inc := range d.Incidents {
		if inc.ID != id {
			kept = append(kept, inc)
		}
	}
	d.Incidents = kept
}
