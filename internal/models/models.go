package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	StatusCreated    AssignmentStatus = "CREATED"
	StatusEnriched   AssignmentStatus = "ENRICHED"
	StatusAssigned   AssignmentStatus = "ASSIGNED"
	StatusUnassigned AssignmentStatus = "UNASSIGNED"
)

// PendingEnrichmentSummary marks tickets whose classifier call did not produce a record.
const PendingEnrichmentSummary = "Pending enrichment..."

// RawTicket is the intake record. It is written once and never mutated by routing.
type RawTicket struct {
	ID          int64     `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Description string    `json:"description" validate:"max=20000"`
	Segment     string    `json:"segment" validate:"max=64"`
	Country     string    `json:"country" validate:"max=128"`
	Region      string    `json:"region" validate:"max=128"`
	City        string    `json:"city" validate:"max=128"`
	Street      string    `json:"street" validate:"max=256"`
	House       string    `json:"house" validate:"max=64"`
	Attachments string    `json:"attachments,omitempty" validate:"max=1024"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasAddress reports whether any raw address component is filled in.
func (r RawTicket) HasAddress() bool {
	for _, part := range []string{r.Country, r.Region, r.City, r.Street, r.House} {
		if strings.TrimSpace(part) != "" {
			return true
		}
	}
	return false
}

// AddressParts returns the non-blank address components, broadest first.
func (r RawTicket) AddressParts() []string {
	var out []string
	for _, part := range []string{r.Country, r.Region, r.City, r.Street, r.House} {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnrichedTicket is the projection routing operates on. The pair
// (ClientID, RawTicketID) is unique.
type EnrichedTicket struct {
	ID                  int64            `json:"id"`
	ClientID            uuid.UUID        `json:"client_id"`
	RawTicketID         int64            `json:"raw_ticket_id"`
	Type                string           `json:"type"`
	Priority            int              `json:"priority"`
	Language            string           `json:"language"`
	Sentiment           string           `json:"sentiment"`
	Summary             string           `json:"summary"`
	Latitude            *float64         `json:"latitude,omitempty"`
	Longitude           *float64         `json:"longitude,omitempty"`
	GeoNormalized       string           `json:"geo_normalized,omitempty"`
	AssignedOfficeID    *int64           `json:"assigned_office_id,omitempty"`
	AssignedOfficeName  string           `json:"assigned_office_name,omitempty"`
	AssignedManagerID   *int64           `json:"assigned_manager_id,omitempty"`
	AssignedManagerName string           `json:"assigned_manager_name,omitempty"`
	Status              AssignmentStatus `json:"status"`
	EnrichedAt          time.Time        `json:"enriched_at"`
	AssignedAt          *time.Time       `json:"assigned_at,omitempty"`
}

func (t EnrichedTicket) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}

func (t EnrichedTicket) IsAssigned() bool {
	return t.AssignedManagerID != nil
}

type Office struct {
	ID        int64    `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (o Office) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

type Manager struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	OfficeCode    string    `json:"office_code"`
	OfficeName    string    `json:"office_name"`
	Position      string    `json:"position"`
	Skills        []string  `json:"skills"`
	ActiveTickets int       `json:"active_tickets"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasSkill matches a skill tag case-insensitively.
func (m Manager) HasSkill(tag string) bool {
	for _, s := range m.Skills {
		if strings.EqualFold(strings.TrimSpace(s), tag) {
			return true
		}
	}
	return false
}

// Enrichment is the normalized classifier output.
type Enrichment struct {
	Type          string `json:"type"`
	Sentiment     string `json:"sentiment"`
	Priority      *int   `json:"priority,omitempty"`
	Language      string `json:"language"`
	Summary       string `json:"summary"`
	GeoNormalized string `json:"geo_normalized"`
}

func (e Enrichment) IsEmpty() bool {
	return e.Type == "" && e.Sentiment == "" && e.Priority == nil &&
		e.Language == "" && e.Summary == "" && e.GeoNormalized == ""
}

// EnrichmentEvent is the inbound enrichment-ready message.
type EnrichmentEvent struct {
	ClientID      uuid.UUID `json:"clientId" validate:"required"`
	RawTicketID   *int64    `json:"rawTicketId,omitempty"`
	Type          string    `json:"type"`
	Priority      *int      `json:"priority,omitempty" validate:"omitempty,min=0,max=10"`
	Language      string    `json:"language"`
	Summary       string    `json:"summary"`
	Sentiment     string    `json:"sentiment"`
	GeoNormalized string    `json:"geo_normalized"`
	Latitude      *float64  `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude     *float64  `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// AssignmentResult is the outbound assignment-result message.
type AssignmentResult struct {
	ClientID            uuid.UUID        `json:"clientId"`
	RawTicketID         int64            `json:"rawTicketId"`
	EnrichedTicketID    int64            `json:"enrichedTicketId"`
	AssignedManagerID   *int64           `json:"assignedManagerId"`
	AssignedManagerName string           `json:"assignedManagerName,omitempty"`
	AssignedOfficeID    *int64           `json:"assignedOfficeId"`
	AssignedOfficeName  string           `json:"assignedOfficeName,omitempty"`
	Status              AssignmentStatus `json:"status"`
}

// ResultFromTicket builds the outbound event for the current ticket state.
func ResultFromTicket(t EnrichedTicket) AssignmentResult {
	status := StatusUnassigned
	if t.IsAssigned() {
		status = StatusAssigned
	}
	return AssignmentResult{
		ClientID:            t.ClientID,
		RawTicketID:         t.RawTicketID,
		EnrichedTicketID:    t.ID,
		AssignedManagerID:   t.AssignedManagerID,
		AssignedManagerName: t.AssignedManagerName,
		AssignedOfficeID:    t.AssignedOfficeID,
		AssignedOfficeName:  t.AssignedOfficeName,
		Status:              status,
	}
}

// ProcessingResult reports one intake item.
type ProcessingResult struct {
	ClientID            string           `json:"clientId"`
	RawTicketID         int64            `json:"rawTicketId,omitempty"`
	EnrichedTicketID    int64            `json:"enrichedTicketId,omitempty"`
	Status              string           `json:"status"`
	Message             string           `json:"message,omitempty"`
	AssignedOfficeName  string           `json:"assignedOfficeName,omitempty"`
	AssignedManagerName string           `json:"assignedManagerName,omitempty"`
	Priority            int              `json:"priority,omitempty"`
	Language            string           `json:"language,omitempty"`
	Type                string           `json:"type,omitempty"`
	Assignment          AssignmentStatus `json:"assignment,omitempty"`
}
