package routing

import (
	"strings"

	"github.com/fire-team/ticket-router/internal/models"
)

// HubGroup is a high-volume office group identified by name aliases.
type HubGroup struct {
	Name    string
	Aliases []string
}

// Rules holds the configurable knobs of office and manager routing.
type Rules struct {
	HomeCountries []string
	HomeLanguage  string

	VIPTypes    []string
	VIPPriority int
	VIPSkill    string

	SpecialistTypeMarkers []string
	SeniorPositionMarkers []string

	Hubs []HubGroup
}

func DefaultRules() Rules {
	return Rules{
		HomeCountries:         []string{"казахстан", "kazakhstan", "қазақстан", "kz", "рк"},
		HomeLanguage:          "RU",
		VIPTypes:              []string{"vip", "претензия", "жалоба", "complaint"},
		VIPPriority:           8,
		VIPSkill:              "VIP",
		SpecialistTypeMarkers: []string{"смена", "данн", "change of data", "data change", "account"},
		SeniorPositionMarkers: []string{"глав", "chief", "senior", "head"},
		Hubs: []HubGroup{
			{Name: "ASTANA", Aliases: []string{"астана", "astana", "нур-султан", "nur-sultan"}},
			{Name: "ALMATY", Aliases: []string{"алматы", "almaty", "алма-ата", "alma-ata"}},
		},
	}
}

// IsHomeCountry treats a blank country as home.
func (r Rules) IsHomeCountry(country string) bool {
	c := Normalize(country)
	if c == "" {
		return true
	}
	for _, alias := range r.HomeCountries {
		if containsPhrase(c, Normalize(alias)) {
			return true
		}
	}
	return false
}

func (r Rules) NeedsVIP(t models.EnrichedTicket) bool {
	if r.VIPPriority > 0 && t.Priority >= r.VIPPriority {
		return true
	}
	typ := Normalize(t.Type)
	if typ == "" {
		return false
	}
	for _, v := range r.VIPTypes {
		if typ == Normalize(v) {
			return true
		}
	}
	return false
}

func (r Rules) NeedsSpecialist(t models.EnrichedTicket) bool {
	typ := Normalize(t.Type)
	if typ == "" {
		return false
	}
	for _, marker := range r.SpecialistTypeMarkers {
		if m := Normalize(marker); m != "" && strings.Contains(typ, m) {
			return true
		}
	}
	return false
}

// RequiredLanguage returns the language skill a ticket requires, or "" when
// the ticket is in the home language.
func (r Rules) RequiredLanguage(t models.EnrichedTicket) string {
	lang := NormalizeLanguage(t.Language)
	if lang == "" || lang == NormalizeLanguage(r.HomeLanguage) {
		return ""
	}
	return lang
}

func (r Rules) IsSenior(m models.Manager) bool {
	pos := Normalize(m.Position)
	if pos == "" {
		return false
	}
	for _, marker := range r.SeniorPositionMarkers {
		if mk := Normalize(marker); mk != "" && strings.Contains(pos, mk) {
			return true
		}
	}
	return false
}

func (r Rules) HasLanguage(m models.Manager, lang string) bool {
	for _, s := range m.Skills {
		if NormalizeLanguage(s) == lang {
			return true
		}
	}
	return false
}
