package routing

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/models"
)

type OfficeRule string

const (
	RuleNearestByGeo OfficeRule = "nearest_by_geo"
	RuleTextMatch    OfficeRule = "text_match"
	RuleHubSplit     OfficeRule = "hub_split"
	RuleUnresolved   OfficeRule = "unresolved"
)

const (
	nameInLocationScore    = 120
	addressInLocationScore = 80
	nameTokenScore         = 18
	nameTokenMinLen        = 4
	addressTokenScore      = 6
	addressTokenMinLen     = 5
)

type OfficeDecision struct {
	Office     *models.Office `json:"office,omitempty"`
	Rule       OfficeRule     `json:"rule"`
	DistanceKm float64        `json:"distance_km,omitempty"`
	Score      int            `json:"score,omitempty"`
	Hub        string         `json:"hub,omitempty"`
}

type OfficeResolver struct {
	rules  Rules
	hubs   *HubSplitter
	logger zerolog.Logger
}

func NewOfficeResolver(rules Rules, hubs *HubSplitter, logger zerolog.Logger) *OfficeResolver {
	if hubs == nil {
		hubs = NewHubSplitter(rules.Hubs)
	}
	return &OfficeResolver{
		rules:  rules,
		hubs:   hubs,
		logger: logger.With().Str("component", "office_resolver").Logger(),
	}
}

// Resolve picks the office responsible for t. The first applicable rule wins:
// nearest office by coordinates, best text match against the normalized
// location, hub split for foreign or signal-less tickets.
func (r *OfficeResolver) Resolve(t models.EnrichedTicket, raw models.RawTicket, offices []models.Office) OfficeDecision {
	return r.resolve(t, raw, offices, true)
}

// Preview is Resolve without advancing the hub split.
func (r *OfficeResolver) Preview(t models.EnrichedTicket, raw models.RawTicket, offices []models.Office) OfficeDecision {
	return r.resolve(t, raw, offices, false)
}

func (r *OfficeResolver) resolve(t models.EnrichedTicket, raw models.RawTicket, offices []models.Office, commit bool) OfficeDecision {
	if len(offices) == 0 {
		return OfficeDecision{Rule: RuleUnresolved}
	}

	if t.HasCoordinates() {
		if idx, dist := nearestOffice(*t.Latitude, *t.Longitude, offices); idx >= 0 {
			o := offices[idx]
			return OfficeDecision{Office: &o, Rule: RuleNearestByGeo, DistanceKm: dist}
		}
	}

	location := Normalize(t.GeoNormalized)
	if location != "" {
		if idx, score := bestTextMatch(location, offices); idx >= 0 {
			o := offices[idx]
			return OfficeDecision{Office: &o, Rule: RuleTextMatch, Score: score}
		}
	}

	noSignal := !t.HasCoordinates() && location == "" && !raw.HasAddress()
	if noSignal || !r.rules.IsHomeCountry(raw.Country) {
		pick := r.hubs.Peek
		if commit {
			pick = r.hubs.Pick
		}
		if o, hub := pick(offices); o != nil {
			r.logger.Debug().
				Int64("ticket_id", t.ID).
				Str("country", raw.Country).
				Bool("no_signal", noSignal).
				Str("hub", hub).
				Msg("hub split applied")
			return OfficeDecision{Office: o, Rule: RuleHubSplit, Hub: hub}
		}
	}

	return OfficeDecision{Rule: RuleUnresolved}
}

// bestTextMatch scores every office against the normalized location and
// returns the first office with the highest positive score.
func bestTextMatch(location string, offices []models.Office) (int, int) {
	best, bestScore := -1, 0
	for i, o := range offices {
		if s := textScore(location, o); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

func textScore(location string, o models.Office) int {
	name := Normalize(o.Name)
	address := Normalize(o.Address)

	score := 0
	if name != "" && strings.Contains(location, name) {
		score += nameInLocationScore
	}
	if address != "" && strings.Contains(location, address) {
		score += addressInLocationScore
	}
	for _, tok := range Tokens(name, nameTokenMinLen) {
		if strings.Contains(location, tok) {
			score += nameTokenScore
		}
	}
	for _, tok := range Tokens(address, addressTokenMinLen) {
		if strings.Contains(location, tok) {
			score += addressTokenScore
		}
	}
	return score
}
