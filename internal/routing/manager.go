package routing

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/models"
)

const (
	PoolOfficeCode = "office_code"
	PoolOfficeName = "office_name"
	PoolRoster     = "roster"
)

const (
	RelaxedSkillGates = "skill_gates"
	RelaxedAllGates   = "all_gates"
)

type Stage struct {
	Name       string           `json:"name"`
	Candidates []models.Manager `json:"candidates"`
}

// Selection is the outcome of one manager selection. Manager is nil when the
// pool was empty.
type Selection struct {
	Manager         *models.Manager `json:"manager,omitempty"`
	Pool            string          `json:"pool"`
	Stages          []Stage         `json:"stages"`
	Relaxed         string          `json:"relaxed,omitempty"`
	NeedsVIP        bool            `json:"needs_vip"`
	NeedsSpecialist bool            `json:"needs_specialist"`
	NeedsLanguage   string          `json:"needs_language,omitempty"`
	Strategy        string          `json:"strategy"`
}

type ManagerSelector struct {
	rules    Rules
	strategy LoadBalancingStrategy
	logger   zerolog.Logger
}

func NewManagerSelector(rules Rules, strategy LoadBalancingStrategy, logger zerolog.Logger) *ManagerSelector {
	if strategy == nil {
		strategy = &TopTwoRotating{}
	}
	return &ManagerSelector{
		rules:    rules,
		strategy: strategy,
		logger:   logger.With().Str("component", "manager_selector").Logger(),
	}
}

// Select picks a manager for t among the managers affiliated with office.
// Gates are relaxed progressively, so a non-empty pool always yields a manager.
func (s *ManagerSelector) Select(office *models.Office, t models.EnrichedTicket, managers []models.Manager) Selection {
	return s.sel(office, t, managers, true)
}

// Preview is Select without advancing the balancing strategy.
func (s *ManagerSelector) Preview(office *models.Office, t models.EnrichedTicket, managers []models.Manager) Selection {
	return s.sel(office, t, managers, false)
}

func (s *ManagerSelector) sel(office *models.Office, t models.EnrichedTicket, managers []models.Manager, commit bool) Selection {
	pool, poolName := s.pool(office, managers)
	if poolName == PoolRoster && office != nil {
		s.logger.Warn().
			Int64("ticket_id", t.ID).
			Str("office", office.Name).
			Int("roster", len(managers)).
			Msg("no managers affiliated with office, falling back to full roster")
	}

	sel := Selection{
		Pool:            poolName,
		NeedsVIP:        s.rules.NeedsVIP(t),
		NeedsSpecialist: s.rules.NeedsSpecialist(t),
		NeedsLanguage:   s.rules.RequiredLanguage(t),
		Strategy:        s.strategy.Name(),
	}
	sel.Stages = append(sel.Stages, Stage{Name: "pool", Candidates: pool})
	if len(pool) == 0 {
		return sel
	}

	afterVIP := pool
	if sel.NeedsVIP {
		afterVIP = filterManagers(afterVIP, func(m models.Manager) bool {
			return m.HasSkill(s.rules.VIPSkill)
		})
	}
	sel.Stages = append(sel.Stages, Stage{Name: "vip_gate", Candidates: afterVIP})

	afterSpecialist := afterVIP
	if sel.NeedsSpecialist {
		afterSpecialist = filterManagers(afterSpecialist, s.rules.IsSenior)
	}
	sel.Stages = append(sel.Stages, Stage{Name: "specialist_gate", Candidates: afterSpecialist})

	languageOnly := pool
	eligible := afterSpecialist
	if sel.NeedsLanguage != "" {
		hasLang := func(m models.Manager) bool { return s.rules.HasLanguage(m, sel.NeedsLanguage) }
		eligible = filterManagers(eligible, hasLang)
		languageOnly = filterManagers(pool, hasLang)
	}
	sel.Stages = append(sel.Stages, Stage{Name: "language_gate", Candidates: eligible})

	if len(eligible) == 0 {
		if len(languageOnly) > 0 {
			eligible = languageOnly
			sel.Relaxed = RelaxedSkillGates
		} else {
			eligible = pool
			sel.Relaxed = RelaxedAllGates
		}
		sel.Stages = append(sel.Stages, Stage{Name: "relaxed_" + sel.Relaxed, Candidates: eligible})
		s.logger.Warn().
			Int64("ticket_id", t.ID).
			Str("relaxed", sel.Relaxed).
			Bool("needs_vip", sel.NeedsVIP).
			Bool("needs_specialist", sel.NeedsSpecialist).
			Str("needs_language", sel.NeedsLanguage).
			Msg("no manager passed every gate, relaxing filters")
	}

	pick := s.strategy.Peek
	if commit {
		pick = s.strategy.Pick
	}
	picked := pick(eligible, ticketKey(t))
	sel.Manager = &picked
	return sel
}

// pool returns managers affiliated with office by code, then by normalized
// name, then the full roster.
func (s *ManagerSelector) pool(office *models.Office, managers []models.Manager) ([]models.Manager, string) {
	if office != nil {
		if code := strings.TrimSpace(office.Code); code != "" {
			byCode := filterManagers(managers, func(m models.Manager) bool {
				return strings.EqualFold(strings.TrimSpace(m.OfficeCode), code)
			})
			if len(byCode) > 0 {
				return byCode, PoolOfficeCode
			}
		}
		if name := Normalize(office.Name); name != "" {
			byName := filterManagers(managers, func(m models.Manager) bool {
				return Normalize(m.OfficeName) == name
			})
			if len(byName) > 0 {
				return byName, PoolOfficeName
			}
		}
	}
	return managers, PoolRoster
}

// AffiliatedOffice finds the office a manager belongs to, by code and then by
// normalized name.
func AffiliatedOffice(m models.Manager, offices []models.Office) *models.Office {
	if code := strings.TrimSpace(m.OfficeCode); code != "" {
		for i := range offices {
			if strings.EqualFold(strings.TrimSpace(offices[i].Code), code) {
				o := offices[i]
				return &o
			}
		}
	}
	if name := Normalize(m.OfficeName); name != "" {
		for i := range offices {
			if Normalize(offices[i].Name) == name {
				o := offices[i]
				return &o
			}
		}
	}
	return nil
}

func ticketKey(t models.EnrichedTicket) string {
	return t.ClientID.String() + ":" + strconv.FormatInt(t.RawTicketID, 10)
}

func filterManagers(managers []models.Manager, keep func(models.Manager) bool) []models.Manager {
	out := make([]models.Manager, 0, len(managers))
	for _, m := range managers {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
