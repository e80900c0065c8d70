package enrichment

import (
	"context"
	"strings"

	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/utils"
)

// Stub is an offline Enricher for local runs without a webhook. Its output is
// a pure function of the ticket's client id and description.
type Stub struct{}

func (Stub) Enrich(_ context.Context, t models.RawTicket) (*models.Enrichment, error) {
	h := utils.HashStringToUint64(t.ClientID.String() + t.Description)

	priorities := []int{3, 5, 7, 9, 10}
	langs := []string{"RU", "KZ", "ENG"}
	types := []string{"Консультация", "Жалоба", "Смена данных", "Мошеннические действия", "Претензия"}
	sentiments := []string{"Позитивный", "Нейтральный", "Негативный"}

	priority := priorities[h%uint64(len(priorities))]
	summary := strings.TrimSpace(t.Description)
	if r := []rune(summary); len(r) > 140 {
		summary = string(r[:140]) + "..."
	}

	return &models.Enrichment{
		Type:          types[(h/13)%uint64(len(types))],
		Sentiment:     sentiments[(h/17)%uint64(len(sentiments))],
		Priority:      &priority,
		Language:      langs[(h/7)%uint64(len(langs))],
		Summary:       summary,
		GeoNormalized: strings.Join(t.AddressParts(), ", "),
	}, nil
}
