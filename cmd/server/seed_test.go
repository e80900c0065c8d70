package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fire-team/ticket-router/internal/config"
)

func TestParseSeed(t *testing.T) {
	data := []byte(`{
		"offices": [{"code":"AST","name":"Астана","address":"пр. Мангилик Ел 55","latitude":51.09,"longitude":71.41}],
		"managers": [
			{"full_name":" Айгерим ","office_code":"AST","position":"Главный специалист","skills":"VIP, KZ, RU","active_tickets":-2}
		]
	}`)
	offices, managers, err := parseSeed(data)
	require.NoError(t, err)
	require.Len(t, offices, 1)
	require.Len(t, managers, 1)
	assert.Equal(t, "Айгерим", managers[0].FullName)
	assert.Equal(t, []string{"VIP", "KZ", "RU"}, managers[0].Skills)
	assert.Equal(t, 0, managers[0].ActiveTickets)
}

func TestParseSeedRejectsIncompleteRows(t *testing.T) {
	_, _, err := parseSeed([]byte(`{"offices":[{"code":"","name":"x"}]}`))
	assert.Error(t, err)

	_, _, err = parseSeed([]byte(`{"managers":[{"full_name":""}]}`))
	assert.Error(t, err)

	_, _, err = parseSeed([]byte(`[`))
	assert.Error(t, err)
}

func TestRulesFromConfigSplitsEnvLists(t *testing.T) {
	rules := rulesFromConfig(config.Config{
		HomeCountries:       []string{"kz, казахстан"},
		HubPrimaryName:      "ASTANA",
		HubPrimaryAliases:   []string{"астана,astana"},
		HubSecondaryName:    "ALMATY",
		HubSecondaryAliases: []string{"алматы"},
	})
	assert.Equal(t, []string{"kz", "казахстан"}, rules.HomeCountries)
	require.Len(t, rules.Hubs, 2)
	assert.Equal(t, []string{"астана", "astana"}, rules.Hubs[0].Aliases)
	assert.Equal(t, "RU", rules.HomeLanguage)
}
