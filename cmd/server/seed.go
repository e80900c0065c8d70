package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fire-team/ticket-router/internal/db"
	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/routing"
)

// seedFile is the directory import format. Skills are a comma separated
// string, as exported from the HR sheet.
type seedFile struct {
	Offices  []models.Office `json:"offices"`
	Managers []struct {
		FullName      string `json:"full_name"`
		OfficeCode    string `json:"office_code"`
		OfficeName    string `json:"office_name"`
		Position      string `json:"position"`
		Skills        string `json:"skills"`
		ActiveTickets int    `json:"active_tickets"`
	} `json:"managers"`
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load offices and managers from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			offices, managers, err := parseSeed(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := db.New(ctx, opts.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpsertOffices(ctx, offices); err != nil {
				return err
			}
			if err := store.UpsertManagers(ctx, managers); err != nil {
				return err
			}
			opts.logger.Info().
				Int("offices", len(offices)).
				Int("managers", len(managers)).
				Msg("directory seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "path to the directory JSON file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseSeed(data []byte) ([]models.Office, []models.Manager, error) {
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, o := range f.Offices {
		if strings.TrimSpace(o.Code) == "" || strings.TrimSpace(o.Name) == "" {
			return nil, nil, fmt.Errorf("office #%d: code and name are required", i+1)
		}
	}
	managers := make([]models.Manager, 0, len(f.Managers))
	for i, m := range f.Managers {
		if strings.TrimSpace(m.FullName) == "" {
			return nil, nil, fmt.Errorf("manager #%d: full_name is required", i+1)
		}
		managers = append(managers, models.Manager{
			FullName:      strings.TrimSpace(m.FullName),
			OfficeCode:    strings.TrimSpace(m.OfficeCode),
			OfficeName:    strings.TrimSpace(m.OfficeName),
			Position:      strings.TrimSpace(m.Position),
			Skills:        routing.ParseSkills(m.Skills),
			ActiveTickets: max(m.ActiveTickets, 0),
		})
	}
	return f.Offices, managers, nil
}
