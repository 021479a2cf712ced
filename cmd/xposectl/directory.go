package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/infrastructure/database"
	"xpose-triage/internal/infrastructure/database/repository"
)

// seedFile is the station directory format read by `directory seed`
type seedFile struct {
	Stations []struct {
		Name      string  `yaml:"name"`
		Address   string  `yaml:"address"`
		Latitude  float64 `yaml:"lat"`
		Longitude float64 `yaml:"lng"`
		Officers  []struct {
			Name  string `yaml:"name"`
			Email string `yaml:"email"`
		} `yaml:"officers"`
	} `yaml:"stations"`
}

func newDirectoryCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage police stations and officers",
	}

	seed := &cobra.Command{
		Use:   "seed FILE",
		Short: "Load stations and officers from YAML in one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			var file seedFile
			if err := yaml.Unmarshal(raw, &file); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}

			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			defer db.Close()

			var stations, officers int
			err = db.WithTx(ctx, func(tx pgx.Tx) error {
				repo := repository.NewStationRepository(tx)
				for _, s := range file.Stations {
					station, err := repo.FindOrCreateByName(ctx, models.Place{
						Name:      s.Name,
						Address:   s.Address,
						Latitude:  s.Latitude,
						Longitude: s.Longitude,
					})
					if err != nil {
						return err
					}
					stations++

					existing, err := repo.ListOfficersByStation(ctx, station.ID)
					if err != nil {
						return err
					}
					known := make(map[string]bool, len(existing))
					for _, o := range existing {
						known[strings.ToLower(o.Email)] = true
					}

					for _, o := range s.Officers {
						if o.Email != "" && known[strings.ToLower(o.Email)] {
							continue
						}
						if err := repo.CreateOfficer(ctx, &models.Officer{
							Name:      o.Name,
							Email:     o.Email,
							StationID: station.ID,
						}); err != nil {
							return err
						}
						officers++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d stations, %d new officers\n", stations, officers)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			defer db.Close()

			stations, err := repository.NewStationRepository(db.Pool()).ListStations(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stations)
		},
	}

	cmd.AddCommand(seed, list)
	return cmd
}
