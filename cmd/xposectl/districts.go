package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"xpose-triage/internal/domain/services"
)

func newDistrictsCommand(c *cli) *cobra.Command {
	var file string

	load := func() (*services.DistrictIndex, error) {
		path := file
		if path == "" {
			path = c.cfg.Assignment.DistrictsFile
		}
		if path == "" {
			return nil, errors.New("no districts file, pass --file or set assignment.districts_file")
		}
		return services.LoadDistrictIndex(path)
	}

	cmd := &cobra.Command{
		Use:   "districts",
		Short: "Inspect the district directory",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "districts YAML file")

	states := &cobra.Command{
		Use:   "states [STATE]",
		Short: "List states, or the districts of one state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := load()
			if err != nil {
				return err
			}
			names := idx.States()
			if len(args) == 1 {
				names = idx.Districts(args[0])
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	nearest := &cobra.Command{
		Use:   "nearest LAT LNG",
		Short: "Find the district whose centroid is closest to a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude: %w", err)
			}
			idx, err := load()
			if err != nil {
				return err
			}
			d, dist, err := idx.Nearest(lat, lng)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %s\t%.1f km\n", d.Name, d.State, dist/1000)
			return nil
		},
	}

	cmd.AddCommand(states, nearest)
	return cmd
}
