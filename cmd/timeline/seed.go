package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/exam-timeline/internal/seed"
)

func newSeedCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load rooms, exams and allocations from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}

			svc, err := openServices(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); cerr != nil {
					c.logger.Error("failed to close storage", "error", cerr)
				}
			}()

			res, err := seed.NewSeeder(svc.rooms, svc.exams, svc.allocations, c.logger).Apply(ctx, file)
			if err != nil {
				c.logger.ErrorContext(ctx, "seed failed", "error", err)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rooms: %d created, %d reused\nexams: %d created, %d reused\nallocations: %d created\n",
				res.RoomsCreated, res.RoomsReused, res.ExamsCreated, res.ExamsReused, res.AllocationsCreated)
			return err
		},
	}
}
