package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shuttle/internal/ipc"
)

func newGraceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "grace",
		Short: "List grace-area batches past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GraceReport()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Batches) == 0 {
					fmt.Fprintln(stdout, "No expired batches in the grace area")
					return nil
				}

				rows := make([][]string, 0, len(resp.Batches))
				for _, batch := range resp.Batches {
					rows = append(rows, []string{
						batch.User,
						batch.Stamp,
						strconv.Itoa(batch.AgeDays),
						humanize.IBytes(uint64(batch.Bytes)),
					})
				}
				table := renderTable(
					[]string{"User", "Batch", "Age (days)", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
}
