package main

import (
	"context"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/user"
)

func (cli *commandLine) statsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the disciplinary forms created within a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.stats(cmd.Context(), form.Period(period))
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(form.PeriodMonth), "week, month or year")
	return cmd
}

func (cli *commandLine) stats(ctx context.Context, period form.Period) error {
	if err := cli.services(); err != nil {
		return err
	}
	stats, err := cli.forms.Stats(ctx, period, user.SystemActor())
	if err != nil {
		return err
	}

	rows := [][]string{{"total", "", strconv.Itoa(stats.Total)}}
	for _, status := range form.Statuses {
		rows = append(rows, []string{"status", string(status), strconv.Itoa(stats.ByStatus[status])})
	}
	keys := make([]string, 0, len(stats.ByMisconduct))
	for key := range stats.ByMisconduct {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rows = append(rows, []string{"misconduct", key, strconv.Itoa(stats.ByMisconduct[key])})
	}
	return cli.print(stats, []string{"GROUP", "KEY", "FORMS"}, rows)
}
