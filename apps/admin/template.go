package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/core/user"
)

func (cli *commandLine) templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage disciplinary form templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	ensureDefault := &cobra.Command{
		Use:   "ensure-default",
		Short: "Create the standard template unless a default template exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ensureDefaultTemplate(cmd.Context())
		},
	}

	var search string
	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := template.QueryFilter{Search: search}
			if activeOnly {
				filter.IsActive = &activeOnly
			}
			return cli.listTemplates(cmd.Context(), filter)
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "case-insensitive search on the template name")
	list.Flags().BoolVar(&activeOnly, "active", false, "only list active templates")

	cmd.AddCommand(ensureDefault, list)
	return cmd
}

func (cli *commandLine) ensureDefaultTemplate(ctx context.Context) error {
	if err := cli.services(); err != nil {
		return err
	}
	tmpl, err := cli.templates.GetDefault(ctx)
	if err != nil {
		return err
	}
	return cli.printTemplates([]template.Template{tmpl}, tmpl)
}

func (cli *commandLine) listTemplates(ctx context.Context, filter template.QueryFilter) error {
	if err := cli.services(); err != nil {
		return err
	}
	tmpls, err := cli.templates.Query(ctx, filter, user.SystemActor())
	if err != nil {
		return err
	}
	if tmpls == nil {
		tmpls = []template.Template{}
	}
	return cli.printTemplates(tmpls, tmpls)
}

func (cli *commandLine) printTemplates(tmpls []template.Template, v interface{}) error {
	rows := make([][]string, 0, len(tmpls))
	for _, t := range tmpls {
		lastUsed := "-"
		if t.LastUsed != nil {
			lastUsed = t.LastUsed.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			t.ID,
			t.TemplateName,
			strconv.FormatBool(t.IsDefault),
			strconv.FormatBool(t.IsActive),
			strconv.Itoa(t.FormsCreated),
			lastUsed,
		})
	}
	return cli.print(v, []string{"ID", "NAME", "DEFAULT", "ACTIVE", "FORMS", "LAST USED"}, rows)
}
