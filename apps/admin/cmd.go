package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/student"
	"github.com/trezcool/nidhamu/core/template"
	pdfsvc "github.com/trezcool/nidhamu/services/pdf"
	"github.com/trezcool/nidhamu/storage"
)

var (
	openStoresFunc = storage.Open // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer
	table  bool // human readable output, JSON otherwise

	stores    *storage.Stores
	templates *template.Service
	forms     *form.Service
}

func newCommandLine(conf *core.Config, logger core.Logger, out io.Writer, table bool) *commandLine {
	return &commandLine{conf: conf, logger: logger, out: out, table: table}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Nidhamu administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.AddCommand(cli.migrateCmd(), cli.templateCmd(), cli.statsCmd())
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// services opens the configured storage once and builds the services on top of it.
func (cli *commandLine) services() error {
	if cli.stores != nil {
		return nil
	}
	stores, err := openStoresFunc(cli.conf)
	if err != nil {
		return err
	}

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	links := student.NewParentChildLinks(stores.Parents, stores.Students)
	mirror := student.NewMirror(stores.Students, links, validate)
	cli.stores = stores
	cli.templates = template.NewService(stores.Templates, stores.Forms, validate, cli.logger, cli.conf)
	cli.forms = form.NewService(
		stores.Forms,
		cli.templates,
		stores.Students,
		links,
		mirror,
		pdfsvc.NewGenerator(cli.conf, cli.logger),
		validate,
		cli.logger,
	)
	return nil
}

func (cli *commandLine) close() error {
	if cli.stores == nil {
		return nil
	}
	stores := cli.stores
	cli.stores = nil
	return stores.Close()
}

// print writes rows as an aligned table on terminals and v as JSON otherwise.
func (cli *commandLine) print(v interface{}, header []string, rows [][]string) error {
	if !cli.table {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	printRow(w, header)
	for _, row := range rows {
		printRow(w, row)
	}
	return w.Flush()
}

func printRow(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
