package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"rentbook/internal/core"
	"rentbook/internal/ledger"
	"rentbook/internal/log"
	"rentbook/internal/report"
	"rentbook/internal/sheets"
)

var errUsage = errors.New("invalid usage")

// app runs admin commands against one ledger.
type app struct {
	store  *ledger.Store
	logger *log.Logger
	stdout io.Writer
	stdin  io.Reader
	// publisher is nil when Google Sheets is not configured.
	publisher func(ctx context.Context) (sheets.ReportWriter, error)
}

func newApp(store *ledger.Store, logger *log.Logger) *app {
	return &app{
		store:  store,
		logger: logger,
		stdout: os.Stdout,
		stdin:  os.Stdin,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "stats":
		return a.stats()
	case "properties":
		return a.properties()
	case "expenses":
		return a.expenses()
	case "export":
		return a.export(rest)
	case "import":
		return a.importBackup(ctx, rest)
	case "reset":
		return a.reset(ctx, rest)
	case "report":
		return a.report(rest)
	case "publish":
		return a.publish(ctx, rest)
	case "help", "-h", "--help":
		return flag.ErrHelp
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) stats() error {
	st := a.store.Statistics()
	cur := a.store.Settings().Currency
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Month\t%s\n", st.Month)
	fmt.Fprintf(tw, "Properties\t%d\n", st.TotalProperties)
	fmt.Fprintf(tw, "Rented\t%d\n", st.RentedProperties)
	fmt.Fprintf(tw, "Vacant\t%d\n", st.VacantProperties)
	fmt.Fprintf(tw, "Income\t%s\n", st.MonthlyIncome.Format(cur))
	fmt.Fprintf(tw, "Expenses\t%s\n", st.MonthlyExpenses.Format(cur))
	fmt.Fprintf(tw, "Net profit\t%s\n", st.NetProfit.Format(cur))
	return tw.Flush()
}

func (a *app) properties() error {
	cur := a.store.Settings().Currency
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTENANT\tRENT\tSTATUS")
	for _, p := range a.store.Properties() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Tenant, p.MonthlyRent.Format(cur), p.Status)
	}
	return tw.Flush()
}

func (a *app) expenses() error {
	cur := a.store.Settings().Currency
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROPERTY\tMONTH\tTOTAL")
	for _, row := range a.store.ExpenseRows() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.ID, row.PropertyName, row.Month, row.Amount.Format(cur))
	}
	return tw.Flush()
}

func (a *app) export(args []string) error {
	fs := newFlagSet("export")
	out := fs.String("o", "", `output file, "-" for stdout`)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	backup := a.store.Export()
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	data = append(data, '\n')

	path := *out
	if path == "" {
		path = core.BackupFileName(backup.ExportDate)
	}
	if err := a.writeOutput(path, data); err != nil {
		return err
	}
	a.logger.Info("Backup exported",
		log.FieldOperation, log.OpExport,
		log.FieldFile, path,
		"properties", len(backup.Properties),
		"expenses", len(backup.Expenses))
	return nil
}

func (a *app) importBackup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import takes one file", errUsage)
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return a.store.ImportJSON(ctx, data)
}

func (a *app) reset(ctx context.Context, args []string) error {
	fs := newFlagSet("reset")
	yes := fs.Bool("yes", false, "confirm deleting every record")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if !*yes {
		return fmt.Errorf("%w: reset deletes every record, pass -yes to confirm", errUsage)
	}
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.logger.Info("All data cleared", log.FieldOperation, log.OpClear)
	return nil
}

func (a *app) report(args []string) error {
	fs := newFlagSet("report")
	format := fs.String("format", "html", "html or xlsx")
	out := fs.String("o", "", `output file, "-" for stdout`)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: report takes a property id and a month", errUsage)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid property id %q", errUsage, fs.Arg(0))
	}
	month, err := core.ParseMonth(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	rep, ok := a.store.MonthlyReport(core.ID(id), month)
	if !ok {
		return fmt.Errorf("property %d not found", id)
	}

	var buf bytes.Buffer
	ext := strings.ToLower(*format)
	switch ext {
	case "html":
		renderer, err := report.NewRenderer()
		if err != nil {
			return err
		}
		if err := renderer.RenderHTML(&buf, rep); err != nil {
			return err
		}
	case "xlsx":
		if err := report.WriteXLSX(&buf, rep); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unsupported report format %q", errUsage, *format)
	}

	path := *out
	if path == "" {
		path = report.FileName(rep) + "." + ext
	}
	if err := a.writeOutput(path, buf.Bytes()); err != nil {
		return err
	}
	a.logger.Info("Report written",
		log.FieldOperation, log.OpRender,
		log.FieldMonth, month,
		log.FieldFile, path)
	return nil
}

func (a *app) publish(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: publish takes a month", errUsage)
	}
	month, err := core.ParseMonth(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if a.publisher == nil {
		return errors.New("report publishing is not configured, set GOOGLE_SPREADSHEET_ID")
	}

	reports := a.store.MonthlyReports(month)
	appended := 0
	if len(reports) > 0 {
		writer, err := a.publisher(ctx)
		if err != nil {
			return fmt.Errorf("initialize Google Sheets: %w", err)
		}
		if appended, err = writer.AppendReports(ctx, reports); err != nil {
			return fmt.Errorf("publish reports: %w", err)
		}
	}
	fmt.Fprintf(a.stdout, "%s: %d reports, %d appended\n", month, len(reports), appended)
	return nil
}

func (a *app) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
