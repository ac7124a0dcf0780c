package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/opdreports/internal/classify"
	"github.com/ehr/opdreports/internal/config"
	"github.com/ehr/opdreports/internal/domain/report"
	"github.com/ehr/opdreports/internal/platform/db"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List, run and debug reports",
	}
	cmd.AddCommand(reportsListCmd())
	cmd.AddCommand(reportsRunCmd())
	cmd.AddCommand(classifyAgeCmd())
	return cmd
}

func reportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the registered report definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg)
			if err != nil {
				return err
			}
			svc, err := report.NewService(nil, nil, zerolog.Nop(), managers(rules, cfg)...)
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), svc.List())
		},
	}
}

func printSummaries(w io.Writer, reports []report.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUUID\tNAME\tPARAMETERS")
	for _, r := range reports {
		names := make([]string, 0, len(r.Parameters))
		for _, p := range r.Parameters {
			names = append(names, p.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.UUID, r.Name, strings.Join(names, ","))
	}
	return tw.Flush()
}

func reportsRunCmd() *cobra.Command {
	var (
		reportID string
		start    string
		end      string
		tenant   string
		out      string
		params   []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a report against the database and write its CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			values["startDate"] = start
			values["endDate"] = end

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			logger := newLogger(cfg).Level(zerolog.WarnLevel)

			rules, err := loadRules(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.AcquireTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			svc, err := report.NewService(report.NewEvaluator(report.NewVisitSource(pool)), nil, logger, managers(rules, cfg)...)
			if err != nil {
				return err
			}
			data, err := svc.Run(ctx, reportID, values)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return report.WriteCSV(w, data)
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "Report id or UUID")
	cmd.Flags().StringVar(&start, "start", "", "First visit end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last visit end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	cmd.Flags().StringVar(&out, "out", "", "Write CSV to this file instead of stdout")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Report parameter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("report")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// parseParams turns repeated name=value flags into a parameter map.
func parseParams(raw []string) (map[string]string, error) {
	values := make(map[string]string, len(raw)+2)
	for _, p := range raw {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=value", p)
		}
		values[name] = strings.TrimSpace(value)
	}
	return values, nil
}

func classifyAgeCmd() *cobra.Command {
	var (
		value float64
		unit  string
	)
	cmd := &cobra.Command{
		Use:   "classify-age",
		Short: "Print the age band an age falls into",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rules, err := loadRules(cfg)
			if err != nil {
				return err
			}
			u, err := classify.ParseUnit(unit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ageBand(rules, value, u))
			return nil
		},
	}
	cmd.Flags().Float64Var(&value, "value", 0, "Age value")
	cmd.Flags().StringVar(&unit, "unit", "months", "Age unit (days, weeks, months, years)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func ageBand(rules *report.Rules, value float64, unit classify.TimeUnit) string {
	if rules.AgeBands == nil {
		return "(no age bands configured)"
	}
	label, ok := rules.AgeBands.Match(value, unit)
	if !ok {
		return "(no band)"
	}
	return string(label)
}
