package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"oshimaint/internal/affiliate"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/tabelog"
)

func newAffiliateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "affiliate",
		Short: "Maintain Tabelog affiliate links",
	}
	cmd.AddCommand(newAffiliateLinkSwitchCommand(ctx))
	cmd.AddCommand(newAffiliateVerifyCommand(ctx))
	return cmd
}

func newAffiliateLinkSwitchCommand(ctx *commandContext) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "linkswitch",
		Short: "Store bare Tabelog URLs and mark them active for LinkSwitch",
		Long: `ValueCommerce redirect URLs are unwrapped to the Tabelog URL they point
at; LinkSwitch rewrites bare URLs in the browser. Every row with a usable
Tabelog URL gets an active linkswitch state in affiliate_info.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			annotator := affiliate.Annotator{Source: ctx.configValue().Affiliate.Source}
			var report maintenance.AffiliateReport
			run, err := ctx.runOperation(cmd, "affiliate linkswitch", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				var opErr error
				report, opErr = m.SyncAffiliate(opCtx, session, annotator, time.Now().UTC())
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderAffiliateReport(w, report)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the annotated rows")
	return cmd
}

func renderAffiliateReport(w io.Writer, report maintenance.AffiliateReport) {
	rows := make([][]string, 0, len(report.Updated)+len(report.Skipped))
	for _, r := range report.Updated {
		rows = append(rows, []string{r.Location.ID, truncate(r.Location.Name, 30), string(r.Outcome), r.Location.TabelogURL})
	}
	for _, r := range report.Skipped {
		rows = append(rows, []string{r.Location.ID, truncate(r.Location.Name, 30), string(r.Outcome), r.Reason})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Outcome", "Detail"}, rows, nil))
	}
	printFailures(w, report.Failures)
}

func newAffiliateVerifyCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var limit int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Request every stored Tabelog page and report broken links",
		Long: `Dead pages and redirects away from a store page are broken. With --apply
the LinkSwitch state of broken rows is set to inactive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			checker := tabelog.NewChecker(&http.Client{Timeout: cfg.TabelogTimeout()}, cfg.Tabelog.UserAgent, cfg.TabelogTimeout())
			var report maintenance.VerifyReport
			run, err := ctx.runOperation(cmd, "affiliate verify", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				var opErr error
				report, opErr = m.VerifyTabelog(opCtx, session, checker, maintenance.VerifyOptions{Limit: limit})
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderVerifyReport(w, report)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Mark broken links inactive")
	cmd.Flags().IntVar(&limit, "limit", 0, "Check at most this many locations")
	return cmd
}

func renderVerifyReport(w io.Writer, report maintenance.VerifyReport) {
	if len(report.Broken) == 0 && len(report.Errors) == 0 {
		fmt.Fprintf(w, "🍽️  %d link(s) checked, none broken\n", report.Checked)
	}
	rows := make([][]string, 0, len(report.Broken)+len(report.Errors))
	for _, c := range report.Broken {
		detail := c.Result.RedirectTo
		if c.Deactivated {
			detail = "deactivated " + detail
		}
		rows = append(rows, []string{c.LocationID, truncate(c.Name, 30), string(c.Result.Status), fmt.Sprint(c.Result.HTTPStatus), detail})
	}
	for _, c := range report.Errors {
		rows = append(rows, []string{c.LocationID, truncate(c.Name, 30), "error", "", c.Error})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Status", "HTTP", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
	}
	printFailures(w, report.Failures)
}
