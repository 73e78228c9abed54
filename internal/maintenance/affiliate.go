package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oshimaint/internal/affiliate"
	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/tabelog"
)

// AffiliateReport describes a LinkSwitch annotation run.
type AffiliateReport struct {
	Scanned   int                `json:"scanned"`
	Updated   []affiliate.Result `json:"updated"`
	Skipped   []affiliate.Result `json:"skipped,omitempty"`
	Unchanged int                `json:"unchanged"`
	Failures  []Failure          `json:"failures,omitempty"`
}

func (r AffiliateReport) Counts() map[string]int {
	return map[string]int{
		"scanned":   r.Scanned,
		"updated":   len(r.Updated),
		"skipped":   len(r.Skipped),
		"unchanged": r.Unchanged,
		"failed":    len(r.Failures),
	}
}

// SyncAffiliate stores every Tabelog URL in the bare form LinkSwitch
// rewrites and records an active LinkSwitch state. Rows holding a
// ValueCommerce redirect are unwrapped; rows that cannot be unwrapped are
// skipped untouched.
func (m *Maintainer) SyncAffiliate(ctx context.Context, session *Session, annotator affiliate.Annotator, now time.Time) (AffiliateReport, error) {
	locations, err := m.Store.ListLocations(ctx)
	if err != nil {
		return AffiliateReport{}, services.Wrap(services.ErrDatabase, "maintenance", "list locations", "", err)
	}
	report := AffiliateReport{Scanned: len(locations), Updated: []affiliate.Result{}}
	logger := m.logger(ctx)

	for _, loc := range locations {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result := annotator.Annotate(loc, now)
		switch result.Outcome {
		case affiliate.OutcomeUnchanged:
			report.Unchanged++
			continue
		case affiliate.OutcomeSkipped:
			if loc.TabelogURL != "" {
				logger.Info("location skipped",
					logging.String(logging.FieldRowID, loc.ID),
					logging.String("tabelog_url", loc.TabelogURL),
					logging.String("reason", result.Reason),
				)
				report.Skipped = append(report.Skipped, result)
			}
			continue
		}

		if !session.DryRun {
			if err := m.wait(ctx); err != nil {
				return report, err
			}
			if err := m.writeAffiliate(ctx, session, loc, result.Location); err != nil {
				if errors.Is(err, context.Canceled) {
					return report, err
				}
				report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableLocations, loc.ID, "affiliate update failed", "affiliate_update_failed", err))
				continue
			}
		}
		report.Updated = append(report.Updated, result)
		logger.Info("location annotated",
			logging.String(logging.FieldRowID, loc.ID),
			logging.String("tabelog_url", result.Location.TabelogURL),
			logging.Bool("unwrapped", affiliate.IsWrapped(result.PreviousURL)),
		)
	}
	return report, nil
}

// writeAffiliate backs up the current row and stores the new affiliate columns.
func (m *Maintainer) writeAffiliate(ctx context.Context, session *Session, before, after catalog.Location) error {
	if err := session.Backup(ctx, catalog.TableLocations, before.ID, before); err != nil {
		return err
	}
	return m.Store.UpdateLocationAffiliate(ctx, after.ID, after.TabelogURL, after.AffiliateInfo)
}

// LinkChecker fetches a Tabelog page and classifies it.
type LinkChecker interface {
	Check(ctx context.Context, rawURL string) (tabelog.Result, error)
}

// LinkCheck is the verification outcome for one location.
type LinkCheck struct {
	LocationID  string         `json:"location_id"`
	Name        string         `json:"name"`
	Result      tabelog.Result `json:"result"`
	Broken      bool           `json:"broken"`
	Deactivated bool           `json:"deactivated,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// VerifyReport describes a Tabelog link verification run.
type VerifyReport struct {
	Checked  int            `json:"checked"`
	Statuses map[string]int `json:"statuses"`
	Broken   []LinkCheck    `json:"broken"`
	Errors   []LinkCheck    `json:"errors,omitempty"`
	Failures []Failure      `json:"failures,omitempty"`
}

func (r VerifyReport) Counts() map[string]int {
	counts := map[string]int{
		"checked": r.Checked,
		"broken":  len(r.Broken),
		"errors":  len(r.Errors),
		"failed":  len(r.Failures),
	}
	deactivated := 0
	for _, check := range r.Broken {
		if check.Deactivated {
			deactivated++
		}
	}
	counts["deactivated"] = deactivated
	for status, n := range r.Statuses {
		counts[status] = n
	}
	return counts
}

// VerifyOptions scopes VerifyTabelog.
type VerifyOptions struct {
	// Limit stops after this many checks; zero checks every location.
	Limit int
}

// VerifyTabelog requests every stored Tabelog page. Dead pages and pages
// redirecting away from a store page are broken; when applying, their
// LinkSwitch state becomes inactive. Request failures are reported and the
// loop continues.
func (m *Maintainer) VerifyTabelog(ctx context.Context, session *Session, checker LinkChecker, opts VerifyOptions) (VerifyReport, error) {
	locations, err := m.Store.ListLocations(ctx)
	if err != nil {
		return VerifyReport{}, services.Wrap(services.ErrDatabase, "maintenance", "list locations", "", err)
	}
	report := VerifyReport{Statuses: map[string]int{}, Broken: []LinkCheck{}}
	logger := m.logger(ctx)

	for _, loc := range locations {
		if opts.Limit > 0 && report.Checked >= opts.Limit {
			break
		}
		target := checkURL(loc.TabelogURL)
		if target == "" {
			continue
		}
		if err := m.wait(ctx); err != nil {
			return report, err
		}
		report.Checked++
		check := LinkCheck{LocationID: loc.ID, Name: loc.Name}
		result, err := checker.Check(ctx, target)
		check.Result = result
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			check.Error = err.Error()
			report.Errors = append(report.Errors, check)
			logging.WarnWithContext(logger, "tabelog check failed", "tabelog_check_failed",
				logging.String(logging.FieldRowID, loc.ID),
				logging.String("url", target),
				logging.Error(err),
				logging.String(logging.FieldImpact, "link left unverified"),
			)
			continue
		}
		report.Statuses[string(result.Status)]++

		reason, broken := brokenReason(result)
		if !broken {
			continue
		}
		check.Broken = true
		logger.Info("broken tabelog link",
			logging.String(logging.FieldRowID, loc.ID),
			logging.String("name", loc.Name),
			logging.String("url", target),
			logging.String("reason", reason),
		)
		if !session.DryRun {
			updated, changed, err := affiliate.Deactivate(loc, reason)
			if err == nil && changed {
				err = m.writeAffiliate(ctx, session, loc, updated)
			}
			if err != nil {
				report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableLocations, loc.ID, "affiliate deactivation failed", "affiliate_deactivate_failed", err))
			} else {
				check.Deactivated = changed
			}
		}
		report.Broken = append(report.Broken, check)
	}
	return report, nil
}

// checkURL returns the page to request for a stored tabelog_url, unwrapping
// ValueCommerce redirects. Empty means nothing to check.
func checkURL(stored string) string {
	if stored == "" {
		return ""
	}
	if affiliate.IsWrapped(stored) {
		original, err := affiliate.ExtractOriginalURL(stored)
		if err != nil {
			return ""
		}
		stored = original
	}
	if !tabelog.IsTabelogURL(stored) {
		return ""
	}
	return stored
}

func brokenReason(result tabelog.Result) (string, bool) {
	switch result.Status {
	case tabelog.StatusDead:
		return fmt.Sprintf("tabelog page returned %d", result.HTTPStatus), true
	case tabelog.StatusRedirected:
		if result.RedirectTo != "" && tabelog.IsStorePage(result.RedirectTo) {
			return "", false
		}
		return "tabelog page redirects to " + result.RedirectTo, true
	default:
		return "", false
	}
}
