// Package health probes provider reachability and stored-data freshness.
// Monitoring never crashes the monitored system: provider failures become
// status entries, never propagated errors.
package health

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/metrics"
	"github.com/trogers1052/outcome-tracker/internal/models"
	"github.com/trogers1052/outcome-tracker/internal/pricestore"
	"github.com/trogers1052/outcome-tracker/internal/provider"
)

// canaryWindowDays is the size of the recent window used for provider
// canary fetches.
const canaryWindowDays = 5

// FreshnessRepository is the persistence surface the monitor needs.
type FreshnessRepository interface {
	GetDistinctPriceSymbols() ([]string, error)
	GetLatestPriceDate(symbol string) (*time.Time, error)
}

// Notifier is the one-way outbound alert port.
type Notifier interface {
	Notify(ctx context.Context, destination, message string)
}

// Options configures a Monitor.
type Options struct {
	Providers        []provider.Provider
	Repo             FreshnessRepository
	Notifier         Notifier // may be nil
	CanarySymbol     string
	ThresholdHours   int
	AlertDestination string
	Now              func() time.Time
}

// Monitor runs provider and freshness health checks.
type Monitor struct {
	providers      []provider.Provider
	repo           FreshnessRepository
	notifier       Notifier
	canarySymbol   string
	thresholdHours int
	alertDest      string
	now            func() time.Time
}

// New creates a health monitor.
func New(opts Options) *Monitor {
	if opts.CanarySymbol == "" {
		opts.CanarySymbol = "SPY"
	}
	if opts.ThresholdHours <= 0 {
		opts.ThresholdHours = 48
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		providers:      opts.Providers,
		repo:           opts.Repo,
		notifier:       opts.Notifier,
		canarySymbol:   opts.CanarySymbol,
		thresholdHours: opts.ThresholdHours,
		alertDest:      opts.AlertDestination,
		now:            opts.Now,
	}
}

// CheckProviderHealth runs a timed canary fetch against one provider. A
// provider is healthy only when it is configured and the canary returned
// non-empty data. Errors are converted into the status, never returned.
func (m *Monitor) CheckProviderHealth(ctx context.Context, p provider.Provider) models.ProviderStatus {
	status := models.ProviderStatus{Name: p.Name(), Available: p.Available()}
	if !status.Available {
		status.Error = "not configured"
		return status
	}

	end := pricestore.DateOnly(m.now())
	start := end.AddDate(0, 0, -canaryWindowDays)

	began := m.now()
	records, err := p.FetchDailyHistory(ctx, m.canarySymbol, start, end)
	status.LatencyMS = m.now().Sub(began).Milliseconds()

	if err != nil {
		status.Error = err.Error()
		metrics.ProviderFetches.WithLabelValues(p.Name(), "error").Inc()
		return status
	}
	status.RecordCount = len(records)
	if len(records) == 0 {
		status.Error = "canary returned no data"
		metrics.ProviderFetches.WithLabelValues(p.Name(), "empty").Inc()
		return status
	}

	metrics.ProviderFetches.WithLabelValues(p.Name(), "success").Inc()
	status.Healthy = true
	return status
}

// CheckDataFreshness reports staleness for the given symbols, or for every
// symbol with stored prices when symbols is empty. A symbol with no data at
// all reports 999 days stale.
func (m *Monitor) CheckDataFreshness(symbols []string) ([]models.FreshnessStatus, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = m.repo.GetDistinctPriceSymbols()
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	thresholdDays := m.thresholdHours / 24
	if thresholdDays < 1 {
		thresholdDays = 1
	}
	today := pricestore.DateOnly(m.now())

	statuses := make([]models.FreshnessStatus, 0, len(symbols))
	for _, symbol := range symbols {
		status := models.FreshnessStatus{Symbol: symbol}

		latest, err := m.repo.GetLatestPriceDate(symbol)
		if err != nil {
			log.Printf("health: freshness lookup failed for %s: %v", symbol, err)
			status.DaysStale = models.DaysStaleNoData
			status.IsStale = true
			statuses = append(statuses, status)
			continue
		}

		if latest == nil {
			status.DaysStale = models.DaysStaleNoData
		} else {
			status.LatestDate = latest
			status.DaysStale = int(today.Sub(pricestore.DateOnly(*latest)).Hours() / 24)
		}
		status.IsStale = status.DaysStale > thresholdDays
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// RunHealthCheck runs provider and/or freshness checks and aggregates the
// results. An alert is dispatched only when the report is unhealthy.
func (m *Monitor) RunHealthCheck(ctx context.Context, checkProviders, checkFreshness bool) *models.HealthReport {
	report := &models.HealthReport{
		Timestamp:      m.now(),
		OverallHealthy: true,
	}
	var issues []string

	if checkProviders {
		anyHealthy := len(m.providers) == 0
		for _, p := range m.providers {
			status := m.CheckProviderHealth(ctx, p)
			report.ProviderStatuses = append(report.ProviderStatuses, status)
			if status.Healthy {
				anyHealthy = true
			} else {
				issues = append(issues, fmt.Sprintf("provider %s: %s", status.Name, status.Error))
			}
		}
		if !anyHealthy {
			report.OverallHealthy = false
		}
	}

	if checkFreshness {
		statuses, err := m.CheckDataFreshness(nil)
		if err != nil {
			issues = append(issues, fmt.Sprintf("freshness check failed: %v", err))
			report.OverallHealthy = false
		} else {
			report.FreshnessStatuses = statuses
			report.TotalSymbols = len(statuses)
			for _, s := range statuses {
				if s.IsStale {
					report.StaleSymbols++
				}
			}
			if report.TotalSymbols > 0 && report.StaleSymbols == report.TotalSymbols {
				report.OverallHealthy = false
			}
			if report.StaleSymbols > 0 {
				issues = append(issues, fmt.Sprintf("%d/%d symbols stale",
					report.StaleSymbols, report.TotalSymbols))
			}
		}
	}

	if len(issues) == 0 {
		report.Summary = "all checks passed"
	} else {
		report.Summary = strings.Join(issues, "; ")
	}

	if !report.OverallHealthy && m.notifier != nil {
		metrics.AlertsSent.Inc()
		m.notifier.Notify(ctx, m.alertDest, "health check failed: "+report.Summary)
	}
	return report
}
