// Package importer is the entry point for the CSV import pipeline. Its
// Validate and Apply methods are the only sanctioned way to parse rows
// or execute operations; the parser, factory, classifier and engine are
// internal and must not be reached any other way.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipamtools/bamsync/bam"
	"github.com/ipamtools/bamsync/changelog"
	"github.com/ipamtools/bamsync/config"
	"github.com/ipamtools/bamsync/internal/engine"
	"github.com/ipamtools/bamsync/internal/parser"
	"github.com/ipamtools/bamsync/internal/plan"
	"github.com/ipamtools/bamsync/internal/safety"
	"github.com/ipamtools/bamsync/metrics"
	"github.com/ipamtools/bamsync/model"
)

type Importer struct {
	cfg     *config.Config
	client  bam.Client
	store   changelog.Store
	metrics *metrics.Metrics
}

// New wires the pipeline. The store may be nil when no changelog should
// be kept (validation-only workflows).
func New(cfg *config.Config, client bam.Client, store changelog.Store, metrics *metrics.Metrics) *Importer {
	return &Importer{cfg: cfg, client: client, store: store, metrics: metrics}
}

// Options controls a single apply pass.
type Options struct {
	DryRun           bool
	AllowDestructive bool
}

// RiskEntry is the classifier's verdict for one planned operation,
// shown to the user before anything is applied.
type RiskEntry struct {
	Line       int
	Name       string
	ObjectType string
	Action     model.Action
	Risk       model.Risk
}

// Validate parses the file and classifies the would-be operations
// without touching the remote system.
func (im *Importer) Validate(path string, strict bool) ([]model.Row, []model.Warning, []RiskEntry, error) {
	rows, warnings, err := parser.Parse(path, strict)
	if err != nil {
		return nil, warnings, nil, err
	}
	for _, row := range rows {
		im.metrics.IncRowParsed(row.Base().ObjectType, true)
	}
	for range warnings {
		im.metrics.IncRowParsed("invalid", false)
	}

	// Parent ids are not resolved here; paths are placeholders and the
	// operations are never executed.
	ops, err := plan.BuildAll(rows, plan.Context{})
	if err != nil {
		return rows, warnings, nil, err
	}
	entries := im.classify(ops)
	return rows, warnings, entries, nil
}

// Apply validates strictly, resolves parent identifiers, classifies the
// whole batch, and only then executes. Any irreversible operation
// without the override aborts before a single mutating call.
func (im *Importer) Apply(ctx context.Context, path string, opts Options) (model.RunReport, error) {
	start := time.Now()
	defer func() {
		im.metrics.SetRunDuration(time.Since(start))
	}()

	rows, _, err := parser.Parse(path, true)
	if err != nil {
		im.metrics.IncRun(false)
		return model.RunReport{}, err
	}
	for _, row := range rows {
		im.metrics.IncRowParsed(row.Base().ObjectType, true)
	}

	pctx, err := im.resolveContext(ctx, rows, opts.DryRun)
	if err != nil {
		im.metrics.IncRun(false)
		return model.RunReport{}, err
	}

	ops, err := plan.BuildAll(rows, pctx)
	if err != nil {
		im.metrics.IncRun(false)
		return model.RunReport{}, err
	}

	classified := safety.Classify(ops, im.cfg.Import.ProtectedNames)
	for _, c := range classified {
		im.metrics.IncOperation(string(c.Op.Action), c.Risk.String())
	}
	if err := safety.Check(classified, opts.AllowDestructive); err != nil {
		im.metrics.IncRun(false)
		return model.RunReport{}, err
	}

	slog.Info("applying operations", "count", len(ops), "dryRun", opts.DryRun)
	report := engine.New(im.client, opts.DryRun).Apply(ctx, ops)

	if !opts.DryRun && im.store != nil {
		if err := im.store.Record(ctx, report); err != nil {
			slog.Warn("fail record run in changelog", "runId", report.RunID, "error", err)
		}
	}
	im.metrics.IncRun(report.Failed() == 0)
	return report, nil
}

// resolveContext looks up the configured parent network and view once
// per pass. Dry runs skip resolution so they stay free of remote calls.
func (im *Importer) resolveContext(ctx context.Context, rows []model.Row, dryRun bool) (plan.Context, error) {
	pctx := plan.Context{}
	needNetwork, needView := plan.Requires(rows)

	if needNetwork && im.cfg.Import.NetworkCIDR == "" {
		return pctx, fmt.Errorf("batch creates network-scoped objects but import.networkCidr is not configured")
	}
	if needView && im.cfg.Import.ViewName == "" {
		return pctx, fmt.Errorf("batch creates view-scoped objects but import.viewName is not configured")
	}
	if dryRun {
		return pctx, nil
	}

	if needNetwork {
		id, err := bam.FindNetworkID(ctx, im.client, im.cfg.Import.NetworkCIDR)
		if err != nil {
			return pctx, fmt.Errorf("resolve network %s: %w", im.cfg.Import.NetworkCIDR, err)
		}
		pctx.NetworkID = id
	}
	if needView {
		id, err := bam.FindViewID(ctx, im.client, im.cfg.Import.ViewName)
		if err != nil {
			return pctx, fmt.Errorf("resolve view %s: %w", im.cfg.Import.ViewName, err)
		}
		pctx.ViewID = id
	}
	return pctx, nil
}

func (im *Importer) classify(ops []model.Operation) []RiskEntry {
	classified := safety.Classify(ops, im.cfg.Import.ProtectedNames)
	entries := make([]RiskEntry, len(classified))
	for i, c := range classified {
		entries[i] = RiskEntry{
			Line:       c.Op.Line,
			Name:       c.Op.Name,
			ObjectType: c.Op.ObjectType,
			Action:     c.Op.Action,
			Risk:       c.Risk,
		}
	}
	return entries
}
