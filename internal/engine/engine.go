// Package engine executes planned operations against the remote client,
// strictly in input order, and collects every outcome into a run report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ipamtools/bamsync/bam"
	"github.com/ipamtools/bamsync/model"
)

type Engine struct {
	client bam.Client
	dryRun bool
}

func New(client bam.Client, dryRun bool) *Engine {
	return &Engine{client: client, dryRun: dryRun}
}

// Apply runs each operation once, in order, recording its terminal
// outcome. A failed row never halts the pass; a 409 conflict counts as
// success because the object is already present remotely. Retries, if
// any, belong to the client transport.
func (e *Engine) Apply(ctx context.Context, ops []model.Operation) model.RunReport {
	report := model.RunReport{
		RunID:   uuid.NewString(),
		DryRun:  e.dryRun,
		Started: time.Now(),
		Results: make([]model.RowResult, 0, len(ops)),
	}

	for _, op := range ops {
		report.Results = append(report.Results, e.applyOne(ctx, op))
	}

	report.Finished = time.Now()
	return report
}

func (e *Engine) applyOne(ctx context.Context, op model.Operation) model.RowResult {
	result := model.RowResult{
		Line:       op.Line,
		Name:       op.Name,
		ObjectType: op.ObjectType,
	}

	if e.dryRun {
		slog.Info("dry run, skipping remote call", "method", op.Method, "path", op.Path, "name", op.Name)
		result.Outcome = model.OutcomeSimulated
		return result
	}

	slog.Debug("applying operation", "method", op.Method, "path", op.Path, "name", op.Name)
	var body any
	if op.Payload != nil {
		body = op.Payload
	}
	resp, err := e.client.Do(ctx, op.Method, op.Path, body)
	switch {
	case err != nil:
		slog.Error("operation transport failure", "name", op.Name, "line", op.Line, "error", err)
		result.Outcome = model.OutcomeFailed
		result.Reason = err.Error()
	case resp.OK():
		result.Outcome = model.OutcomeApplied
	case resp.Status == http.StatusConflict:
		slog.Info("object already exists, treating as success", "name", op.Name, "line", op.Line)
		result.Outcome = model.OutcomeAlreadyExists
	default:
		slog.Error("operation rejected", "name", op.Name, "line", op.Line, "status", resp.Status)
		result.Outcome = model.OutcomeFailed
		result.Reason = fmt.Sprintf("status=%d body=%s", resp.Status, resp.Body)
	}
	return result
}
