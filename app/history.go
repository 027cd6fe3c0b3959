package app

import (
	"context"
	stderrors "errors"
	"log"
	"time"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/internal/errors"
	"statwizard/internal/wizard"
	"statwizard/models"
	"statwizard/ports"
)

// recordingClient records every call to the statistics service in the run
// history. Recording failures are logged and never fail the run.
type recordingClient struct {
	inner     wizard.Client
	repo      ports.RunRepository
	sessionID core.SessionID
	dataset   func() (core.DatasetID, string)
}

func (c *recordingClient) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	dsID, dsName := c.dataset()
	start := time.Now()
	res, err := c.inner.Analyze(ctx, req)

	run := &models.AnalysisRun{
		ID:          core.NewRunID().String(),
		SessionID:   c.sessionID.String(),
		AnalysisID:  req.AnalysisID.String(),
		DatasetID:   dsID.String(),
		DatasetName: dsName,
		Status:      models.RunSucceeded,
		DurationMs:  time.Since(start).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if body, jerr := req.JSON(); jerr == nil {
		run.Request = string(body)
	}
	afterID, _ := c.dataset()
	switch {
	case ctx.Err() != nil || afterID != dsID:
		// the wizard cancels its call whenever the inputs change, so a
		// response that arrives anyway is dropped by the controller
		run.Status = models.RunDiscarded
		if err != nil {
			run.ErrorCode = errors.GetCode(err)
		}
	case err != nil && stderrors.Is(err, context.Canceled):
		run.Status = models.RunDiscarded
		run.ErrorCode = errors.GetCode(err)
	case err != nil:
		run.Status = models.RunFailed
		run.ErrorCode = errors.GetCode(err)
		run.Error = errors.UserMessage(err)
	default:
		run.Results = string(res.Results)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := c.repo.SaveRun(saveCtx, run); serr != nil {
		log.Printf("[History] failed to record run %s: %v", run.ID, serr)
	}
	return res, err
}
