package main

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/services"
	"github.com/flicket/backend/internal/workflow"
	"github.com/flicket/backend/libs/config"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// GenerationRunner defines the interface for executing generation runs
type GenerationRunner interface {
	// Run executes one attempt of a run.
	//
	// Errors wrapping services.ErrPermanent must not be retried.
	Run(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload) error
	// MarkFailed records the final failure of a run.
	MarkFailed(ctx context.Context, runID string, cause error)
}

// Worker handles generation task processing
type Worker struct {
	logger *zap.Logger
	runner GenerationRunner
	smtp   config.SMTPConfig
	send   func(to, subject, body string) error
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, runner GenerationRunner, smtp config.SMTPConfig) *Worker {
	w := &Worker{
		logger: logger,
		runner: runner,
		smtp:   smtp,
	}
	w.send = w.sendEmail
	return w
}

// HandleWorkflow returns the asynq handler of one workflow
func (w *Worker) HandleWorkflow(wf models.Workflow) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		runID, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		return w.process(ctx, wf, runID, t, retried >= maxRetry)
	}
}

// process runs one attempt. lastAttempt is true when asynq will not retry a failure.
func (w *Worker) process(ctx context.Context, wf models.Workflow, runID string, t *asynq.Task, lastAttempt bool) error {
	payload, err := workflow.ParsePayload(t)
	if err != nil {
		w.runner.MarkFailed(ctx, runID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	err = w.runner.Run(ctx, runID, wf, payload)
	if err == nil {
		return nil
	}

	permanent := errors.Is(err, services.ErrPermanent)
	w.logger.Warn("generation run failed",
		zap.String("run_id", runID),
		zap.String("workflow", string(wf)),
		zap.String("video_id", payload.VideoID),
		zap.Bool("permanent", permanent),
		zap.Error(err),
	)

	if !permanent && !lastAttempt {
		return err
	}

	w.runner.MarkFailed(ctx, runID, err)
	w.alert(runID, wf, payload, err)
	if permanent {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// alert mails the operator about a run that will not be retried
func (w *Worker) alert(runID string, wf models.Workflow, payload models.WorkflowPayload, cause error) {
	if !w.smtp.Enabled() {
		return
	}

	subject := fmt.Sprintf("Flicket: %s generation failed", wf)
	body := fmt.Sprintf("<p>Run <b>%s</b> for video <b>%s</b> failed.</p><p>%s</p>",
		html.EscapeString(runID),
		html.EscapeString(payload.VideoID),
		html.EscapeString(cause.Error()),
	)
	if err := w.send(w.smtp.AlertEmail, subject, body); err != nil {
		w.logger.Error("failed to send failure alert", zap.String("run_id", runID), zap.Error(err))
	}
}

// sendEmail sends an email using gopkg.in/mail.v2
func (w *Worker) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", w.smtp.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := mail.NewDialer(w.smtp.Host, w.smtp.Port, w.smtp.Username, w.smtp.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
