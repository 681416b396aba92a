package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/internal/executor"
	"github.com/foremanhq/foreman/pkg/models"
)

// runTask drives one task from its current persisted state to a
// terminal status. Called from exactly one worker goroutine per task;
// all store writes for the task happen here, in order.
func (e *Engine) runTask(ctx context.Context, id string) {
	t, err := e.store.GetTask(id)
	if err != nil {
		log.Printf("[engine] load task %s: %v", id, err)
		return
	}
	if t == nil {
		log.Printf("[engine] task %s not in store, dropping", id)
		return
	}
	if t.Status.Terminal() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] task %s: runner panicked: %v", t.ID, r)
			e.failTask(t, fmt.Sprintf("internal error: %v", r), "runner panicked")
		}
	}()

	if t.Status == models.TaskStatusRunning {
		e.logger.Log("task %s: resuming after restart", t.ID)
		e.emit(Event{Type: EventTaskStarted, TaskID: t.ID, Message: "resumed after restart"})
	} else {
		e.logger.Log("task %s: started", t.ID)
		e.emit(Event{Type: EventTaskStarted, TaskID: t.ID})
	}

	if e.cancelRequested(t.ID) {
		e.cancelTask(t)
		return
	}

	if t.Strategy == nil {
		if !e.resolveStrategy(ctx, t) {
			return
		}
	} else {
		steps, err := e.store.ListSteps(t.ID)
		if err != nil {
			log.Printf("[engine] load steps for %s: %v", t.ID, err)
			return
		}
		t.Steps = steps
	}

	if len(t.Steps) == 0 {
		e.completeTask(t, "empty plan, nothing to execute")
		return
	}

	e.runSteps(ctx, t)
}

// resolveStrategy makes the task's single reasoning call and persists
// the outcome. On success the strategy and the pending step records
// become durable in one transaction, moving the task to running.
// Returns false when the task cannot proceed.
func (e *Engine) resolveStrategy(ctx context.Context, t *models.Task) bool {
	strategy, planned, err := e.resolver.Resolve(ctx, t.Input)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a resolution verdict. The task stays
			// pending and the next start picks it up.
			e.logger.Log("task %s: shutdown during resolution", t.ID)
			return false
		}
		e.failTask(t, "strategy resolution failed: "+err.Error(), "resolution failed")
		return false
	}

	steps := buildSteps(t.ID, planned)
	from := t.Status
	t.Status = models.TaskStatusRunning
	t.Strategy = strategy
	if err := e.persist(func() error { return e.store.MaterializePlan(t, steps) }); err != nil {
		log.Printf("[engine] task %s: materialize plan: %v", t.ID, err)
		t.Status = from
		return false
	}
	t.Steps = steps

	e.logger.Log("task %s: plan resolved: %d steps, category %s, complexity %s",
		t.ID, len(steps), strategy.Category, strategy.Complexity)
	e.emit(Event{
		Type:    EventPlanResolved,
		TaskID:  t.ID,
		Message: fmt.Sprintf("%d steps, complexity %s", len(steps), strategy.Complexity),
	})
	return true
}

// runSteps executes the plan in step order. Completed steps feed their
// results to later ones through the invocation context.
func (e *Engine) runSteps(ctx context.Context, t *models.Task) {
	tier := e.cfg.Tiers.Get(taskComplexity(t))
	stepContext := make(map[string]string)

	for i := range t.Steps {
		s := &t.Steps[i]
		if s.Status == models.StepStatusCompleted {
			stepContext[stepOutputKey(s.StepNumber)] = s.Result
			continue
		}

		if ctx.Err() != nil {
			// Shutdown between steps; the running task is recovered
			// on the next start.
			e.logger.Log("task %s: shutdown before step %d", t.ID, s.StepNumber)
			return
		}
		if e.cancelRequested(t.ID) {
			e.cancelTask(t)
			return
		}

		if !e.runStep(ctx, t, s, tier, stepContext) {
			return
		}
		stepContext[stepOutputKey(s.StepNumber)] = s.Result
	}

	e.completeTask(t, fmt.Sprintf("all %d steps completed", len(t.Steps)))
}

// runStep drives one step to a terminal status, retrying failed
// attempts within the tier budget. Returns false when the task must
// stop, whether failed, cancelled, or interrupted by shutdown.
func (e *Engine) runStep(ctx context.Context, t *models.Task, s *models.Step, tier config.TierConfig, stepContext map[string]string) bool {
	switch s.Status {
	case models.StepStatusRunning:
		// An attempt from a previous process with unknown outcome.
		// It counts against the budget and the step runs again.
		s.RetryCount++
		if err := e.persist(func() error {
			return e.store.SaveStepTransition(s, models.StepStatusRunning,
				fmt.Sprintf("interrupted attempt counted, retry %d/%d", s.RetryCount, tier.MaxRetries))
		}); err != nil {
			log.Printf("[engine] task %s step %d: persist resume: %v", t.ID, s.StepNumber, err)
			return false
		}
		if s.RetryCount > tier.MaxRetries {
			e.failStep(t, s, "interrupted by restart", "retries exhausted at restart")
			e.failTask(t, fmt.Sprintf("step %d exhausted retries: interrupted by restart", s.StepNumber), "aborted on step failure")
			return false
		}
		e.emit(Event{Type: EventStepStarted, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool, Message: "resumed after restart"})

	case models.StepStatusFailed:
		// The previous process stopped between recording the failure
		// and deciding on a retry. Re-decide from the budget.
		if s.RetryCount >= tier.MaxRetries {
			e.failTask(t, fmt.Sprintf("step %d exhausted retries: %s", s.StepNumber, s.Error), "aborted on step failure")
			return false
		}
		s.RetryCount++
		from := s.Status
		s.Status = models.StepStatusRunning
		if err := e.persist(func() error {
			return e.store.SaveStepTransition(s, from, fmt.Sprintf("retry %d/%d after restart", s.RetryCount, tier.MaxRetries))
		}); err != nil {
			log.Printf("[engine] task %s step %d: persist retry: %v", t.ID, s.StepNumber, err)
			return false
		}
		e.emit(Event{Type: EventStepStarted, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool, Message: "resumed after restart"})

	default:
		from := s.Status
		s.Status = models.StepStatusRunning
		if err := e.persist(func() error {
			return e.store.SaveStepTransition(s, from, "attempt 1")
		}); err != nil {
			log.Printf("[engine] task %s step %d: persist running: %v", t.ID, s.StepNumber, err)
			return false
		}
		e.emit(Event{Type: EventStepStarted, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool})
	}

	for {
		reg, err := e.registry.Lookup(s.Tool)
		if err != nil {
			// The planner validated tool names, so this only happens
			// when the registry changed across a restart.
			e.failStep(t, s, err.Error(), "capability missing from registry")
			e.failTask(t, fmt.Sprintf("step %d failed: %s", s.StepNumber, err.Error()), "aborted on step failure")
			return false
		}

		attempt := s.RetryCount + 1
		res := executor.Execute(ctx, *s, reg, tier.StepTimeout, stepContext)
		e.logger.Log("task %s step %d: attempt %d: success=%v retryable=%v timed_out=%v duration=%s error=%q",
			t.ID, s.StepNumber, attempt, res.Success, res.Retryable, res.TimedOut, res.Duration.Round(time.Millisecond), res.Error)

		if res.Success {
			from := s.Status
			s.Status = models.StepStatusCompleted
			s.Result = res.Payload
			s.Error = ""
			now := time.Now().UTC()
			s.CompletedAt = &now
			if err := e.persist(func() error {
				return e.store.SaveStepTransition(s, from,
					fmt.Sprintf("attempt %d succeeded in %s", attempt, res.Duration.Round(time.Millisecond)))
			}); err != nil {
				log.Printf("[engine] task %s step %d: persist completed: %v", t.ID, s.StepNumber, err)
				return false
			}
			e.emit(Event{Type: EventStepCompleted, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool})
			return true
		}

		if ctx.Err() != nil && !res.TimedOut {
			// Shutdown mid-attempt. The step stays running in the
			// store; recovery counts this attempt against the budget.
			e.logger.Log("task %s step %d: shutdown during attempt %d", t.ID, s.StepNumber, attempt)
			return false
		}

		allowed := retryAllowed(res, reg.Idempotency, e.cfg.Engine.RetrySideEffects)
		canRetry := allowed && s.RetryCount < tier.MaxRetries

		from := s.Status
		s.Status = models.StepStatusFailed
		s.Error = res.Error
		if !canRetry {
			now := time.Now().UTC()
			s.CompletedAt = &now
		}
		if err := e.persist(func() error {
			return e.store.SaveStepTransition(s, from, fmt.Sprintf("attempt %d failed: %s", attempt, res.Error))
		}); err != nil {
			log.Printf("[engine] task %s step %d: persist failure: %v", t.ID, s.StepNumber, err)
			return false
		}

		if !canRetry {
			e.emit(Event{Type: EventStepFailed, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool, Message: res.Error})
			msg := fmt.Sprintf("step %d failed: %s", s.StepNumber, res.Error)
			if allowed && s.RetryCount >= tier.MaxRetries {
				msg = fmt.Sprintf("step %d exhausted retries: %s", s.StepNumber, res.Error)
			}
			e.failTask(t, msg, "aborted on step failure")
			return false
		}

		delay := retryDelay(e.cfg.Engine.RetryBaseDelay, e.cfg.Engine.RetryMaxDelay, attempt)
		e.emit(Event{
			Type:       EventStepRetrying,
			TaskID:     t.ID,
			StepNumber: s.StepNumber,
			Tool:       s.Tool,
			Message:    fmt.Sprintf("attempt %d/%d in %s", attempt+1, tier.MaxRetries+1, delay),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Shutdown during backoff. The step stays failed with
			// budget left; recovery re-decides the retry.
			return false
		}
		if e.cancelRequested(t.ID) {
			e.cancelTask(t)
			return false
		}

		s.RetryCount++
		from = s.Status
		s.Status = models.StepStatusRunning
		if err := e.persist(func() error {
			return e.store.SaveStepTransition(s, from, fmt.Sprintf("retry %d/%d", s.RetryCount, tier.MaxRetries))
		}); err != nil {
			log.Printf("[engine] task %s step %d: persist retry: %v", t.ID, s.StepNumber, err)
			return false
		}
	}
}

// failStep records a terminal step failure.
func (e *Engine) failStep(t *models.Task, s *models.Step, errMsg, detail string) {
	from := s.Status
	s.Status = models.StepStatusFailed
	s.Error = errMsg
	now := time.Now().UTC()
	s.CompletedAt = &now
	if err := e.persist(func() error {
		return e.store.SaveStepTransition(s, from, detail)
	}); err != nil {
		log.Printf("[engine] task %s step %d: persist failure: %v", t.ID, s.StepNumber, err)
		return
	}
	e.emit(Event{Type: EventStepFailed, TaskID: t.ID, StepNumber: s.StepNumber, Tool: s.Tool, Message: errMsg})
}

// completeTask moves the task to completed.
func (e *Engine) completeTask(t *models.Task, detail string) {
	from := t.Status
	t.Status = models.TaskStatusCompleted
	t.ErrorMessage = ""
	now := time.Now().UTC()
	t.CompletedAt = &now
	if err := e.persist(func() error {
		return e.store.SaveTaskTransition(t, from, detail)
	}); err != nil {
		log.Printf("[engine] task %s: persist completed: %v", t.ID, err)
		return
	}
	e.logger.Log("task %s: completed (%s)", t.ID, detail)
	e.emit(Event{Type: EventTaskCompleted, TaskID: t.ID, Message: detail})
}

// failTask moves the task to failed with the given error message.
func (e *Engine) failTask(t *models.Task, errMsg, detail string) {
	from := t.Status
	t.Status = models.TaskStatusFailed
	t.ErrorMessage = errMsg
	now := time.Now().UTC()
	t.CompletedAt = &now
	if err := e.persist(func() error {
		return e.store.SaveTaskTransition(t, from, detail)
	}); err != nil {
		log.Printf("[engine] task %s: persist failed: %v", t.ID, err)
		return
	}
	e.logger.Log("task %s: failed: %s", t.ID, errMsg)
	e.emit(Event{Type: EventTaskFailed, TaskID: t.ID, Message: errMsg})
}

// cancelTask honors a cancel request between steps.
func (e *Engine) cancelTask(t *models.Task) {
	from := t.Status
	t.Status = models.TaskStatusFailed
	t.ErrorMessage = "cancelled by request"
	now := time.Now().UTC()
	t.CompletedAt = &now
	if err := e.persist(func() error {
		return e.store.SaveTaskTransition(t, from, "cancel honored")
	}); err != nil {
		log.Printf("[engine] task %s: persist cancel: %v", t.ID, err)
		return
	}
	if e.signals != nil {
		e.signals.Clear(t.ID)
	}
	e.logger.Log("task %s: cancelled", t.ID)
	e.emit(Event{Type: EventTaskCancelled, TaskID: t.ID, Message: "cancelled by request"})
}

// buildSteps turns a resolved plan into pending step records.
func buildSteps(taskID string, planned []models.PlannedStep) []models.Step {
	now := time.Now().UTC()
	steps := make([]models.Step, len(planned))
	for i, p := range planned {
		steps[i] = models.Step{
			ID:          uuid.New().String(),
			TaskID:      taskID,
			StepNumber:  i + 1,
			Instruction: p.Instruction,
			Tool:        p.Tool,
			Args:        p.Args,
			Status:      models.StepStatusPending,
			CreatedAt:   now,
		}
	}
	return steps
}

// taskComplexity returns the task's tier, defaulting to medium when
// the strategy is not resolved yet.
func taskComplexity(t *models.Task) models.Complexity {
	if t.Strategy != nil && t.Strategy.Complexity.Valid() {
		return t.Strategy.Complexity
	}
	return models.ComplexityMedium
}

// stepOutputKey names a step's result in the invocation context handed
// to later steps.
func stepOutputKey(stepNumber int) string {
	return fmt.Sprintf("step_%d_output", stepNumber)
}
