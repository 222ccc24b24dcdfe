// Package queue hands PENDING generation jobs to something that will run them.
//
// Two dispatchers exist: AsynqDispatcher enqueues a task on redis for the worker process and
// InlineDispatcher runs the job on a goroutine inside the API process. Neither guarantees
// exactly-once execution; the PENDING to PROCESSING claim in the database decides who runs.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

/**** MARK: task types ****/
const (
	TaskTypeGeneration = "generation:process"
)

// Runner processes a single job to a terminal state.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Dispatcher schedules a job run. The bool reports whether a run was scheduled; false with a nil
// error means the trigger was dropped (over capacity or already queued) and the job stays PENDING.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, interactive bool) (bool, error)
}

type GenerationPayload struct {
	JobID string `json:"job_id"`
}

func NewGenerationTask(jobID string) (*asynq.Task, error) {
	b, err := json.Marshal(GenerationPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGeneration, b), nil
}

func ParseGenerationTask(t *asynq.Task) (GenerationPayload, error) {
	var p GenerationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TaskTypeGeneration, err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("invalid %s payload: missing job_id", TaskTypeGeneration)
	}
	return p, nil
}
