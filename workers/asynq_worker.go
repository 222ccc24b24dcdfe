package workers

import (
	"context"
	"fmt"
	"log/slog"

	"platestyle/queue"

	"github.com/hibiken/asynq"
)

// HandleGenerationTask adapts the processor to asynq. Bad payloads are never retried.
func HandleGenerationTask(runner queue.Runner) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := queue.ParseGenerationTask(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return runner.Run(ctx, payload.JobID)
	}
}

type ServerOptions struct {
	Concurrency      int
	Queue            string
	InteractiveQueue string
}

// NewServer builds the asynq server and mux for the worker process.
func NewServer(redisOpt asynq.RedisClientOpt, opts ServerOptions, runner queue.Runner) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: opts.Concurrency,
		Queues: map[string]int{
			opts.InteractiveQueue: 4,
			opts.Queue:            1,
		},
		Logger: newAsynqLogger(),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeGeneration, HandleGenerationTask(runner))

	slog.Info("generation worker configured",
		"queue", opts.Queue,
		"interactive_queue", opts.InteractiveQueue,
		"concurrency", opts.Concurrency,
	)
	return srv, mux
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger() *asynqLogger {
	return &asynqLogger{log: slog.Default().With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
