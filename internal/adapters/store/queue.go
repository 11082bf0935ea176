package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// TaskRecordBattle carries one JSON-encoded domain.BattleResult.
const TaskRecordBattle = "battle:record"

// QueueSink defers recording to a worker so a slow database never holds a
// battle result in process memory.
type QueueSink struct {
	client *asynq.Client
}

func NewQueueSink(client *asynq.Client) *QueueSink {
	return &QueueSink{client: client}
}

func (q *QueueSink) RecordBattle(ctx context.Context, res domain.BattleResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("queue: encode result: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx,
		asynq.NewTask(TaskRecordBattle, payload),
		asynq.TaskID(string(res.BattleID)),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	log.Debug().Str("module", "store.queue").Str("battle", string(res.BattleID)).Str("task", info.ID).Msg("result enqueued")
	return nil
}

// RecordBattleHandler decodes a queued result and hands it to sink.
func RecordBattleHandler(sink core.ResultSink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var res domain.BattleResult
		if err := json.Unmarshal(t.Payload(), &res); err != nil {
			// malformed payload never gets better
			return fmt.Errorf("queue: decode result: %v: %w", err, asynq.SkipRetry)
		}
		return sink.RecordBattle(ctx, res)
	}
}

// Worker drains queued results into the durable sink.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, concurrency int, sink core.ResultSink) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("module", "store.queue").Str("task", task.Type()).Msg("task failed")
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskRecordBattle, RecordBattleHandler(sink))
	return &Worker{server: srv, mux: mux}
}

// Run blocks until ctx is canceled, then shuts the worker down.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("queue: start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { log.Debug().Str("module", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { log.Info().Str("module", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { log.Warn().Str("module", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { log.Error().Str("module", "asynq").Msg(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...any) { log.Fatal().Str("module", "asynq").Msg(fmt.Sprint(args...)) }
