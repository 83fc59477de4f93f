package training

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"donorsense/internal/metrics"
	"donorsense/internal/model"
)

const queueCapacity = 32

// Result is the completion notice for a submitted training job.
type Result struct {
	JobID  string
	Result *model.TrainingResult
	Err    error
}

type job struct {
	id      string
	cfg     model.TrainingConfig
	dataset *model.TrainingDataSet
	done    chan Result
}

// Queue executes training jobs in the background so fitting never blocks
// the prediction path. Jobs for the same prediction type run serially;
// distinct types may fit in parallel up to the worker count.
type Queue struct {
	trainer *Trainer
	mw      *metrics.MetricsWrapper
	workers int

	jobs   chan job
	typeMu map[model.ModelType]*sync.Mutex
	depth  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a stopped queue around the trainer.
func NewQueue(trainer *Trainer, workers int, mw *metrics.MetricsWrapper) *Queue {
	if workers < 1 {
		workers = 1
	}
	typeMu := make(map[model.ModelType]*sync.Mutex, len(model.ModelTypes))
	for _, t := range model.ModelTypes {
		typeMu[t] = &sync.Mutex{}
	}
	return &Queue{
		trainer: trainer,
		mw:      mw,
		workers: workers,
		jobs:    make(chan job, queueCapacity),
		typeMu:  typeMu,
	}
}

// Start launches the worker goroutines. The queue stops when Stop is
// called or the parent context is canceled.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	log.Info().Int("workers", q.workers).Msg("Training queue started")
}

// Stop cancels the queue, waits for in-flight jobs to finish, and fails
// anything still waiting in the channel.
func (q *Queue) Stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	q.wg.Wait()

	for {
		select {
		case j := <-q.jobs:
			q.setDepth(q.depth.Add(-1))
			j.done <- Result{JobID: j.id, Err: q.ctx.Err()}
		default:
			log.Info().Msg("Training queue stopped")
			return
		}
	}
}

// Submit enqueues a training job and returns its id plus a channel that
// receives exactly one completion Result. A full queue rejects the job
// rather than blocking the caller.
func (q *Queue) Submit(cfg model.TrainingConfig, ds *model.TrainingDataSet) (string, <-chan Result, error) {
	if q.ctx == nil {
		return "", nil, fmt.Errorf("training queue not started")
	}

	j := job{
		id:      uuid.NewString(),
		cfg:     cfg,
		dataset: ds,
		done:    make(chan Result, 1),
	}

	select {
	case <-q.ctx.Done():
		return "", nil, fmt.Errorf("training queue stopped")
	case q.jobs <- j:
		q.setDepth(q.depth.Add(1))
		log.Debug().
			Str("job", j.id).
			Str("type", string(cfg.Type)).
			Msg("Training job queued")
		return j.id, j.done, nil
	default:
		return "", nil, fmt.Errorf("training queue full, %d jobs pending", len(q.jobs))
	}
}

// Depth reports how many jobs are queued or running.
func (q *Queue) Depth() int {
	return int(q.depth.Load())
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case j := <-q.jobs:
			q.run(j)
		}
	}
}

func (q *Queue) run(j job) {
	defer q.setDepth(q.depth.Add(-1))

	// Concurrent trainings for one type must not interleave
	if mu := q.typeMu[j.cfg.Type]; mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	res, err := q.trainer.Train(q.ctx, j.cfg, j.dataset)
	j.done <- Result{JobID: j.id, Result: res, Err: err}
}

func (q *Queue) setDepth(depth int64) {
	if q.mw != nil {
		q.mw.QueueDepthSet(float64(depth))
	}
}
