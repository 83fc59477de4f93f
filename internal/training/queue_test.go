package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorsense/internal/model"
	"donorsense/internal/registry"
)

func awaitResult(t *testing.T, done <-chan Result) Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for training result")
		return Result{}
	}
}

func TestQueue_SubmitAndComplete(t *testing.T) {
	reg := registry.New(nil, nil)
	q := NewQueue(NewTrainer(reg, nil, 0.2), 2, nil)
	q.Start(context.Background())
	defer q.Stop()

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	jobID, done, err := q.Submit(cfg, linearDataset(50))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	res := awaitResult(t, done)
	assert.Equal(t, jobID, res.JobID)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Result)
	assert.NotNil(t, reg.Get(res.Result.Model.ID), "completed job must land in the registry")
}

func TestQueue_SubmitBeforeStart(t *testing.T) {
	q := NewQueue(NewTrainer(registry.New(nil, nil), nil, 0.2), 1, nil)

	_, _, err := q.Submit(model.TrainingConfig{}, linearDataset(10))
	require.Error(t, err)
}

func TestQueue_ValidationErrorPropagates(t *testing.T) {
	q := NewQueue(NewTrainer(registry.New(nil, nil), nil, 0.2), 1, nil)
	q.Start(context.Background())
	defer q.Stop()

	cfg := model.TrainingConfig{
		Type:      model.TypeChurnRisk,
		Algorithm: model.AlgoLogisticRegression,
		Features:  []string{"days_since_last_donation"},
	}

	_, done, err := q.Submit(cfg, &model.TrainingDataSet{})
	require.NoError(t, err, "validation failures surface on the result, not at submit")

	res := awaitResult(t, done)
	require.Error(t, res.Err)
	var verr *model.ValidationError
	assert.True(t, errors.As(res.Err, &verr))
}

func TestQueue_EveryJobGetsExactlyOneResult(t *testing.T) {
	reg := registry.New(nil, nil)
	q := NewQueue(NewTrainer(reg, nil, 0.2), 1, nil)
	q.Start(context.Background())

	cfg := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}

	var channels []<-chan Result
	for i := 0; i < 5; i++ {
		_, done, err := q.Submit(cfg, linearDataset(30))
		require.NoError(t, err)
		channels = append(channels, done)
	}

	q.Stop()

	// After Stop every submitted job has either completed or been failed
	// with a cancellation error; none may hang.
	for i, done := range channels {
		select {
		case res := <-done:
			if res.Err != nil {
				assert.ErrorIs(t, res.Err, context.Canceled, "job %d", i)
			}
		default:
			t.Errorf("job %d received no result after Stop", i)
		}
	}
}

func TestQueue_DistinctTypesBothComplete(t *testing.T) {
	reg := registry.New(nil, nil)
	q := NewQueue(NewTrainer(reg, nil, 0.2), 2, nil)
	q.Start(context.Background())
	defer q.Stop()

	ltv := model.TrainingConfig{
		Type:      model.TypeLifetimeValue,
		Algorithm: model.AlgoLinearRegression,
		Features:  []string{"total_donated", "donation_count"},
	}
	churn := model.TrainingConfig{
		Type:      model.TypeChurnRisk,
		Algorithm: model.AlgoLogisticRegression,
		Features:  []string{"days_since_last_donation", "donation_count"},
	}

	_, ltvDone, err := q.Submit(ltv, linearDataset(40))
	require.NoError(t, err)
	_, churnDone, err := q.Submit(churn, churnDataset(40))
	require.NoError(t, err)

	require.NoError(t, awaitResult(t, ltvDone).Err)
	require.NoError(t, awaitResult(t, churnDone).Err)

	assert.Len(t, reg.ActiveByType(model.TypeLifetimeValue), 1)
	assert.Len(t, reg.ActiveByType(model.TypeChurnRisk), 1)
}
