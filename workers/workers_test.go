package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dbpkg "platestyle/db"
	"platestyle/models"
	"platestyle/queue"
	"platestyle/storage"
	"platestyle/styles"
	"platestyle/tools"

	"github.com/hibiken/asynq"
	"github.com/jinzhu/gorm"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct {
	calls atomic.Int32
	out   tools.GeneratedImage
	err   error
	hook  func()
}

func (f *fakeAI) GenerateImage(_ context.Context, req tools.GenerateImageRequest) (tools.GeneratedImage, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return tools.GeneratedImage{}, f.err
	}
	return f.out, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, jobID string, interactive bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, jobID)
	return true, nil
}

type testEnv struct {
	db        *gorm.DB
	clock     *clockwork.FakeClock
	store     storage.Store
	ai        *fakeAI
	processor *Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := dbpkg.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, dbpkg.Migrate(database))
	t.Cleanup(func() { database.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := storage.NewMulti(nil)
	ai := &fakeAI{out: tools.GeneratedImage{Data: []byte("styled"), MimeType: "image/png"}}

	return &testEnv{
		db:    database,
		clock: clock,
		store: store,
		ai:    ai,
		processor: &Processor{
			DB:      database,
			Store:   store,
			Catalog: styles.Default(),
			AI:      ai,
			Clock:   clock,
			JobCost: 1,
		},
	}
}

// seedJob creates a user who already paid for one PENDING job.
func (e *testEnv) seedJob(t *testing.T, id string) models.GenerationJob {
	t.Helper()
	user := models.User{Name: "Cook", Email: id + "@example.com", Password: "x"}
	require.NoError(t, e.db.Create(&user).Error)

	ref, err := e.store.Put(context.Background(), storage.InputKey(user.ID, id, "image/jpeg"), "image/jpeg", []byte("raw"))
	require.NoError(t, err)

	now := e.clock.Now()
	job := models.GenerationJob{
		ID:            id,
		UserID:        user.ID,
		Style:         "rustic",
		AspectRatio:   "1:1",
		Status:        models.JOB_STATUS_PENDING,
		InputRef:      ref,
		InputMime:     "image/jpeg",
		CreditCharged: true,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	require.NoError(t, e.db.Create(&job).Error)
	return job
}

func (e *testEnv) reload(t *testing.T, id string) models.GenerationJob {
	t.Helper()
	var job models.GenerationJob
	require.NoError(t, e.db.Where("id = ?", id).First(&job).Error)
	return job
}

func (e *testEnv) credits(t *testing.T, userID int64) int {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.Where("id = ?", userID).First(&u).Error)
	return u.Credits
}

func TestRun_Completes(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-ok")

	require.NoError(t, e.processor.Run(context.Background(), job.ID))

	got := e.reload(t, job.ID)
	assert.Equal(t, models.JOB_STATUS_COMPLETED, got.Status)
	assert.Equal(t, "image/png", got.ResultMime)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
	assert.True(t, got.CreditCharged)

	obj, err := e.store.Open(context.Background(), got.ResultRef)
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestRun_ConcurrentTriggersClaimOnce(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-race")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.processor.Run(context.Background(), job.ID))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, e.ai.calls.Load())
	got := e.reload(t, job.ID)
	assert.Equal(t, models.JOB_STATUS_COMPLETED, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestRun_NotPendingIsNoop(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-done")
	require.NoError(t, e.db.Model(&models.GenerationJob{}).Where("id = ?", job.ID).
		UpdateColumn("status", models.JOB_STATUS_COMPLETED).Error)

	require.NoError(t, e.processor.Run(context.Background(), job.ID))
	assert.EqualValues(t, 0, e.ai.calls.Load())
}

func TestRun_FailureRefunds(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-fail")
	e.ai.err = &tools.APIError{StatusCode: 400, Body: "bad image"}

	require.NoError(t, e.processor.Run(context.Background(), job.ID))

	got := e.reload(t, job.ID)
	assert.Equal(t, models.JOB_STATUS_FAILED, got.Status)
	assert.Contains(t, got.ErrorMessage, "400")
	assert.False(t, got.CreditCharged)
	assert.Equal(t, 1, e.credits(t, job.UserID))

	var ledger []models.CreditTransaction
	require.NoError(t, e.db.Where("user_id = ?", job.UserID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, models.CREDIT_REASON_JOB_REFUND, ledger[0].Reason)
}

func TestRun_DeadlineBecomesTimeoutMessage(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-slow")
	e.ai.err = context.DeadlineExceeded

	require.NoError(t, e.processor.Run(context.Background(), job.ID))
	assert.Equal(t, MSG_PROCESSING_TIMED_OUT, e.reload(t, job.ID).ErrorMessage)
}

func TestRun_TimedOutMeanwhileDiscardsResult(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-late")
	e.ai.hook = func() {
		// the sweeper wins while the model is still running
		var j models.GenerationJob
		require.NoError(t, e.db.Where("id = ?", job.ID).First(&j).Error)
		require.NoError(t, e.processor.Fail(j, MSG_PROCESSING_TIMED_OUT))
	}

	require.NoError(t, e.processor.Run(context.Background(), job.ID))

	got := e.reload(t, job.ID)
	assert.Equal(t, models.JOB_STATUS_FAILED, got.Status)
	assert.Empty(t, got.ResultRef)
	assert.Equal(t, 1, e.credits(t, job.UserID))
}

func TestFail_RefundsOnlyOnce(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-twice")
	claimed, err := e.processor.Claim(job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, e.processor.Fail(job, "boom"))
	require.NoError(t, e.processor.Fail(job, "boom again"))

	assert.Equal(t, 1, e.credits(t, job.UserID))
	assert.Equal(t, "boom", e.reload(t, job.ID).ErrorMessage)
}

func TestSweeper(t *testing.T) {
	e := newTestEnv(t)
	dispatcher := &recordingDispatcher{}
	sweeper := &Sweeper{
		DB:                e.db,
		Dispatcher:        dispatcher,
		Processor:         e.processor,
		Clock:             e.clock,
		Interval:          time.Minute,
		PendingGrace:      time.Minute,
		ProcessingTimeout: 5 * time.Minute,
	}

	stale := e.seedJob(t, "job-stale")
	stuck := e.seedJob(t, "job-stuck")
	claimed, err := e.processor.Claim(stuck.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	redispatched, timedOut := sweeper.Sweep(context.Background())
	assert.Equal(t, 0, redispatched, "pending grace not elapsed yet")
	assert.Equal(t, 0, timedOut)

	e.clock.Advance(2 * time.Minute)
	fresh := e.seedJob(t, "job-fresh")

	redispatched, timedOut = sweeper.Sweep(context.Background())
	assert.Equal(t, 1, redispatched)
	assert.Equal(t, 0, timedOut)
	assert.Equal(t, []string{stale.ID}, dispatcher.jobs)

	e.clock.Advance(4 * time.Minute)
	_, timedOut = sweeper.Sweep(context.Background())
	assert.Equal(t, 1, timedOut)

	got := e.reload(t, stuck.ID)
	assert.Equal(t, models.JOB_STATUS_FAILED, got.Status)
	assert.Equal(t, MSG_PROCESSING_TIMED_OUT, got.ErrorMessage)
	assert.Equal(t, 1, e.credits(t, stuck.UserID))
	assert.Equal(t, models.JOB_STATUS_PENDING, e.reload(t, fresh.ID).Status)
}

func TestSweeper_StartStopsWithContext(t *testing.T) {
	e := newTestEnv(t)
	dispatcher := &recordingDispatcher{}
	sweeper := &Sweeper{
		DB:                e.db,
		Dispatcher:        dispatcher,
		Processor:         e.processor,
		Clock:             e.clock,
		Interval:          time.Minute,
		PendingGrace:      time.Second,
		ProcessingTimeout: time.Hour,
	}
	job := e.seedJob(t, "job-tick")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)

	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))
	e.clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		return len(dispatcher.jobs) == 1 && dispatcher.jobs[0] == job.ID
	}, time.Second, 10*time.Millisecond)
}

func TestHandleGenerationTask(t *testing.T) {
	e := newTestEnv(t)
	job := e.seedJob(t, "job-task")
	handler := HandleGenerationTask(e.processor)

	task, err := queue.NewGenerationTask(job.ID)
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, models.JOB_STATUS_COMPLETED, e.reload(t, job.ID).Status)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(queue.TaskTypeGeneration, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
