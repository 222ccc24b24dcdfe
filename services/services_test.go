package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"platestyle/apperrors"
	dbpkg "platestyle/db"
	"platestyle/models"
	"platestyle/queue"
	"platestyle/storage"
	"platestyle/styles"

	"github.com/jinzhu/gorm"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	jobs   []string
	accept bool
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, jobID string, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.jobs = append(f.jobs, jobID)
	return f.accept, nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type fixture struct {
	db         *gorm.DB
	clock      *clockwork.FakeClock
	dispatcher *fakeDispatcher
	jobs       *JobService
	credits    *CreditService
	users      *UserService
	admin      *AdminService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := dbpkg.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, dbpkg.Migrate(database))
	t.Cleanup(func() { database.Close() })
	return database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := newTestDB(t)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	dispatcher := &fakeDispatcher{accept: true}

	return &fixture{
		db:         database,
		clock:      clock,
		dispatcher: dispatcher,
		jobs: &JobService{
			DB:           database,
			Store:        storage.NewMulti(nil),
			Catalog:      styles.Default(),
			Dispatcher:   dispatcher,
			Debouncer:    queue.NewMemoryDebouncer(clock, 3*time.Second),
			Clock:        clock,
			JobCost:      1,
			MaxBytes:     1 << 20,
			MaxDimension: 64,
			MaxPixels:    1 << 20,
		},
		credits: &CreditService{DB: database, JobCost: 1},
		users:   &UserService{DB: database, BcryptCost: 4, SignupBonus: 3},
		admin:   &AdminService{DB: database},
	}
}

func (f *fixture) createUser(t *testing.T, email string, credits int, admin bool) models.User {
	t.Helper()
	u := models.User{Name: "Test", Email: email, Password: "x", Credits: credits, Admin: admin}
	require.NoError(t, f.db.Create(&u).Error)
	// gorm skips zero values that carry a default tag
	require.NoError(t, f.db.Model(&u).UpdateColumns(map[string]any{"credits": credits, "admin": admin}).Error)
	return u
}

func (f *fixture) balance(t *testing.T, userID int64) int {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("id = ?", userID).First(&u).Error)
	return u.Credits
}

func (f *fixture) reload(t *testing.T, id string) models.GenerationJob {
	t.Helper()
	var job models.GenerationJob
	require.NoError(t, f.db.Where("id = ?", id).First(&job).Error)
	return job
}

func (f *fixture) setStatus(t *testing.T, id, status string) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.GenerationJob{}).Where("id = ?", id).UpdateColumn("status", status).Error)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for x := 0; x < 16; x++ {
		img.Set(x, 3, color.RGBA{255, 0, 0, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func submitReq(t *testing.T) SubmitRequest {
	return SubmitRequest{Style: "rustic", AspectRatio: "1:1", Image: pngBytes(t)}
}

func countJobs(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Model(&models.GenerationJob{}).Count(&n).Error)
	return n
}

func assertType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, want), "expected %s, got %v", want, err)
}

/**** MARK: submit ****/

func TestSubmit_ChargesAndDispatches(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "a@example.com", 2, false)

	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	assert.Equal(t, models.JOB_STATUS_PENDING, job.Status)
	assert.True(t, job.CreditCharged)
	assert.Equal(t, 1, f.balance(t, user.ID))
	assert.Equal(t, []string{job.ID}, f.dispatcher.jobs)

	stored := f.reload(t, job.ID)
	assert.Equal(t, "image/png", stored.InputMime)
	assert.Contains(t, stored.InputRef, "data:image/png;base64,")

	var ledger []models.CreditTransaction
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, -1, ledger[0].Delta)
	assert.Equal(t, models.CREDIT_REASON_JOB_DEBIT, ledger[0].Reason)
	assert.Equal(t, job.ID, ledger[0].JobID)
	assert.Equal(t, 1, ledger[0].BalanceAfter)
}

func TestSubmit_ZeroCreditsRejected(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "broke@example.com", 0, false)

	_, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	assertType(t, err, apperrors.TypePaymentRequired)

	assert.Equal(t, 0, countJobs(t, f.db))
	assert.Equal(t, 0, f.balance(t, user.ID))
	assert.Zero(t, f.dispatcher.count())
}

func TestSubmit_StaleBalanceStillGuarded(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "stale@example.com", 1, false)

	_, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	// user still says Credits=1, the database says 0
	_, err = f.jobs.Submit(context.Background(), user, submitReq(t))
	assertType(t, err, apperrors.TypePaymentRequired)
	assert.Equal(t, 1, countJobs(t, f.db))
	assert.Equal(t, 0, f.balance(t, user.ID))
}

func TestSubmit_AdminIsFree(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, "root@example.com", 0, true)

	job, err := f.jobs.Submit(context.Background(), admin, submitReq(t))
	require.NoError(t, err)
	assert.False(t, job.CreditCharged)
	assert.Equal(t, 0, f.balance(t, admin.ID))
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "v@example.com", 5, false)

	req := submitReq(t)
	req.Style = "cubism"
	_, err := f.jobs.Submit(context.Background(), user, req)
	assertType(t, err, apperrors.TypeValidation)

	req = submitReq(t)
	req.AspectRatio = "2:1"
	_, err = f.jobs.Submit(context.Background(), user, req)
	assertType(t, err, apperrors.TypeValidation)

	req = submitReq(t)
	req.Image = []byte("not an image at all")
	_, err = f.jobs.Submit(context.Background(), user, req)
	assertType(t, err, apperrors.TypeValidation)

	f.jobs.MaxPixels = 100
	_, err = f.jobs.Submit(context.Background(), user, submitReq(t))
	assertType(t, err, apperrors.TypeTooLarge)

	f.jobs.MaxPixels = 1 << 20
	f.jobs.MaxBytes = 10
	_, err = f.jobs.Submit(context.Background(), user, submitReq(t))
	assertType(t, err, apperrors.TypeTooLarge)

	assert.Equal(t, 5, f.balance(t, user.ID))
	assert.Equal(t, 0, countJobs(t, f.db))
}

func TestSubmit_DispatchFailureKeepsJob(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = assert.AnError
	user := f.createUser(t, "d@example.com", 1, false)

	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)
	assert.Equal(t, models.JOB_STATUS_PENDING, f.reload(t, job.ID).Status)
}

/**** MARK: list / get ****/

func TestList_PaginationAndOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "o@example.com", 10, false)
	other := f.createUser(t, "x@example.com", 10, false)

	var ids []string
	for i := 0; i < 5; i++ {
		job, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
		require.NoError(t, err)
		ids = append(ids, job.ID)
		f.clock.Advance(time.Second)
	}
	_, err := f.jobs.Submit(context.Background(), other, submitReq(t))
	require.NoError(t, err)

	page, err := f.jobs.List(JobFilter{UserID: owner.ID}, NewPageRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].ID, "newest first")

	page, err = f.jobs.List(JobFilter{UserID: owner.ID}, NewPageRequest(3, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)

	f.setStatus(t, ids[0], models.JOB_STATUS_FAILED)
	page, err = f.jobs.List(JobFilter{UserID: owner.ID, Status: models.JOB_STATUS_FAILED}, NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = f.jobs.List(JobFilter{Status: "DONE"}, NewPageRequest(1, 10))
	assertType(t, err, apperrors.TypeValidation)

	all, err := f.jobs.List(JobFilter{}, NewPageRequest(1, 100))
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "h@example.com", 2, false)
	for i := 0; i < 2; i++ {
		_, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
		require.NoError(t, err)
	}

	page, err := f.jobs.List(JobFilter{UserID: owner.ID}, NewPageRequest(math.MaxInt, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, MaxPage, page.Page)
	assert.Empty(t, page.Items)
}

func TestGet_OtherUserSeesNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "o@example.com", 1, false)
	other := f.createUser(t, "x@example.com", 0, false)
	admin := f.createUser(t, "a@example.com", 0, true)

	job, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
	require.NoError(t, err)

	_, err = f.jobs.Get(other, job.ID)
	assertType(t, err, apperrors.TypeNotFound)

	_, err = f.jobs.GetForViewer(other, job.ID)
	assertType(t, err, apperrors.TypeNotFound)

	got, err := f.jobs.GetForViewer(admin, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

/**** MARK: trigger ****/

func TestTrigger_Debounced(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "t@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	res, err := f.jobs.Trigger(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.True(t, res.Dispatched)
	assert.False(t, res.Debounced)

	res, err = f.jobs.Trigger(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.True(t, res.Debounced)
	assert.False(t, res.Dispatched)

	f.clock.Advance(3 * time.Second)
	res, err = f.jobs.Trigger(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.True(t, res.Dispatched)

	// submit + two non-debounced triggers
	assert.Equal(t, 3, f.dispatcher.count())
}

func TestTrigger_NotPending(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "t@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)
	f.setStatus(t, job.ID, models.JOB_STATUS_COMPLETED)

	_, err = f.jobs.Trigger(context.Background(), user, job.ID)
	assertType(t, err, apperrors.TypeConflict)
}

func TestStatus_PendingFiresTrigger(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "s@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	got, err := f.jobs.Status(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JOB_STATUS_PENDING, got.Status)
	assert.Equal(t, 2, f.dispatcher.count())

	_, err = f.jobs.Status(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.dispatcher.count(), "second poll inside the window is debounced")

	f.setStatus(t, job.ID, models.JOB_STATUS_PROCESSING)
	f.clock.Advance(time.Minute)
	_, err = f.jobs.Status(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.dispatcher.count(), "non-pending jobs are not triggered")
}

/**** MARK: retry ****/

func TestRetry_ChargesAgain(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "r@example.com", 2, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	_, err = f.jobs.Retry(context.Background(), user, job.ID)
	assertType(t, err, apperrors.TypeConflict)

	// simulate a failure that was refunded
	tx := f.db.Begin()
	refunded, err := RefundJob(tx, job, 1, f.clock.Now())
	require.NoError(t, err)
	require.True(t, refunded)
	require.NoError(t, tx.Model(&models.GenerationJob{}).Where("id = ?", job.ID).
		UpdateColumns(map[string]any{"status": models.JOB_STATUS_FAILED, "error_message": "boom"}).Error)
	require.NoError(t, tx.Commit().Error)
	assert.Equal(t, 2, f.balance(t, user.ID))

	user.Credits = 2
	retried, err := f.jobs.Retry(context.Background(), user, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JOB_STATUS_PENDING, retried.Status)
	assert.Empty(t, retried.ErrorMessage)
	assert.True(t, retried.CreditCharged)
	assert.Equal(t, 1, f.balance(t, user.ID))
}

func TestRetry_InsufficientCredits(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "r@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)
	f.setStatus(t, job.ID, models.JOB_STATUS_FAILED)

	user.Credits = 0
	_, err = f.jobs.Retry(context.Background(), user, job.ID)
	assertType(t, err, apperrors.TypePaymentRequired)
	assert.Equal(t, models.JOB_STATUS_FAILED, f.reload(t, job.ID).Status)
}

/**** MARK: delete ****/

func TestDelete_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "o@example.com", 1, false)
	other := f.createUser(t, "x@example.com", 0, false)
	job, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
	require.NoError(t, err)

	err = f.jobs.Delete(context.Background(), other, job.ID)
	assertType(t, err, apperrors.TypeNotFound)
	assert.Equal(t, 1, countJobs(t, f.db), "row survives")

	require.NoError(t, f.jobs.Delete(context.Background(), owner, job.ID))
	assert.Equal(t, 0, countJobs(t, f.db))
	assert.Equal(t, 1, f.balance(t, owner.ID), "pending job refunded on delete")
}

func TestDelete_ProcessingConflict(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "o@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
	require.NoError(t, err)
	f.setStatus(t, job.ID, models.JOB_STATUS_PROCESSING)

	err = f.jobs.Delete(context.Background(), owner, job.ID)
	assertType(t, err, apperrors.TypeConflict)
	assert.Equal(t, 1, countJobs(t, f.db))
}

func TestDelete_AdminAnyJob(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "o@example.com", 1, false)
	admin := f.createUser(t, "a@example.com", 0, true)
	job, err := f.jobs.Submit(context.Background(), owner, submitReq(t))
	require.NoError(t, err)
	f.setStatus(t, job.ID, models.JOB_STATUS_COMPLETED)

	require.NoError(t, f.jobs.Delete(context.Background(), admin, job.ID))
	assert.Equal(t, 0, countJobs(t, f.db))
	assert.Equal(t, 0, f.balance(t, owner.ID), "completed jobs are not refunded")
}

/**** MARK: credits ****/

func TestRefundJob_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "c@example.com", 1, false)
	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)

	for i, want := range []bool{true, false} {
		tx := f.db.Begin()
		refunded, err := RefundJob(tx, job, 1, f.clock.Now())
		require.NoError(t, err)
		require.NoError(t, tx.Commit().Error)
		assert.Equal(t, want, refunded, "attempt %d", i)
	}
	assert.Equal(t, 1, f.balance(t, user.ID))

	var n int
	require.NoError(t, f.db.Model(&models.CreditTransaction{}).Where("reason = ?", models.CREDIT_REASON_JOB_REFUND).Count(&n).Error)
	assert.Equal(t, 1, n)
}

func TestGrant(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, "a@example.com", 0, true)
	user := f.createUser(t, "u@example.com", 2, false)

	updated, err := f.credits.Grant(admin.ID, user.ID, 5, "promo")
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Credits)

	_, err = f.credits.Grant(admin.ID, user.ID, -8, "too much")
	assertType(t, err, apperrors.TypeValidation)
	assert.Equal(t, 7, f.balance(t, user.ID))

	updated, err = f.credits.Grant(admin.ID, user.ID, -7, "reset")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Credits)

	_, err = f.credits.Grant(admin.ID, 9999, 1, "")
	assertType(t, err, apperrors.TypeNotFound)

	_, err = f.credits.Grant(admin.ID, user.ID, 0, "")
	assertType(t, err, apperrors.TypeValidation)

	ledger, err := f.credits.Ledger(user.ID, NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Equal(t, 2, ledger.Total)
	assert.Equal(t, -7, ledger.Items[0].Delta)
	assert.Equal(t, admin.ID, ledger.Items[0].ActorID)
	assert.Equal(t, "promo", ledger.Items[1].Note)
}

/**** MARK: users ****/

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Register(RegisterRequest{Name: "Ana", Email: "Ana@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, 3, user.Credits)
	assert.Empty(t, user.Password)

	_, err = f.users.Register(RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret123"})
	assertType(t, err, apperrors.TypeConflict)

	_, err = f.users.Register(RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "short"})
	assertType(t, err, apperrors.TypeValidation)

	_, err = f.users.Register(RegisterRequest{Name: "Bob", Email: "not-an-email", Password: "secret123"})
	assertType(t, err, apperrors.TypeValidation)

	logged, err := f.users.Authenticate("ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, err = f.users.Authenticate("ana@example.com", "wrong-pass")
	assertType(t, err, apperrors.TypeUnauthorized)

	_, err = f.users.Authenticate("ghost@example.com", "secret123")
	assertType(t, err, apperrors.TypeUnauthorized)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("status", models.USER_STATUS_BLOCKED).Error)
	_, err = f.users.Authenticate("ana@example.com", "secret123")
	assertType(t, err, apperrors.TypeForbidden)

	ledger, err := f.credits.Ledger(user.ID, NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, ledger.Items, 1)
	assert.Equal(t, models.CREDIT_REASON_SIGNUP, ledger.Items[0].Reason)
}

/**** MARK: admin ****/

func TestAdminUsers(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, "root@example.com", 0, true)
	user := f.createUser(t, "maria@example.com", 1, false)
	f.createUser(t, "joao@example.com", 1, false)

	page, err := f.admin.ListUsers("MARIA", NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, user.ID, page.Items[0].ID)
	assert.Empty(t, page.Items[0].Password)

	_, err = f.admin.SetAdmin(admin.ID, admin.ID, false)
	assertType(t, err, apperrors.TypeValidation)

	promoted, err := f.admin.SetAdmin(admin.ID, user.ID, true)
	require.NoError(t, err)
	assert.True(t, promoted.Admin)

	demoted, err := f.admin.SetAdmin(admin.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, demoted.Admin)

	blocked, err := f.admin.SetStatus(admin.ID, user.ID, models.USER_STATUS_BLOCKED)
	require.NoError(t, err)
	assert.Equal(t, models.USER_STATUS_BLOCKED, blocked.Status)

	_, err = f.admin.SetStatus(admin.ID, user.ID, 9)
	assertType(t, err, apperrors.TypeValidation)

	_, err = f.admin.SetStatus(admin.ID, 9999, models.USER_STATUS_AVAILABLE)
	assertType(t, err, apperrors.TypeNotFound)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root@example.com", 0, true)
	user := f.createUser(t, "u@example.com", 3, false)

	job, err := f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)
	_, err = f.jobs.Submit(context.Background(), user, submitReq(t))
	require.NoError(t, err)
	f.setStatus(t, job.ID, models.JOB_STATUS_COMPLETED)

	st, err := f.admin.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Users)
	assert.Equal(t, 1, st.Admins)
	assert.Equal(t, 2, st.Jobs)
	assert.Equal(t, 1, st.JobsByStatus[models.JOB_STATUS_COMPLETED])
	assert.Equal(t, 1, st.JobsByStatus[models.JOB_STATUS_PENDING])
	assert.Equal(t, 0, st.JobsByStatus[models.JOB_STATUS_FAILED])
	assert.Equal(t, 1, st.CreditsOutstanding)
}

/**** MARK: pagination ****/

func TestPageRequestBounds(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, PerPage: DefaultPerPage}, NewPageRequest(0, 0))
	assert.Equal(t, PageRequest{Page: 2, PerPage: MaxPerPage}, NewPageRequest(2, 1000))
	assert.Equal(t, 40, NewPageRequest(3, 20).Offset())

	huge := NewPageRequest(math.MaxInt, MaxPerPage)
	assert.Equal(t, MaxPage, huge.Page)
	assert.Positive(t, huge.Offset())

	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))

	p := NewPage[int](nil, 0, NewPageRequest(1, 10))
	assert.NotNil(t, p.Items)
	assert.Equal(t, 0, p.TotalPages)
}
