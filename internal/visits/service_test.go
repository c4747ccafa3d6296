package visits

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/db/models"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/outbox"
)

func setupVisitsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS properties (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  agent_id TEXT,
  title TEXT NOT NULL,
  address TEXT NOT NULL,
  price NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS visits (
  id TEXT PRIMARY KEY,
  requester_id TEXT NOT NULL,
  property_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  expiry_date DATETIME NOT NULL,
  approved_slot TEXT,
  reminder_sent_at DATETIME,
  last_status_changed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r *sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubDispatcher struct {
	inputs   []notifications.DispatchInput
	err      error
	failures int
}

func (d *stubDispatcher) Dispatch(_ context.Context, tx *gorm.DB, input notifications.DispatchInput) (*models.Notification, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.failures > 0 {
		d.failures--
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification insert failed")
	}
	d.inputs = append(d.inputs, input)
	return &models.Notification{ID: uuid.New(), UserID: input.UserID}, nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (e *stubEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	e.events = append(e.events, event)
	return nil
}

type visitsFixture struct {
	db         *gorm.DB
	service    Service
	dispatcher *stubDispatcher
	emitter    *stubEmitter
	requester  uuid.UUID
	seller     uuid.UUID
	property   models.Property
}

func newVisitsFixture(t *testing.T) *visitsFixture {
	t.Helper()

	db := setupVisitsTestDB(t)
	dispatcher := &stubDispatcher{}
	emitter := &stubEmitter{}
	requester := uuid.New()
	seller := uuid.New()

	property := models.Property{
		ID:       uuid.New(),
		SellerID: seller,
		Title:    "Garden Flat",
		Address:  "4 Elm Street",
		Price:    decimal.NewFromInt(450_000),
		Status:   enums.PropertyStatusActive,
	}
	require.NoError(t, db.Create(&property).Error)

	cfg := config.VisitsConfig{
		RequestTTL:        72 * time.Hour,
		ReminderWindowMin: 23 * time.Hour,
		ReminderWindowMax: 25 * time.Hour,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: &bytes.Buffer{}})

	service, err := NewService(&sqliteTxRunner{db: db}, NewRepository(db), dispatcher, emitter, cfg, logg)
	require.NoError(t, err)

	return &visitsFixture{
		db:         db,
		service:    service,
		dispatcher: dispatcher,
		emitter:    emitter,
		requester:  requester,
		seller:     seller,
		property:   property,
	}
}

func (f *visitsFixture) insertVisit(t *testing.T, status enums.VisitStatus, expiry time.Time, slot *string) models.Visit {
	t.Helper()
	visit := models.Visit{
		ID:                  uuid.New(),
		RequesterID:         f.requester,
		PropertyID:          f.property.ID,
		Status:              status,
		ExpiryDate:          expiry,
		ApprovedSlot:        slot,
		LastStatusChangedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.db.Create(&visit).Error)
	return visit
}

func (f *visitsFixture) reload(t *testing.T, id uuid.UUID) models.Visit {
	t.Helper()
	var visit models.Visit
	require.NoError(t, f.db.First(&visit, "id = ?", id).Error)
	return visit
}

func assertErrorCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func slotString(at time.Time) *string {
	s := at.UTC().Format(time.RFC3339)
	return &s
}

func TestRequestVisit(t *testing.T) {
	f := newVisitsFixture(t)

	visit, err := f.service.Request(context.Background(), f.requester, RequestInput{PropertyID: f.property.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.VisitStatusPending, visit.Status)
	assert.WithinDuration(t, time.Now().UTC().Add(72*time.Hour), visit.ExpiryDate, time.Minute)

	require.Len(t, f.dispatcher.inputs, 1)
	assert.Equal(t, f.seller, f.dispatcher.inputs[0].UserID)
	assert.Equal(t, enums.NotificationTypeVisitUpdate, f.dispatcher.inputs[0].Type)
}

func TestRequestVisitRequiresActiveProperty(t *testing.T) {
	f := newVisitsFixture(t)
	require.NoError(t, f.db.Model(&models.Property{}).Where("id = ?", f.property.ID).UpdateColumn("status", enums.PropertyStatusSold).Error)

	_, err := f.service.Request(context.Background(), f.requester, RequestInput{PropertyID: f.property.ID})
	assertErrorCode(t, err, pkgerrors.CodeStateConflict)
}

func TestApproveVisit(t *testing.T) {
	f := newVisitsFixture(t)
	visit := f.insertVisit(t, enums.VisitStatusPending, time.Now().UTC().Add(24*time.Hour), nil)
	slot := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)

	updated, err := f.service.Approve(context.Background(), f.seller, visit.ID, slot)
	require.NoError(t, err)
	assert.Equal(t, enums.VisitStatusApproved, updated.Status)

	stored := f.reload(t, visit.ID)
	assert.Equal(t, enums.VisitStatusApproved, stored.Status)
	require.NotNil(t, stored.ApprovedSlot)
	assert.Equal(t, slot, *stored.ApprovedSlot)

	require.Len(t, f.dispatcher.inputs, 1)
	assert.Equal(t, f.requester, f.dispatcher.inputs[0].UserID)
}

func TestApproveVisitRejectsBadSlot(t *testing.T) {
	f := newVisitsFixture(t)
	visit := f.insertVisit(t, enums.VisitStatusPending, time.Now().UTC().Add(24*time.Hour), nil)

	_, err := f.service.Approve(context.Background(), f.seller, visit.ID, "next tuesday")
	assertErrorCode(t, err, pkgerrors.CodeValidation)
}

func TestApproveVisitByStrangerForbidden(t *testing.T) {
	f := newVisitsFixture(t)
	visit := f.insertVisit(t, enums.VisitStatusPending, time.Now().UTC().Add(24*time.Hour), nil)

	_, err := f.service.Approve(context.Background(), uuid.New(), visit.ID, time.Now().UTC().Format(time.RFC3339))
	assertErrorCode(t, err, pkgerrors.CodeForbidden)
}

func TestTerminalVisitIsImmutable(t *testing.T) {
	f := newVisitsFixture(t)
	ctx := context.Background()
	slot := time.Now().UTC().Format(time.RFC3339)

	for _, status := range []enums.VisitStatus{
		enums.VisitStatusRejected,
		enums.VisitStatusCompleted,
		enums.VisitStatusCancelled,
		enums.VisitStatusExpired,
		enums.VisitStatusCounterProposed,
	} {
		visit := f.insertVisit(t, status, time.Now().UTC().Add(24*time.Hour), nil)

		_, err := f.service.Approve(ctx, f.seller, visit.ID, slot)
		assertErrorCode(t, err, pkgerrors.CodeStateConflict)
		_, err = f.service.Cancel(ctx, f.requester, visit.ID)
		assertErrorCode(t, err, pkgerrors.CodeStateConflict)

		stored := f.reload(t, visit.ID)
		assert.Equal(t, status, stored.Status, "status %s must not change", status)
	}
}

func TestCancelByRequester(t *testing.T) {
	f := newVisitsFixture(t)
	visit := f.insertVisit(t, enums.VisitStatusApproved, time.Now().UTC().Add(24*time.Hour), slotString(time.Now().UTC().Add(48*time.Hour)))

	updated, err := f.service.Cancel(context.Background(), f.requester, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.VisitStatusCancelled, updated.Status)

	// the other party hears about it
	require.Len(t, f.dispatcher.inputs, 1)
	assert.Equal(t, f.seller, f.dispatcher.inputs[0].UserID)
}

func TestExpireStale(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	stale := f.insertVisit(t, enums.VisitStatusPending, now.Add(-time.Second), nil)
	fresh := f.insertVisit(t, enums.VisitStatusPending, now.Add(time.Hour), nil)
	approved := f.insertVisit(t, enums.VisitStatusApproved, now.Add(-time.Hour), nil)

	expired, err := f.service.ExpireStale(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, enums.VisitStatusExpired, f.reload(t, stale.ID).Status)
	assert.Equal(t, enums.VisitStatusPending, f.reload(t, fresh.ID).Status)
	assert.Equal(t, enums.VisitStatusApproved, f.reload(t, approved.ID).Status)

	require.Len(t, f.dispatcher.inputs, 1)
	assert.Equal(t, f.requester, f.dispatcher.inputs[0].UserID)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, enums.EventVisitExpired, f.emitter.events[0].EventType)
	assert.Equal(t, stale.ID, f.emitter.events[0].AggregateID)
}

func TestExpireStaleRollsBackRowOnNotificationFailure(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	stale := f.insertVisit(t, enums.VisitStatusPending, now.Add(-time.Minute), nil)

	f.dispatcher.err = pkgerrors.New(pkgerrors.CodeDependency, "notification insert failed")

	expired, err := f.service.ExpireStale(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, 0, expired)

	// the whole row rolls back: still pending, nothing emitted
	assert.Equal(t, enums.VisitStatusPending, f.reload(t, stale.ID).Status)
	assert.Empty(t, f.dispatcher.inputs)
	assert.Empty(t, f.emitter.events)

	// the next sweep picks the row up again
	f.dispatcher.err = nil
	expired, err = f.service.ExpireStale(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, enums.VisitStatusExpired, f.reload(t, stale.ID).Status)
	require.Len(t, f.dispatcher.inputs, 1)
	require.Len(t, f.emitter.events, 1)
}

func TestExpireStaleFailedRowDoesNotBlockOthers(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	first := f.insertVisit(t, enums.VisitStatusPending, now.Add(-2*time.Minute), nil)
	second := f.insertVisit(t, enums.VisitStatusPending, now.Add(-time.Minute), nil)

	// fail exactly one dispatch; the other row must still commit
	f.dispatcher.failures = 1

	expired, err := f.service.ExpireStale(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, enums.VisitStatusPending, f.reload(t, first.ID).Status)
	assert.Equal(t, enums.VisitStatusExpired, f.reload(t, second.ID).Status)
	require.Len(t, f.dispatcher.inputs, 1)
	require.Len(t, f.emitter.events, 1)
}

func TestExpireStaleDrainsBacklogBeyondBatchLimit(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	total := expiryBatchLimit + 1
	for i := 0; i < total; i++ {
		f.insertVisit(t, enums.VisitStatusPending, now.Add(-time.Minute), nil)
	}

	expired, err := f.service.ExpireStale(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, total, expired)
	assert.Len(t, f.dispatcher.inputs, total)

	var pending int64
	require.NoError(t, f.db.Model(&models.Visit{}).Where("status = ?", enums.VisitStatusPending).Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestExpireStaleUpdatesLastStatusChange(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	stale := f.insertVisit(t, enums.VisitStatusPending, now.Add(-time.Minute), nil)

	_, err := f.service.ExpireStale(context.Background(), now)
	require.NoError(t, err)

	stored := f.reload(t, stale.ID)
	assert.WithinDuration(t, now, stored.LastStatusChangedAt, time.Second)
}

func TestSendDueReminders(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	due := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(24*time.Hour)))
	tooSoon := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(2*time.Hour)))
	tooFar := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(48*time.Hour)))

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.NotNil(t, f.reload(t, due.ID).ReminderSentAt)
	assert.Nil(t, f.reload(t, tooSoon.ID).ReminderSentAt)
	assert.Nil(t, f.reload(t, tooFar.ID).ReminderSentAt)

	require.Len(t, f.dispatcher.inputs, 1)
	assert.Equal(t, enums.NotificationTypeReminder, f.dispatcher.inputs[0].Type)
}

func TestSendDueRemindersNeverDuplicates(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(24*time.Hour)))

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	assert.Len(t, f.dispatcher.inputs, 1)
}

func TestSendDueRemindersFailedRowIsNotCounted(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	due := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(24*time.Hour)))

	f.dispatcher.err = pkgerrors.New(pkgerrors.CodeDependency, "notification insert failed")

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, 0, sent)

	// the row's transaction rolled back, so the reminder stays owed
	assert.Nil(t, f.reload(t, due.ID).ReminderSentAt)

	f.dispatcher.err = nil
	sent, err = f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.NotNil(t, f.reload(t, due.ID).ReminderSentAt)
	assert.Len(t, f.dispatcher.inputs, 1)
}

func TestSendDueRemindersWindowBoundaries(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	lower := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(23*time.Hour)))
	upper := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(25*time.Hour)))
	below := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(22*time.Hour)))
	above := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(26*time.Hour)))

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	assert.NotNil(t, f.reload(t, lower.ID).ReminderSentAt)
	assert.NotNil(t, f.reload(t, upper.ID).ReminderSentAt)
	assert.Nil(t, f.reload(t, below.ID).ReminderSentAt)
	assert.Nil(t, f.reload(t, above.ID).ReminderSentAt)
}

func TestSendDueRemindersSkipsUnparseableSlot(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	bad := "sometime soon"
	broken := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), &bad)
	good := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), slotString(now.Add(24*time.Hour)))

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.Nil(t, f.reload(t, broken.ID).ReminderSentAt)
	assert.NotNil(t, f.reload(t, good.ID).ReminderSentAt)
}

func TestSendDueRemindersParsesShortSlotFormat(t *testing.T) {
	f := newVisitsFixture(t)
	now := time.Now().UTC().Truncate(time.Second)

	short := now.Add(24 * time.Hour).Format("2006-01-02 15:04")
	visit := f.insertVisit(t, enums.VisitStatusApproved, now.Add(72*time.Hour), &short)

	sent, err := f.service.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.NotNil(t, f.reload(t, visit.ID).ReminderSentAt)
}
