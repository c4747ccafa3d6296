package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/pkg/db/models"
	dbtypes "github.com/homevia/homevia-backend/pkg/db/types"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/outbox"
	paginationpkg "github.com/homevia/homevia-backend/pkg/pagination"
)

type fakeRepository struct {
	created       []*models.Notification
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	notification.ID = uuid.New()
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) RecordEmailResult(ctx context.Context, id uuid.UUID, status enums.EmailStatus, sentAt time.Time) error {
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestDispatch_CreatesRowWithDefaults(t *testing.T) {
	repo := &fakeRepository{}
	emitter := &fakeEmitter{}
	svc, err := NewService(repo, emitter)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	userID := uuid.New()
	row, err := svc.Dispatch(context.Background(), &gorm.DB{}, DispatchInput{
		UserID:  userID,
		Title:   "Visit approved",
		Message: "Your visit was approved",
		Type:    enums.NotificationTypeVisitUpdate,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if row.Priority != enums.NotificationPriorityNormal {
		t.Fatalf("expected normal priority default, got %s", row.Priority)
	}
	if !row.Channels.Has(enums.NotificationChannelInApp) {
		t.Fatalf("expected in_app channel default")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("in-app only notification should not queue email fan-out")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one persisted row, got %d", len(repo.created))
	}
}

func TestDispatch_EmailChannelQueuesOutboxEvent(t *testing.T) {
	repo := &fakeRepository{}
	emitter := &fakeEmitter{}
	svc, err := NewService(repo, emitter)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	row, err := svc.Dispatch(context.Background(), &gorm.DB{}, DispatchInput{
		UserID:   uuid.New(),
		Title:    "Token paid",
		Message:  "Token payment received",
		Type:     enums.NotificationTypePayment,
		Priority: enums.NotificationPriorityHigh,
		Channels: dbtypes.ChannelList{enums.NotificationChannelInApp, enums.NotificationChannelEmail},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(emitter.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventNotificationCreated {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != row.ID {
		t.Fatalf("event aggregate should be the notification id")
	}
}

func TestDispatch_ValidationFailures(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, &fakeEmitter{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []struct {
		name  string
		input DispatchInput
	}{
		{name: "missing user", input: DispatchInput{Title: "t", Type: enums.NotificationTypeSystem}},
		{name: "missing title", input: DispatchInput{UserID: uuid.New(), Type: enums.NotificationTypeSystem}},
		{name: "bad type", input: DispatchInput{UserID: uuid.New(), Title: "t", Type: "bogus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Dispatch(context.Background(), &gorm.DB{}, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := svc.Dispatch(context.Background(), nil, DispatchInput{UserID: uuid.New(), Title: "t", Type: enums.NotificationTypeSystem}); err == nil {
		t.Fatal("expected error when transaction missing")
	}
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			return []models.Notification{second, first}, &paginationpkg.Cursor{CreatedAt: first.CreatedAt, ID: first.ID}, nil
		},
	}
	svc, err := NewService(repo, &fakeEmitter{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected two items, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected next-page cursor")
	}
}

func TestService_ListRequiresUser(t *testing.T) {
	svc, _ := NewService(&fakeRepository{}, &fakeEmitter{})
	_, err := svc.List(context.Background(), ListParams{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc, _ := NewService(repo, &fakeEmitter{})

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_MarkAllReadPropagatesErrors(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	svc, _ := NewService(repo, &fakeEmitter{})

	if _, err := svc.MarkAllRead(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
