package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84/webhook"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

const testSecret = "whsec_test_secret"

type stubOrders struct {
	orders.Repository
	calls  []orders.ReconcileParams
	result *orders.ReconcileResult
	err    error
}

func (s *stubOrders) WithTx(*gorm.DB) orders.Repository { return s }

func (s *stubOrders) ReconcilePayment(_ context.Context, params orders.ReconcileParams) (*orders.ReconcileResult, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// memoryKeys behaves like the redis client: calls on a done context fail.
type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]string
	down bool
}

func (m *memoryKeys) Get(ctx context.Context, key string) (string, error) {
	if err := m.check(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.keys[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryKeys) SetNX(ctx context.Context, key string, value any, _ time.Duration) (bool, error) {
	if err := m.check(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryKeys) check(ctx context.Context) error {
	if m.down {
		return errors.New("redis: connection refused")
	}
	return ctx.Err()
}

func (m *memoryKeys) WebhookEventKey(provider, eventID string) string {
	return fmt.Sprintf("market:webhook:%s:%s", provider, eventID)
}

func sessionEvent(t *testing.T, eventID, eventType string, session map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"created":     1767225600,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": session},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func completedSession(groupID uuid.UUID, paymentIntent any) map[string]any {
	return map[string]any{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"client_reference_id": groupID.String(),
		"amount_total":        29520,
		"currency":            "pln",
		"mode":                "payment",
		"payment_status":      "paid",
		"customer_email":      "",
		"payment_intent":      paymentIntent,
		"metadata":            map[string]any{"order_group_id": groupID.String(), "seller_count": "1"},
	}
}

func newTestService(t *testing.T, repo *stubOrders, keys *memoryKeys) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	var guard eventGuard
	if keys != nil {
		g, err := NewEventGuard(keys, time.Hour)
		if err != nil {
			t.Fatalf("guard: %v", err)
		}
		guard = g
	}
	svc, err := NewService(ServiceParams{
		Orders:            repo,
		TransactionRunner: client,
		Outbox:            outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
		Guard:             guard,
		SigningSecret:     testSecret,
		Logger:            logger.Nop(),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc, client
}

func outboxRows(t *testing.T, client *db.Client) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := client.DB().Find(&rows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	return rows
}

func TestHandleReconcilesCompletedSession(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 2}}
	svc, client := newTestService(t, repo, &memoryKeys{})

	payload := sessionEvent(t, "evt_1", "checkout.session.completed", completedSession(groupID, "pi_123"))
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Received || res.Applied == nil || !*res.Applied || *res.OrderGroupID != groupID {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("expected one reconcile call, got %d", len(repo.calls))
	}
	params := repo.calls[0]
	if params.AmountTotal.String() != "295.20" || params.CurrencyCode != "PLN" {
		t.Fatalf("unexpected amount %s %s", params.AmountTotal, params.CurrencyCode)
	}
	if params.PaymentIntentID == nil || *params.PaymentIntentID != "pi_123" {
		t.Fatalf("expected payment intent pi_123, got %v", params.PaymentIntentID)
	}
	if !params.EventCreatedAt.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("unexpected event time %s", params.EventCreatedAt)
	}
	if _, ok := params.Metadata["customerEmail"]; ok {
		t.Fatalf("empty customer email should be compacted away: %v", params.Metadata)
	}
	if params.Metadata["stripeSessionId"] != "cs_test_1" || params.Metadata["paymentStatus"] != "paid" {
		t.Fatalf("unexpected metadata %v", params.Metadata)
	}

	rows := outboxRows(t, client)
	if len(rows) != 1 || rows[0].EventType != enums.EventOrderGroupPaid {
		t.Fatalf("expected one order_group.paid event, got %+v", rows)
	}
}

func TestHandleAcceptsExpandedPaymentIntent(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 1}}
	svc, _ := newTestService(t, repo, nil)

	session := completedSession(groupID, map[string]any{"id": "pi_expanded", "object": "payment_intent"})
	delete(session, "metadata")
	payload := sessionEvent(t, "evt_2", "checkout.session.async_payment_succeeded", session)
	if _, err := svc.Handle(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	params := repo.calls[0]
	if params.PaymentIntentID == nil || *params.PaymentIntentID != "pi_expanded" {
		t.Fatalf("expected expanded intent id, got %v", params.PaymentIntentID)
	}
	if params.OrderGroupID != groupID {
		t.Fatalf("expected client_reference_id fallback, got %s", params.OrderGroupID)
	}
}

func TestHandleRequiresSignature(t *testing.T) {
	svc, _ := newTestService(t, &stubOrders{}, nil)
	payload := sessionEvent(t, "evt_1", "checkout.session.completed", completedSession(uuid.New(), "pi"))

	_, err := svc.Handle(context.Background(), payload, "")
	if !errors.Is(err, ErrMissingSignature) || pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected missing signature validation error, got %v", err)
	}

	_, err = svc.Handle(context.Background(), payload, "t=1,v1=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) || pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected invalid signature validation error, got %v", err)
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	repo := &stubOrders{}
	svc, _ := newTestService(t, repo, nil)

	payload := sessionEvent(t, "evt_3", "checkout.session.expired", completedSession(uuid.New(), nil))
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Received || res.Applied != nil || len(repo.calls) != 0 {
		t.Fatalf("expected bare acknowledgement, got %+v", res)
	}
}

func TestHandleAcknowledgesSessionWithoutGroup(t *testing.T) {
	repo := &stubOrders{}
	svc, _ := newTestService(t, repo, nil)

	session := completedSession(uuid.New(), nil)
	delete(session, "metadata")
	delete(session, "client_reference_id")
	payload := sessionEvent(t, "evt_4", "checkout.session.completed", session)
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Received || res.OrderGroupID != nil || len(repo.calls) != 0 {
		t.Fatalf("expected unreconcilable acknowledgement, got %+v", res)
	}
}

func TestHandleDuplicateDeliveryIsNotApplied(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 1}}
	keys := &memoryKeys{}
	svc, client := newTestService(t, repo, keys)

	payload := sessionEvent(t, "evt_5", "checkout.session.completed", completedSession(groupID, "pi"))
	if _, err := svc.Handle(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if res.Applied == nil || *res.Applied {
		t.Fatalf("expected applied=false for duplicate, got %+v", res)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("duplicate should not reach the database, got %d calls", len(repo.calls))
	}
	if rows := outboxRows(t, client); len(rows) != 1 {
		t.Fatalf("expected a single paid event, got %d", len(rows))
	}
}

func TestHandleLedgerDuplicateEmitsNothing(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: false}}
	keys := &memoryKeys{down: true}
	svc, client := newTestService(t, repo, keys)

	payload := sessionEvent(t, "evt_6", "checkout.session.completed", completedSession(groupID, "pi"))
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Applied == nil || *res.Applied {
		t.Fatalf("expected applied=false, got %+v", res)
	}
	if rows := outboxRows(t, client); len(rows) != 0 {
		t.Fatalf("expected no outbox rows, got %d", len(rows))
	}
}

func TestHandleMarksEventOnlyAfterReconcile(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 1}}
	keys := &memoryKeys{}
	svc, _ := newTestService(t, repo, keys)

	payload := sessionEvent(t, "evt_8", "checkout.session.completed", completedSession(groupID, "pi"))
	if _, err := svc.Handle(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := keys.keys[keys.WebhookEventKey("stripe", "evt_8")]; got != "done" {
		t.Fatalf("expected completion marker, got %q", got)
	}
}

func TestHandleCancelledDeliveryIsRetriedInFull(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{result: &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 1}}
	keys := &memoryKeys{}
	svc, _ := newTestService(t, repo, keys)

	payload := sessionEvent(t, "evt_9", "checkout.session.completed", completedSession(groupID, "pi"))
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Handle(cancelled, payload, sign(payload)); err == nil {
		t.Fatalf("expected the cancelled delivery to fail")
	}
	if len(keys.keys) != 0 {
		t.Fatalf("a failed delivery must leave no marker, got %v", keys.keys)
	}

	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil || res.Applied == nil || !*res.Applied {
		t.Fatalf("redelivery should apply, got %+v %v", res, err)
	}
	if n := len(repo.calls); n == 0 {
		t.Fatalf("redelivery never reached the ledger")
	}
}

func TestHandleFailureLeavesNoMarker(t *testing.T) {
	groupID := uuid.New()
	repo := &stubOrders{err: errors.New("order group not found")}
	keys := &memoryKeys{}
	svc, _ := newTestService(t, repo, keys)

	payload := sessionEvent(t, "evt_7", "checkout.session.completed", completedSession(groupID, "pi"))
	_, err := svc.Handle(context.Background(), payload, sign(payload))
	if !errors.Is(err, ErrReconciliation) || pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected reconciliation error, got %v", err)
	}
	if len(keys.keys) != 0 {
		t.Fatalf("no marker expected after a failure, got %v", keys.keys)
	}

	repo.err = nil
	repo.result = &orders.ReconcileResult{OrderGroupID: groupID, Applied: true, OrdersUpdated: 1}
	res, err := svc.Handle(context.Background(), payload, sign(payload))
	if err != nil || res.Applied == nil || !*res.Applied {
		t.Fatalf("redelivery should apply, got %+v %v", res, err)
	}
}

func TestCompactDropsEmptyValues(t *testing.T) {
	out := compact(map[string]any{
		"a": "",
		"b": nil,
		"c": map[string]any{"d": ""},
		"e": "keep",
		"f": map[string]any{"g": "x", "h": ""},
	})
	if len(out) != 2 || out["e"] != "keep" {
		t.Fatalf("unexpected compact result %v", out)
	}
	nested, ok := out["f"].(map[string]any)
	if !ok || len(nested) != 1 {
		t.Fatalf("unexpected nested result %v", out["f"])
	}
}
