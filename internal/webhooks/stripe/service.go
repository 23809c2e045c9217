package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

var (
	ErrMissingSignature = errors.New("stripe webhook: missing signature")
	ErrInvalidSignature = errors.New("stripe webhook: invalid signature")
	ErrReconciliation   = errors.New("stripe webhook: reconciliation failed")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventGuard interface {
	Completed(ctx context.Context, eventID string) (bool, error)
	MarkCompleted(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Orders            orders.Repository
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Guard             eventGuard
	SigningSecret     string
	Metrics           *metrics.MarketMetrics
	Logger            *logger.Logger
}

type Service struct {
	orders   orders.Repository
	txRunner txRunner
	outbox   outbox.Emitter
	guard    eventGuard
	secret   string
	metrics  *metrics.MarketMetrics
	logg     *logger.Logger
}

// Result is the acknowledgement body sent back to Stripe.
type Result struct {
	Received     bool       `json:"received"`
	OrderGroupID *uuid.UUID `json:"orderGroupId,omitempty"`
	Applied      *bool      `json:"applied,omitempty"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if strings.TrimSpace(params.SigningSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe signing secret required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		guard:    params.Guard,
		secret:   params.SigningSecret,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Handle verifies one delivery and applies it to the referenced order group.
// Unsupported or unreconcilable events are acknowledged without side effects.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingSignature, "Missing Stripe signature.")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.metrics.IncWebhook("unknown", metrics.OutcomeRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("%w: %w", ErrInvalidSignature, err), "Invalid Stripe signature.")
	}

	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": eventType,
	})

	if !reconcilable(event.Type) {
		s.metrics.IncWebhook(eventType, metrics.OutcomeIgnored)
		return &Result{Received: true}, nil
	}

	params, err := reconcileParams(&event)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "stripe.webhook.unreconcilable")
		s.metrics.IncWebhook(eventType, metrics.OutcomeIgnored)
		return &Result{Received: true}, nil
	}
	groupID := params.OrderGroupID
	ctx = s.logg.WithOrderGroupID(ctx, groupID.String())

	if s.guard != nil {
		done, err := s.guard.Completed(ctx, event.ID)
		switch {
		case err != nil:
			// The payment_events unique id still deduplicates; continue unguarded.
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stripe.webhook.guard_unavailable")
		case done:
			s.metrics.IncWebhook(eventType, metrics.OutcomeDuplicate)
			applied := false
			return &Result{Received: true, OrderGroupID: &groupID, Applied: &applied}, nil
		}
	}

	result, err := s.reconcile(ctx, params)
	if err != nil {
		s.logg.Error(ctx, "stripe.webhook.reconcile_failed", err)
		s.metrics.IncWebhook(eventType, metrics.OutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("%w: %w", ErrReconciliation, err), "Unable to reconcile payment.")
	}

	if s.guard != nil {
		// The ledger row is committed; record it even if the delivery was cancelled.
		if err := s.guard.MarkCompleted(context.WithoutCancel(ctx), event.ID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stripe.webhook.guard_mark_failed")
		}
	}

	outcome := metrics.OutcomeSuccess
	if !result.Applied {
		outcome = metrics.OutcomeDuplicate
	}
	s.metrics.IncWebhook(eventType, outcome)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"applied":        result.Applied,
		"orders_updated": result.OrdersUpdated,
	})
	if result.Applied && result.OrdersUpdated == 0 {
		s.logg.Warn(ctx, "stripe.webhook.applied_without_orders")
	} else {
		s.logg.Info(ctx, "stripe.webhook.reconciled")
	}

	applied := result.Applied
	return &Result{Received: true, OrderGroupID: &result.OrderGroupID, Applied: &applied}, nil
}

func (s *Service) reconcile(ctx context.Context, params orders.ReconcileParams) (*orders.ReconcileResult, error) {
	var result *orders.ReconcileResult
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.orders.WithTx(tx).ReconcilePayment(ctx, params)
		if err != nil {
			return err
		}
		result = res
		if !res.Applied {
			return nil
		}
		data := payloads.OrderGroupPaidEvent{
			OrderGroupID:   res.OrderGroupID,
			WebhookEventID: params.WebhookEventID,
			AmountPaid:     params.AmountTotal,
			CurrencyCode:   params.CurrencyCode,
			OrdersUpdated:  res.OrdersUpdated,
			PaidAt:         params.EventCreatedAt,
		}
		if params.PaymentIntentID != nil {
			data.PaymentIntentID = *params.PaymentIntentID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderGroupPaid,
			AggregateType: enums.AggregateOrderGroup,
			AggregateID:   res.OrderGroupID,
			Actor:         outbox.ProcessorActor(),
			Data:          data,
		})
	})
	return result, err
}

func reconcilable(eventType stripe.EventType) bool {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return true
	default:
		return false
	}
}

// reconcileParams maps a checkout session event onto the ledger call.
func reconcileParams(event *stripe.Event) (orders.ReconcileParams, error) {
	if event.Data == nil {
		return orders.ReconcileParams{}, errors.New("event data missing")
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return orders.ReconcileParams{}, fmt.Errorf("decode checkout session: %w", err)
	}

	groupID, err := resolveOrderGroupID(&cs)
	if err != nil {
		return orders.ReconcileParams{}, err
	}

	var intentID *string
	if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
		id := cs.PaymentIntent.ID
		intentID = &id
	}

	return orders.ReconcileParams{
		OrderGroupID:    groupID,
		PaymentIntentID: intentID,
		WebhookEventID:  event.ID,
		EventCreatedAt:  time.Unix(event.Created, 0).UTC(),
		AmountTotal:     money.FromMinorUnits(cs.AmountTotal),
		CurrencyCode:    strings.ToUpper(string(cs.Currency)),
		EventType:       string(event.Type),
		Metadata:        sessionMetadata(&cs),
	}, nil
}

func resolveOrderGroupID(cs *stripe.CheckoutSession) (uuid.UUID, error) {
	candidates := []string{cs.Metadata["order_group_id"], cs.ClientReferenceID}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("order group reference %q is not a uuid", raw)
		}
		return id, nil
	}
	return uuid.Nil, errors.New("session carries no order group reference")
}

func sessionMetadata(cs *stripe.CheckoutSession) types.JSONMap {
	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}
	metadata := make(map[string]any, len(cs.Metadata))
	for k, v := range cs.Metadata {
		metadata[k] = v
	}
	return compact(types.JSONMap{
		"stripeSessionId":   cs.ID,
		"clientReferenceId": cs.ClientReferenceID,
		"metadata":          metadata,
		"mode":              string(cs.Mode),
		"paymentStatus":     string(cs.PaymentStatus),
		"locale":            string(cs.Locale),
		"customerEmail":     email,
	})
}

// compact drops nil values, empty strings and maps that end up empty.
func compact(in types.JSONMap) types.JSONMap {
	out := types.JSONMap{}
	for k, v := range in {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			if value == "" {
				continue
			}
		case map[string]any:
			nested := compact(value)
			if len(nested) == 0 {
				continue
			}
			v = map[string]any(nested)
		case types.JSONMap:
			nested := compact(value)
			if len(nested) == 0 {
				continue
			}
			v = nested
		}
		out[k] = v
	}
	return out
}
