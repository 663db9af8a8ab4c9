package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sentinel/internal/pkg/logger"
	"sentinel/internal/service/trust/domain"
	"sentinel/internal/service/trust/domain/port"
)

// FraudService 实现风控事件的生命周期：DETECTED -> {CONFIRMED, DISMISSED}。
// 事件是审计记录，只会被复核动作改写，永远不会被删除。
type FraudService struct {
	orderRepo domain.OrderRepository
	fraudRepo domain.FraudEventRepository
	notifier  port.NotificationProducer
	tracer    trace.Tracer
}

func NewFraudService(orderRepo domain.OrderRepository, fraudRepo domain.FraudEventRepository, notifier port.NotificationProducer, tracer trace.Tracer) *FraudService {
	return &FraudService{
		orderRepo: orderRepo,
		fraudRepo: fraudRepo,
		notifier:  notifier,
		tracer:    tracer,
	}
}

// Raise 针对一笔订单登记一条待复核的风控事件。
// 同一订单已存在未关闭事件时返回 ConflictError，保证订单维度的唯一性。
func (s *FraudService) Raise(ctx context.Context, orderID string, signal domain.RiskSignal) (*domain.FraudEvent, error) {
	ctx, span := s.tracer.Start(ctx, "fraud.Raise")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("risk.level", string(signal.Level)),
	)

	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	open, err := s.fraudRepo.FindOpenByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if open != nil {
		err := &domain.ConflictError{Entity: "fraud_event", ID: open.ID}
		span.SetStatus(codes.Error, "open fraud event already exists")
		return nil, err
	}

	event := domain.NewFraudEvent(orderID, signal)
	if err := s.fraudRepo.Save(ctx, event); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Warn().
		Str("orderId", orderID).
		Str("eventId", event.ID).
		Str("level", string(signal.Level)).
		Msg("fraud event raised, order automation suspended")

	s.notifyBestEffort(ctx, &domain.NotificationEvent{
		RecipientID: "fraud-review-queue",
		EventType:   domain.EventFraudRaised,
		Payload:     map[string]string{"orderId": orderID, "eventId": event.ID, "reason": signal.Reason},
		OccurredAt:  time.Now(),
	})
	return event, nil
}

// Review 执行人工复核动作。只有持有管理员能力的操作者可以复核；
// 已到终态的事件复核返回 InvalidTransitionError，终态不被改写。
func (s *FraudService) Review(ctx context.Context, eventID, action string, actor port.Actor, notes string) (*domain.FraudEvent, error) {
	ctx, span := s.tracer.Start(ctx, "fraud.Review")
	defer span.End()
	span.SetAttributes(
		attribute.String("fraud.event.id", eventID),
		attribute.String("fraud.action", action),
		attribute.String("actor.id", actor.ID),
	)

	if !actor.HasElevatedRole() {
		err := &domain.AuthorizationError{ActorID: actor.ID, Action: "review fraud event"}
		span.SetStatus(codes.Error, "actor lacks elevated role")
		return nil, err
	}

	event, err := s.fraudRepo.FindByID(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch action {
	case ReviewActionConfirm:
		err = event.Confirm(actor.ID, notes)
	case ReviewActionDismiss:
		err = event.Dismiss(actor.ID, notes)
	default:
		err = &domain.ValidationError{Field: "action", Reason: "must be confirm or dismiss"}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.fraudRepo.Save(ctx, event); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("eventId", event.ID).
		Str("orderId", event.OrderID).
		Str("status", string(event.Status)).
		Str("reviewer", actor.ID).
		Msg("fraud event reviewed")

	if event.Status == domain.FraudConfirmed {
		// 不需要额外的事件总线：自动化引擎每趟都会重新读取事件状态，
		// 在一个触发周期内即可看到冻结生效。
		s.notifyBestEffort(ctx, &domain.NotificationEvent{
			RecipientID: "fraud-review-queue",
			EventType:   domain.EventFraudConfirmed,
			Payload:     map[string]string{"orderId": event.OrderID, "eventId": event.ID},
			OccurredAt:  time.Now(),
		})
	}
	return event, nil
}

// BlockingEvent 返回会阻断订单自动推进的事件，没有时返回 nil。
// 自动化引擎每趟 pass 对每个订单调用一次。
func (s *FraudService) BlockingEvent(ctx context.Context, orderID string) (*domain.FraudEvent, error) {
	return s.fraudRepo.FindBlockingByOrderID(ctx, orderID)
}

func (s *FraudService) notifyBestEffort(ctx context.Context, event *domain.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("eventType", event.EventType).Msg("failed to publish notification")
	}
}
