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

// ReturnService 实现退货退款工作流：
// REQUESTED -> SELLER_RESPONDED -> ITEM_RECEIVED -> INSPECTED -> {REFUNDED, REJECTED}。
// 它与自动化引擎共享订单仓储，可能和一趟 pass 并发作用于同一笔订单，
// 正确性依赖仓储的条件更新：写入前读到的状态变了就报冲突。
type ReturnService struct {
	orderRepo  domain.OrderRepository
	returnRepo domain.ReturnRequestRepository
	ledger     port.LedgerService
	notifier   port.NotificationProducer
	tracer     trace.Tracer
}

func NewReturnService(orderRepo domain.OrderRepository, returnRepo domain.ReturnRequestRepository, ledger port.LedgerService, notifier port.NotificationProducer, tracer trace.Tracer) *ReturnService {
	return &ReturnService{
		orderRepo:  orderRepo,
		returnRepo: returnRepo,
		ledger:     ledger,
		notifier:   notifier,
		tracer:     tracer,
	}
}

// Request 由买家发起退货申请。只有 DELIVERED / COMPLETED 的订单可退；
// 同一订单已有未结申请时返回 ConflictError。
func (s *ReturnService) Request(ctx context.Context, orderID, buyerID, reason string, items []domain.OrderItem) (*domain.ReturnRequest, error) {
	ctx, span := s.tracer.Start(ctx, "return.Request")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("buyer.id", buyerID),
	)

	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !order.CanAcceptReturn() {
		err := &domain.InvalidTransitionError{
			Entity: "order", ID: orderID,
			From: string(order.State), To: "RETURN_REQUESTED",
		}
		span.SetStatus(codes.Error, "order state does not permit returns")
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, &domain.AuthorizationError{ActorID: buyerID, Action: "request return for order " + orderID}
	}

	open, err := s.returnRepo.FindOpenByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if open != nil {
		return nil, &domain.ConflictError{Entity: "return_request", ID: open.ID}
	}

	req := domain.NewReturnRequest(orderID, buyerID, reason, items)
	if err := s.returnRepo.Save(ctx, req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("orderId", orderID).Str("requestId", req.ID).Msg("return request opened")
	s.notifyReturn(ctx, order.SellerID, req)
	return req, nil
}

// SellerRespond 由订单的卖家响应申请：REQUESTED -> SELLER_RESPONDED
func (s *ReturnService) SellerRespond(ctx context.Context, requestID string, actor port.Actor, message string) (*domain.ReturnRequest, error) {
	ctx, span := s.tracer.Start(ctx, "return.SellerRespond")
	defer span.End()
	span.SetAttributes(attribute.String("return.id", requestID), attribute.String("actor.id", actor.ID))

	req, order, err := s.loadRequestWithOrder(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.SellerID != actor.ID {
		return nil, &domain.AuthorizationError{ActorID: actor.ID, Action: "respond to return " + requestID}
	}

	expected := req.Status
	if err := req.AcceptSellerResponse(actor.ID, message); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.returnRepo.ConditionalUpdate(ctx, req, expected); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notifyReturn(ctx, req.BuyerID, req)
	return req, nil
}

// MarkReceived 由仓库登记退货实物签收：SELLER_RESPONDED -> ITEM_RECEIVED
func (s *ReturnService) MarkReceived(ctx context.Context, requestID string) (*domain.ReturnRequest, error) {
	ctx, span := s.tracer.Start(ctx, "return.MarkReceived")
	defer span.End()
	span.SetAttributes(attribute.String("return.id", requestID))

	req, err := s.returnRepo.FindByID(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	expected := req.Status
	if err := req.MarkItemReceived(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.returnRepo.ConditionalUpdate(ctx, req, expected); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notifyReturn(ctx, req.BuyerID, req)
	return req, nil
}

// Inspect 由质检员记录质检结论：ITEM_RECEIVED -> INSPECTED。
// 质检是提权操作，要求管理员能力。
func (s *ReturnService) Inspect(ctx context.Context, requestID string, actor port.Actor, condition, notes string) (*domain.ReturnRequest, error) {
	ctx, span := s.tracer.Start(ctx, "return.Inspect")
	defer span.End()
	span.SetAttributes(
		attribute.String("return.id", requestID),
		attribute.String("actor.id", actor.ID),
		attribute.String("inspection.condition", condition),
	)

	if !actor.HasElevatedRole() {
		return nil, &domain.AuthorizationError{ActorID: actor.ID, Action: "inspect return " + requestID}
	}
	if condition == "" {
		return nil, &domain.ValidationError{Field: "condition", Reason: "must not be empty"}
	}

	req, err := s.returnRepo.FindByID(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	expected := req.Status
	if err := req.RecordInspection(actor.ID, condition, notes); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.returnRepo.ConditionalUpdate(ctx, req, expected); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notifyReturn(ctx, req.BuyerID, req)
	return req, nil
}

// Resolve 对质检完成的申请做终局裁决。
// approve 先走台账退款，退款失败时状态保持 INSPECTED 并返回
// DownstreamFailure，调用方可以在下游恢复后原样重试；
// 对已 REFUNDED / REJECTED 的申请重复同向裁决是幂等的空操作。
func (s *ReturnService) Resolve(ctx context.Context, requestID, action string) (*domain.ReturnRequest, error) {
	ctx, span := s.tracer.Start(ctx, "return.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("return.id", requestID), attribute.String("resolve.action", action))

	if action != ResolveActionApprove && action != ResolveActionReject {
		return nil, &domain.ValidationError{Field: "action", Reason: "must be approve or reject"}
	}

	req, order, err := s.loadRequestWithOrder(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 重试幂等：同向的重复裁决直接返回当前状态，不再触发第二次退款
	if req.Status == domain.ReturnRefunded && action == ResolveActionApprove {
		span.AddEvent("already refunded, idempotent retry")
		return req, nil
	}
	if req.Status == domain.ReturnRejected && action == ResolveActionReject {
		span.AddEvent("already rejected, idempotent retry")
		return req, nil
	}

	if req.Status != domain.ReturnInspected {
		return nil, &domain.InvalidTransitionError{
			Entity: "return_request", ID: requestID,
			From: string(req.Status), To: resolveTarget(action),
		}
	}

	if action == ResolveActionApprove {
		return s.approve(ctx, req, order)
	}
	return s.reject(ctx, req)
}

func (s *ReturnService) approve(ctx context.Context, req *domain.ReturnRequest, order *domain.Order) (*domain.ReturnRequest, error) {
	span := trace.SpanFromContext(ctx)

	if !req.ConditionAcceptable() {
		return nil, &domain.ValidationError{Field: "action", Reason: "inspection condition does not permit a refund"}
	}

	amount := refundAmount(req, order)
	span.SetAttributes(attribute.Float64("refund.amount", amount))

	// 补偿性效果和状态转移要么一起生效，要么都不生效：
	// 先退款，退款没成功绝不推进到 REFUNDED。
	// 台账侧按订单去重，恢复后的重试不会二次打款。
	if err := s.ledger.Refund(ctx, req.OrderID, amount); err != nil {
		failure := &domain.DownstreamFailure{Port: "ledger", Err: err}
		span.RecordError(failure)
		span.SetStatus(codes.Error, "refund failed, state not advanced")
		return nil, failure
	}

	expected := req.Status
	if err := req.MarkRefunded(amount); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.returnRepo.ConditionalUpdate(ctx, req, expected); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("requestId", req.ID).
		Str("orderId", req.OrderID).
		Float64("amount", amount).
		Msg("return approved, refund issued")

	s.notifyBestEffort(ctx, &domain.NotificationEvent{
		RecipientID: req.BuyerID,
		EventType:   domain.EventRefundIssued,
		Payload:     map[string]string{"orderId": req.OrderID, "requestId": req.ID},
		OccurredAt:  time.Now(),
	})
	return req, nil
}

func (s *ReturnService) reject(ctx context.Context, req *domain.ReturnRequest) (*domain.ReturnRequest, error) {
	span := trace.SpanFromContext(ctx)

	if req.ConditionAcceptable() {
		return nil, &domain.ValidationError{Field: "action", Reason: "inspection condition does not permit rejection"}
	}

	expected := req.Status
	if err := req.MarkRejected(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	// 驳回不触碰台账
	if err := s.returnRepo.ConditionalUpdate(ctx, req, expected); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("requestId", req.ID).Str("orderId", req.OrderID).Msg("return rejected")
	s.notifyReturn(ctx, req.BuyerID, req)
	return req, nil
}

func (s *ReturnService) loadRequestWithOrder(ctx context.Context, requestID string) (*domain.ReturnRequest, *domain.Order, error) {
	req, err := s.returnRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

// refundAmount 计算退款金额：指定了行项目时按行小计，否则退整单
func refundAmount(req *domain.ReturnRequest, order *domain.Order) float64 {
	if len(req.Items) == 0 {
		return order.TotalAmount
	}
	var total float64
	for _, item := range req.Items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

func resolveTarget(action string) string {
	if action == ResolveActionApprove {
		return string(domain.ReturnRefunded)
	}
	return string(domain.ReturnRejected)
}

func (s *ReturnService) notifyReturn(ctx context.Context, recipientID string, req *domain.ReturnRequest) {
	s.notifyBestEffort(ctx, &domain.NotificationEvent{
		RecipientID: recipientID,
		EventType:   domain.EventReturnUpdated,
		Payload: map[string]string{
			"orderId":   req.OrderID,
			"requestId": req.ID,
			"status":    string(req.Status),
		},
		OccurredAt: time.Now(),
	})
}

func (s *ReturnService) notifyBestEffort(ctx context.Context, event *domain.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("eventType", event.EventType).Msg("failed to publish notification")
	}
}
