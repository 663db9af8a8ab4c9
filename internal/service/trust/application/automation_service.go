package application

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sentinel/internal/pkg/logger"
	"sentinel/internal/service/trust/domain"
	"sentinel/internal/service/trust/domain/port"
)

// Thresholds 是规则的时间阈值。数值来自配置，引擎本身不持有常量。
type Thresholds struct {
	ProcessingAfter      time.Duration // 支付后多久无发货记录则推进到 PROCESSING
	AssumeDeliveredAfter time.Duration // 发货后多久无签收回执则推定 DELIVERED
	AutoCompleteAfter    time.Duration // 签收后多久无退货申请则关单 COMPLETED
	Parallelism          int           // 单趟内的并行度上限
}

// rule 是一条时间驱动的推进规则。规则按优先级排列，首个命中者生效，
// 一笔订单一趟 pass 最多推进一个状态，保证效果可审计且重试安全。
type rule struct {
	name  string
	from  domain.State
	guard func(o *domain.Order, now time.Time) bool
	apply func(o *domain.Order, now time.Time) error
}

// AutomationService 是订单生命周期自动化引擎。
// 每次 RunPass 由外部定时触发器调用，触发层负责保证不会并发两趟。
type AutomationService struct {
	orderRepo  domain.OrderRepository
	returnRepo domain.ReturnRequestRepository
	fraud      *FraudService
	risk       port.RiskEvaluator
	notifier   port.NotificationProducer
	tracer     trace.Tracer
	thresholds Thresholds
	rules      []rule

	// 可注入的时钟，测试用
	now func() time.Time
}

func NewAutomationService(
	orderRepo domain.OrderRepository,
	returnRepo domain.ReturnRequestRepository,
	fraud *FraudService,
	risk port.RiskEvaluator,
	notifier port.NotificationProducer,
	tracer trace.Tracer,
	thresholds Thresholds,
) *AutomationService {
	s := &AutomationService{
		orderRepo:  orderRepo,
		returnRepo: returnRepo,
		fraud:      fraud,
		risk:       risk,
		notifier:   notifier,
		tracer:     tracer,
		thresholds: thresholds,
		now:        time.Now,
	}
	s.rules = s.buildRules()
	return s
}

// buildRules 按优先级组装规则表
func (s *AutomationService) buildRules() []rule {
	return []rule{
		{
			name: "paid-to-processing",
			from: domain.StatePaid,
			guard: func(o *domain.Order, now time.Time) bool {
				return !o.PaidAt.IsZero() &&
					now.Sub(o.PaidAt) > s.thresholds.ProcessingAfter &&
					o.ShippedAt.IsZero()
			},
			apply: func(o *domain.Order, now time.Time) error {
				return o.MarkProcessing()
			},
		},
		{
			name: "shipped-to-delivered",
			from: domain.StateShipped,
			guard: func(o *domain.Order, now time.Time) bool {
				return !o.ShippedAt.IsZero() &&
					now.Sub(o.ShippedAt) > s.thresholds.AssumeDeliveredAfter &&
					o.DeliveredAt.IsZero()
			},
			apply: func(o *domain.Order, now time.Time) error {
				// 物流长时间无回执，推定已送达
				return o.MarkDelivered(now)
			},
		},
		{
			name: "delivered-to-completed",
			from: domain.StateDelivered,
			guard: func(o *domain.Order, now time.Time) bool {
				return !o.DeliveredAt.IsZero() &&
					now.Sub(o.DeliveredAt) > s.thresholds.AutoCompleteAfter
			},
			apply: func(o *domain.Order, now time.Time) error {
				return o.MarkCompleted()
			},
		},
	}
}

// outcome 是单个订单在一趟 pass 中的处理结果
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeAdvanced
	outcomeFailed
)

// RunPass 对所有候选订单执行一趟规则评估。
// 单个订单的失败只会进入报告的 Failed 列表，绝不中断其余订单；
// 两趟 pass 之间没有状态变化时，第二趟不会产生任何转移（幂等）。
func (s *AutomationService) RunPass(ctx context.Context) (*PassReport, error) {
	ctx, span := s.tracer.Start(ctx, "automation.RunPass")
	defer span.End()

	now := s.now()
	orders, err := s.orderRepo.ListEligibleForAutomation(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enumerate eligible orders")
		return nil, err
	}
	span.SetAttributes(attribute.Int("pass.candidates", len(orders)))

	report := &PassReport{Failed: []FailedOrder{}}
	var mu sync.Mutex

	parallelism := s.thresholds.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	// 订单之间相互独立，可以并行；单个订单内的写通过
	// ConditionalUpdate 串行化。worker 永远返回 nil，
	// 失败进报告而不是中断 errgroup。
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, order := range orders {
		// 取消检查点的粒度是一个订单：已提交的转移保持有效，不回滚
		if gctx.Err() != nil {
			break
		}
		o := order
		g.Go(func() error {
			result, reason := s.processOrder(gctx, o, now)
			mu.Lock()
			switch result {
			case outcomeAdvanced:
				report.Advanced++
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Failed = append(report.Failed, FailedOrder{OrderID: o.ID, Reason: reason})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("pass.advanced", report.Advanced),
		attribute.Int("pass.skipped", report.Skipped),
		attribute.Int("pass.failed", len(report.Failed)),
	)
	logger.Ctx(ctx).Info().
		Int("advanced", report.Advanced).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Failed)).
		Msg("automation pass finished")
	return report, nil
}

// processOrder 对单个订单评估规则表并应用至多一次转移
func (s *AutomationService) processOrder(ctx context.Context, order *domain.Order, now time.Time) (outcome, string) {
	ctx, span := s.tracer.Start(ctx, "automation.ProcessOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.state", string(order.State)),
	)

	// 风控闸门：存在 DETECTED 或 CONFIRMED 事件的订单一律不自动推进
	blocking, err := s.fraud.BlockingEvent(ctx, order.ID)
	if err != nil {
		span.RecordError(err)
		return outcomeFailed, "fraud status lookup failed: " + err.Error()
	}
	if blocking != nil {
		span.AddEvent("automation suppressed by fraud event", trace.WithAttributes(
			attribute.String("fraud.event.id", blocking.ID),
			attribute.String("fraud.status", string(blocking.Status)),
		))
		return outcomeSkipped, ""
	}

	matched, err := s.matchRule(ctx, order, now)
	if err != nil {
		span.RecordError(err)
		return outcomeFailed, "rule evaluation failed: " + err.Error()
	}
	if matched == nil {
		return outcomeSkipped, ""
	}
	span.SetAttributes(attribute.String("rule.name", matched.name))

	// 推进前做一次风险评估：高风险订单不推进，转为登记风控事件
	if s.risk != nil {
		signal, err := s.risk.Evaluate(order)
		if err != nil {
			span.RecordError(err)
			return outcomeFailed, "risk evaluation failed: " + err.Error()
		}
		if signal.Level == domain.RiskHigh {
			if _, err := s.fraud.Raise(ctx, order.ID, signal); err != nil && !domain.IsConflict(err) {
				span.RecordError(err)
				return outcomeFailed, "failed to raise fraud event: " + err.Error()
			}
			return outcomeSkipped, ""
		}
	}

	expected := order.State
	if err := matched.apply(order, now); err != nil {
		span.RecordError(err)
		return outcomeFailed, err.Error()
	}
	if err := s.orderRepo.ConditionalUpdate(ctx, order, expected); err != nil {
		// 冲突说明有带外流程（退货、风控）抢先改了状态，
		// 记录后留给下一趟 pass 重新评估
		span.RecordError(err)
		return outcomeFailed, err.Error()
	}

	logger.Ctx(ctx).Info().
		Str("orderId", order.ID).
		Str("rule", matched.name).
		Str("from", string(expected)).
		Str("to", string(order.State)).
		Msg("order advanced by automation")

	s.notifyBestEffort(ctx, order, expected)
	return outcomeAdvanced, ""
}

// matchRule 返回首个命中的规则，没有命中时返回 (nil, nil)
func (s *AutomationService) matchRule(ctx context.Context, order *domain.Order, now time.Time) (*rule, error) {
	for i := range s.rules {
		r := &s.rules[i]
		if order.State != r.from || !r.guard(order, now) {
			continue
		}
		// 关单规则还要求没有未结退货申请
		if r.name == "delivered-to-completed" {
			open, err := s.returnRepo.FindOpenByOrderID(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			if open != nil {
				return nil, nil
			}
		}
		return r, nil
	}
	return nil, nil
}

func (s *AutomationService) notifyBestEffort(ctx context.Context, order *domain.Order, from domain.State) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, &domain.NotificationEvent{
		RecipientID: order.BuyerID,
		EventType:   domain.EventOrderStateChanged,
		Payload: map[string]string{
			"orderId": order.ID,
			"from":    string(from),
			"to":      string(order.State),
		},
		OccurredAt: s.now(),
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("orderId", order.ID).Msg("failed to publish state change notification")
	}
}
