package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/service/trust/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testThresholds() Thresholds {
	return Thresholds{
		ProcessingAfter:      24 * time.Hour,
		AssumeDeliveredAfter: 7 * 24 * time.Hour,
		AutoCompleteAfter:    14 * 24 * time.Hour,
		Parallelism:          4,
	}
}

func newAutomationFixture(orders ...*domain.Order) (*AutomationService, *fakeOrderRepo, *fakeFraudRepo, *fakeReturnRepo, *fakeNotifier) {
	orderRepo := newFakeOrderRepo(orders...)
	fraudRepo := newFakeFraudRepo()
	returnRepo := newFakeReturnRepo()
	notifier := &fakeNotifier{}
	fraud := NewFraudService(orderRepo, fraudRepo, notifier, noopTracer())
	svc := NewAutomationService(orderRepo, returnRepo, fraud, &fakeRisk{signal: domain.RiskSignal{Level: domain.RiskLow}}, notifier, noopTracer(), testThresholds())
	svc.now = func() time.Time { return testNow }
	return svc, orderRepo, fraudRepo, returnRepo, notifier
}

func paidOrder(id string, paidAgo time.Duration) *domain.Order {
	return &domain.Order{
		ID:          id,
		BuyerID:     "buyer-1",
		SellerID:    "seller-1",
		State:       domain.StatePaid,
		TotalAmount: 199.0,
		PaidAt:      testNow.Add(-paidAgo),
	}
}

func shippedOrder(id string, shippedAgo time.Duration) *domain.Order {
	o := paidOrder(id, shippedAgo+48*time.Hour)
	o.State = domain.StateShipped
	o.ShippedAt = testNow.Add(-shippedAgo)
	return o
}

func deliveredOrder(id string, deliveredAgo time.Duration) *domain.Order {
	o := shippedOrder(id, deliveredAgo+72*time.Hour)
	o.State = domain.StateDelivered
	o.DeliveredAt = testNow.Add(-deliveredAgo)
	return o
}

func TestRunPassAdvancesOverduePaidOrder(t *testing.T) {
	svc, orderRepo, _, _, notifier := newAutomationFixture(paidOrder("o-1", 25*time.Hour))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, domain.StateProcessing, orderRepo.stored("o-1").State)
	assert.Contains(t, notifier.eventTypes(), domain.EventOrderStateChanged)
}

func TestRunPassSkipsPaidOrderWithinThreshold(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture(paidOrder("o-1", 3*time.Hour))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Advanced)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StatePaid, orderRepo.stored("o-1").State)
}

func TestRunPassSkipsPaidOrderAlreadyShipped(t *testing.T) {
	// 支付超时但已有发货记录：不能再推进到 PROCESSING
	o := paidOrder("o-1", 48*time.Hour)
	o.ShippedAt = testNow.Add(-time.Hour)
	svc, orderRepo, _, _, _ := newAutomationFixture(o)

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StatePaid, orderRepo.stored("o-1").State)
}

func TestRunPassAssumesDeliveryAfterCarrierSilence(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture(shippedOrder("o-1", 8*24*time.Hour))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	stored := orderRepo.stored("o-1")
	assert.Equal(t, domain.StateDelivered, stored.State)
	// 推定送达要落下送达时间锚点，否则后续关单规则永远不会命中
	assert.Equal(t, testNow, stored.DeliveredAt)
}

func TestRunPassAutoCompletesQuietDeliveredOrder(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture(deliveredOrder("o-1", 15*24*time.Hour))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, domain.StateCompleted, orderRepo.stored("o-1").State)
}

func TestRunPassDoesNotCompleteOrderWithOpenReturn(t *testing.T) {
	svc, orderRepo, _, returnRepo, _ := newAutomationFixture(deliveredOrder("o-1", 15*24*time.Hour))
	req := domain.NewReturnRequest("o-1", "buyer-1", "damaged on arrival", nil)
	require.NoError(t, returnRepo.Save(context.Background(), req))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Advanced)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StateDelivered, orderRepo.stored("o-1").State)
}

func TestRunPassIsIdempotentWithoutNewEvents(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture(
		paidOrder("o-1", 25*time.Hour),
		shippedOrder("o-2", 8*24*time.Hour),
	)

	first, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Advanced)

	// 两趟之间没有任何状态变化：第二趟必须零转移。
	// o-1 已进入 PROCESSING（不再是候选态），o-2 的送达锚点刚刚落下。
	second, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Advanced)
	assert.Empty(t, second.Failed)

	assert.Equal(t, domain.StateProcessing, orderRepo.stored("o-1").State)
	assert.Equal(t, domain.StateDelivered, orderRepo.stored("o-2").State)
}

func TestRunPassSuppressedByOpenFraudEvent(t *testing.T) {
	svc, orderRepo, fraudRepo, _, _ := newAutomationFixture(paidOrder("o-1", 48*time.Hour))
	event := domain.NewFraudEvent("o-1", domain.RiskSignal{Level: domain.RiskHigh, Reason: "velocity"})
	require.NoError(t, fraudRepo.Save(context.Background(), event))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Advanced)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StatePaid, orderRepo.stored("o-1").State)
}

func TestRunPassSuppressedByConfirmedFraudEvent(t *testing.T) {
	svc, orderRepo, fraudRepo, _, _ := newAutomationFixture(paidOrder("o-1", 48*time.Hour))
	event := domain.NewFraudEvent("o-1", domain.RiskSignal{Level: domain.RiskHigh})
	require.NoError(t, event.Confirm("admin-1", "card testing pattern"))
	require.NoError(t, fraudRepo.Save(context.Background(), event))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StatePaid, orderRepo.stored("o-1").State)
}

func TestRunPassResumesAfterFraudDismissed(t *testing.T) {
	svc, orderRepo, fraudRepo, _, _ := newAutomationFixture(paidOrder("o-1", 48*time.Hour))
	event := domain.NewFraudEvent("o-1", domain.RiskSignal{Level: domain.RiskHigh})
	require.NoError(t, fraudRepo.Save(context.Background(), event))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	require.NoError(t, event.Dismiss("admin-1", "false positive"))
	require.NoError(t, fraudRepo.Save(context.Background(), event))

	report, err = svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, domain.StateProcessing, orderRepo.stored("o-1").State)
}

func TestRunPassHighRiskOrderRaisesFraudInsteadOfAdvancing(t *testing.T) {
	orderRepo := newFakeOrderRepo(paidOrder("o-1", 48*time.Hour))
	fraudRepo := newFakeFraudRepo()
	notifier := &fakeNotifier{}
	fraud := NewFraudService(orderRepo, fraudRepo, notifier, noopTracer())
	svc := NewAutomationService(orderRepo, newFakeReturnRepo(), fraud,
		&fakeRisk{signal: domain.RiskSignal{Level: domain.RiskHigh, Reason: "amount spike"}},
		notifier, noopTracer(), testThresholds())
	svc.now = func() time.Time { return testNow }

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Advanced)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.StatePaid, orderRepo.stored("o-1").State)
	assert.Equal(t, 1, fraudRepo.countByOrder("o-1"))
	assert.Contains(t, notifier.eventTypes(), domain.EventFraudRaised)

	// 下一趟被刚登记的事件压制，并且不会重复登记
	report, err = svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, fraudRepo.countByOrder("o-1"))
}

func TestRunPassCollectsPerOrderFailuresWithoutAborting(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture(
		paidOrder("o-bad", 48*time.Hour),
		paidOrder("o-good", 48*time.Hour),
	)
	// o-bad 在写入前被带外流程改走，触发条件更新冲突
	orderRepo.beforeCondUpdate = func(o *domain.Order) {
		if o != nil && o.ID == "o-bad" && o.State == domain.StatePaid {
			o.State = domain.StateCancelled
		}
	}

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "o-bad", report.Failed[0].OrderID)
	assert.Equal(t, domain.StateProcessing, orderRepo.stored("o-good").State)
}

func TestRunPassReportsFraudLookupFailure(t *testing.T) {
	svc, _, fraudRepo, _, _ := newAutomationFixture(paidOrder("o-1", 48*time.Hour))
	fraudRepo.findErr = assert.AnError

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "o-1", report.Failed[0].OrderID)
	assert.Contains(t, report.Failed[0].Reason, "fraud status lookup failed")
}

func TestRunPassFailsWhenEnumerationFails(t *testing.T) {
	svc, orderRepo, _, _, _ := newAutomationFixture()
	orderRepo.findErr = assert.AnError

	_, err := svc.RunPass(context.Background())
	assert.Error(t, err)
}

func TestRunPassAdvancesAtMostOneTransitionPerOrder(t *testing.T) {
	// 发货锚点远超两个阈值之和：一趟 pass 仍然只推进一步
	svc, orderRepo, _, _, _ := newAutomationFixture(shippedOrder("o-1", 60*24*time.Hour))

	report, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, domain.StateDelivered, orderRepo.stored("o-1").State)
}
