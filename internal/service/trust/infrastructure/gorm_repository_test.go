package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sentinel/internal/service/trust/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func orderColumns() []string {
	return []string{"id", "buyer_id", "seller_id", "state", "items", "total_amount",
		"paid_at", "shipped_at", "delivered_at", "created_at", "updated_at"}
}

func TestOrderFindByIDMapsRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormOrderRepository(db)

	paidAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WithArgs("o-1", 1).
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow("o-1", "buyer-1", "seller-1", "PAID", `[{"ProductID":"p-1","Quantity":2,"UnitPrice":10.5}]`,
				21.0, paidAt, nil, nil, paidAt, paidAt))

	order, err := repo.FindByID(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatePaid, order.State)
	assert.Equal(t, paidAt, order.PaidAt)
	// NULL 的时间锚点映射为零值
	assert.True(t, order.ShippedAt.IsZero())
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormOrderRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderConditionalUpdateSucceedsWhenStateUnchanged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormOrderRepository(db)

	order := &domain.Order{ID: "o-1", State: domain.StateProcessing, UpdatedAt: time.Now()}
	mock.ExpectExec("UPDATE `orders` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ConditionalUpdate(context.Background(), order, domain.StatePaid)
	assert.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderConditionalUpdateConflictsWhenNoRowMatched(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormOrderRepository(db)

	order := &domain.Order{ID: "o-1", State: domain.StateProcessing, UpdatedAt: time.Now()}
	// WHERE 条件里的期望状态已被并发写走，零行命中
	mock.ExpectExec("UPDATE `orders` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConditionalUpdate(context.Background(), order, domain.StatePaid)
	assert.True(t, domain.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligibleForAutomationFiltersByState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormOrderRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE state IN \\(\\?,\\?,\\?\\) ORDER BY updated_at ASC").
		WithArgs("PAID", "SHIPPED", "DELIVERED").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow("o-1", "b-1", "s-1", "PAID", "", 10.0, now, nil, nil, now, now).
			AddRow("o-2", "b-2", "s-2", "SHIPPED", "", 20.0, now, now, nil, now, now))

	orders, err := repo.ListEligibleForAutomation(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, domain.StatePaid, orders[0].State)
	assert.Equal(t, domain.StateShipped, orders[1].State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFraudFindOpenByOrderIDReturnsNilWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormFraudEventRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `fraud_events` WHERE order_id = \\? AND status IN \\(\\?\\)").
		WithArgs("o-1", "DETECTED", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	event, err := repo.FindOpenByOrderID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Nil(t, event)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFraudFindBlockingMatchesDetectedAndConfirmed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormFraudEventRepository(db)

	created := time.Now().UTC()
	mock.ExpectQuery("SELECT \\* FROM `fraud_events` WHERE order_id = \\? AND status IN \\(\\?,\\?\\)").
		WithArgs("o-1", "DETECTED", "CONFIRMED", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "status", "risk_level", "risk_score", "risk_reason", "reviewer_id", "reviewed_at", "notes", "created_at"}).
			AddRow("f-1", "o-1", "CONFIRMED", "HIGH", 0.9, "velocity", "admin-1", created, "confirmed", created))

	event, err := repo.FindBlockingByOrderID(context.Background(), "o-1")
	require.NoError(t, err)

	require.NotNil(t, event)
	assert.Equal(t, domain.FraudConfirmed, event.Status)
	assert.True(t, event.BlocksAutomation())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnFindOpenExcludesTerminalStatuses(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormReturnRequestRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `return_requests` WHERE order_id = \\? AND status NOT IN \\(\\?,\\?\\)").
		WithArgs("o-1", "REFUNDED", "REJECTED", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req, err := repo.FindOpenByOrderID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Nil(t, req)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnConditionalUpdateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormReturnRequestRepository(db)

	req := domain.NewReturnRequest("o-1", "buyer-1", "damaged", nil)
	req.Status = domain.ReturnSellerResponded

	mock.ExpectExec("UPDATE `return_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConditionalUpdate(context.Background(), req, domain.ReturnRequested)
	assert.True(t, domain.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
