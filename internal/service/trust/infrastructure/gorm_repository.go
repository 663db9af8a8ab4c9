package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sentinel/internal/service/trust/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "order", ID: id}
		}
		return nil, err
	}
	return toDomainOrder(&model)
}

// ListEligibleForAutomation 枚举所有可能命中时间规则的订单。
// 只按状态粗筛，时间 guard 由引擎逐单判断（阈值是配置，不进 SQL）。
func (r *GormOrderRepository) ListEligibleForAutomation(ctx context.Context, now time.Time) ([]*domain.Order, error) {
	var models []OrderModel
	states := []string{
		string(domain.StatePaid),
		string(domain.StateShipped),
		string(domain.StateDelivered),
	}
	err := r.db.WithContext(ctx).
		Where("state IN ?", states).
		Order("updated_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		order, err := toDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ConditionalUpdate 以乐观并发方式落盘一次状态转移：
// WHERE 带上读取时的状态，没更新到行就说明状态已被别人改掉。
func (r *GormOrderRepository) ConditionalUpdate(ctx context.Context, order *domain.Order, expectedState domain.State) error {
	updates := map[string]interface{}{
		"state":        string(order.State),
		"delivered_at": timePtr(order.DeliveredAt),
		"updated_at":   order.UpdatedAt,
	}
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND state = ?", order.ID, string(expectedState)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &domain.ConflictError{Entity: "order", ID: order.ID}
	}
	return nil
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model, err := toOrderModel(order)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// GormFraudEventRepository 是 domain.FraudEventRepository 的 GORM 实现
type GormFraudEventRepository struct {
	db *gorm.DB
}

func NewGormFraudEventRepository(db *gorm.DB) *GormFraudEventRepository {
	return &GormFraudEventRepository{db: db}
}

func (r *GormFraudEventRepository) Save(ctx context.Context, event *domain.FraudEvent) error {
	return r.db.WithContext(ctx).Save(toFraudEventModel(event)).Error
}

func (r *GormFraudEventRepository) FindByID(ctx context.Context, id string) (*domain.FraudEvent, error) {
	var model FraudEventModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "fraud_event", ID: id}
		}
		return nil, err
	}
	return toDomainFraudEvent(&model), nil
}

func (r *GormFraudEventRepository) FindOpenByOrderID(ctx context.Context, orderID string) (*domain.FraudEvent, error) {
	return r.findByOrderAndStatus(ctx, orderID, []string{string(domain.FraudDetected)})
}

func (r *GormFraudEventRepository) FindBlockingByOrderID(ctx context.Context, orderID string) (*domain.FraudEvent, error) {
	return r.findByOrderAndStatus(ctx, orderID, []string{
		string(domain.FraudDetected),
		string(domain.FraudConfirmed),
	})
}

func (r *GormFraudEventRepository) findByOrderAndStatus(ctx context.Context, orderID string, statuses []string) (*domain.FraudEvent, error) {
	var model FraudEventModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainFraudEvent(&model), nil
}

// GormReturnRequestRepository 是 domain.ReturnRequestRepository 的 GORM 实现
type GormReturnRequestRepository struct {
	db *gorm.DB
}

func NewGormReturnRequestRepository(db *gorm.DB) *GormReturnRequestRepository {
	return &GormReturnRequestRepository{db: db}
}

func (r *GormReturnRequestRepository) Save(ctx context.Context, req *domain.ReturnRequest) error {
	model, err := toReturnRequestModel(req)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormReturnRequestRepository) FindByID(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	var model ReturnRequestModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "return_request", ID: id}
		}
		return nil, err
	}
	return toDomainReturnRequest(&model)
}

func (r *GormReturnRequestRepository) FindOpenByOrderID(ctx context.Context, orderID string) (*domain.ReturnRequest, error) {
	var model ReturnRequestModel
	terminal := []string{string(domain.ReturnRefunded), string(domain.ReturnRejected)}
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID, terminal).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainReturnRequest(&model)
}

func (r *GormReturnRequestRepository) ConditionalUpdate(ctx context.Context, req *domain.ReturnRequest, expectedStatus domain.ReturnStatus) error {
	model, err := toReturnRequestModel(req)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status":            model.Status,
		"seller_response":   model.SellerResponse,
		"inspection":        model.Inspection,
		"resolution_amount": model.ResolutionAmount,
		"updated_at":        model.UpdatedAt,
	}
	result := r.db.WithContext(ctx).
		Model(&ReturnRequestModel{}).
		Where("id = ? AND status = ?", req.ID, string(expectedStatus)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &domain.ConflictError{Entity: "return_request", ID: req.ID}
	}
	return nil
}
