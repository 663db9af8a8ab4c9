package infrastructure

import (
	"time"
)

// OrderModel 是订单的数据库模型
type OrderModel struct {
	ID          string     `gorm:"column:id;primaryKey;size:36"`
	BuyerID     string     `gorm:"column:buyer_id;size:36;not null;index"`
	SellerID    string     `gorm:"column:seller_id;size:36;not null;index"`
	State       string     `gorm:"column:state;size:20;not null;index"`
	Items       string     `gorm:"column:items;type:text"` // 行项目列表，JSON 序列化
	TotalAmount float64    `gorm:"column:total_amount;not null"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// FraudEventModel 是风控事件的数据库模型。作为审计记录只增改不删。
type FraudEventModel struct {
	ID         string     `gorm:"column:id;primaryKey;size:36"`
	OrderID    string     `gorm:"column:order_id;size:36;not null;index"`
	Status     string     `gorm:"column:status;size:20;not null;index"`
	RiskLevel  string     `gorm:"column:risk_level;size:10;not null"`
	RiskScore  float64    `gorm:"column:risk_score"`
	RiskReason string     `gorm:"column:risk_reason;size:255"`
	ReviewerID string     `gorm:"column:reviewer_id;size:36"`
	ReviewedAt *time.Time `gorm:"column:reviewed_at"`
	Notes      string     `gorm:"column:notes;type:text"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (FraudEventModel) TableName() string {
	return "fraud_events"
}

// ReturnRequestModel 是退货申请的数据库模型
type ReturnRequestModel struct {
	ID               string    `gorm:"column:id;primaryKey;size:36"`
	OrderID          string    `gorm:"column:order_id;size:36;not null;index"`
	BuyerID          string    `gorm:"column:buyer_id;size:36;not null"`
	Status           string    `gorm:"column:status;size:20;not null;index"`
	Reason           string    `gorm:"column:reason;type:text;not null"`
	Items            string    `gorm:"column:items;type:text"`           // 可选的部分退货行项目，JSON
	SellerResponse   string    `gorm:"column:seller_response;type:text"` // 卖家响应载荷，JSON
	Inspection       string    `gorm:"column:inspection;type:text"`      // 质检记录，JSON
	ResolutionAmount float64   `gorm:"column:resolution_amount"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReturnRequestModel) TableName() string {
	return "return_requests"
}
