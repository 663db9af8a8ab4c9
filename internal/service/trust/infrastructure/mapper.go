package infrastructure

import (
	"encoding/json"
	"time"

	"sentinel/internal/service/trust/domain"
)

// 领域模型和数据库模型之间的转换。
// 时间锚点在领域里用零值表示"未发生"，在库里用 NULL。

func toOrderModel(o *domain.Order) (*OrderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	return &OrderModel{
		ID:          o.ID,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		State:       string(o.State),
		Items:       string(items),
		TotalAmount: o.TotalAmount,
		PaidAt:      timePtr(o.PaidAt),
		ShippedAt:   timePtr(o.ShippedAt),
		DeliveredAt: timePtr(o.DeliveredAt),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}, nil
}

func toDomainOrder(m *OrderModel) (*domain.Order, error) {
	var items []domain.OrderItem
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
			return nil, err
		}
	}
	return &domain.Order{
		ID:          m.ID,
		BuyerID:     m.BuyerID,
		SellerID:    m.SellerID,
		State:       domain.State(m.State),
		Items:       items,
		TotalAmount: m.TotalAmount,
		PaidAt:      timeVal(m.PaidAt),
		ShippedAt:   timeVal(m.ShippedAt),
		DeliveredAt: timeVal(m.DeliveredAt),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func toFraudEventModel(e *domain.FraudEvent) *FraudEventModel {
	return &FraudEventModel{
		ID:         e.ID,
		OrderID:    e.OrderID,
		Status:     string(e.Status),
		RiskLevel:  string(e.Signal.Level),
		RiskScore:  e.Signal.Score,
		RiskReason: e.Signal.Reason,
		ReviewerID: e.ReviewerID,
		ReviewedAt: timePtr(e.ReviewedAt),
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}

func toDomainFraudEvent(m *FraudEventModel) *domain.FraudEvent {
	return &domain.FraudEvent{
		ID:      m.ID,
		OrderID: m.OrderID,
		Status:  domain.FraudStatus(m.Status),
		Signal: domain.RiskSignal{
			Level:  domain.RiskLevel(m.RiskLevel),
			Score:  m.RiskScore,
			Reason: m.RiskReason,
		},
		ReviewerID: m.ReviewerID,
		ReviewedAt: timeVal(m.ReviewedAt),
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt,
	}
}

func toReturnRequestModel(r *domain.ReturnRequest) (*ReturnRequestModel, error) {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return nil, err
	}
	sellerResp, err := marshalOrEmpty(r.SellerResponse)
	if err != nil {
		return nil, err
	}
	inspection, err := marshalOrEmpty(r.Inspection)
	if err != nil {
		return nil, err
	}
	return &ReturnRequestModel{
		ID:               r.ID,
		OrderID:          r.OrderID,
		BuyerID:          r.BuyerID,
		Status:           string(r.Status),
		Reason:           r.Reason,
		Items:            string(items),
		SellerResponse:   sellerResp,
		Inspection:       inspection,
		ResolutionAmount: r.ResolutionAmount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func toDomainReturnRequest(m *ReturnRequestModel) (*domain.ReturnRequest, error) {
	var items []domain.OrderItem
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
			return nil, err
		}
	}
	var sellerResp *domain.SellerResponse
	if m.SellerResponse != "" {
		sellerResp = &domain.SellerResponse{}
		if err := json.Unmarshal([]byte(m.SellerResponse), sellerResp); err != nil {
			return nil, err
		}
	}
	var inspection *domain.Inspection
	if m.Inspection != "" {
		inspection = &domain.Inspection{}
		if err := json.Unmarshal([]byte(m.Inspection), inspection); err != nil {
			return nil, err
		}
	}
	return &domain.ReturnRequest{
		ID:               m.ID,
		OrderID:          m.OrderID,
		BuyerID:          m.BuyerID,
		Status:           domain.ReturnStatus(m.Status),
		Reason:           m.Reason,
		Items:            items,
		SellerResponse:   sellerResp,
		Inspection:       inspection,
		ResolutionAmount: m.ResolutionAmount,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func marshalOrEmpty(v interface{}) (string, error) {
	switch val := v.(type) {
	case *domain.SellerResponse:
		if val == nil {
			return "", nil
		}
	case *domain.Inspection:
		if val == nil {
			return "", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
