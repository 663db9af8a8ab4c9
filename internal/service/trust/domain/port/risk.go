package port

import (
	"sentinel/internal/service/trust/domain"
)

// RiskEvaluator 是风控评估器的出站端口。
// 实现必须是订单属性的纯函数，不允许有副作用。
type RiskEvaluator interface {
	Evaluate(order *domain.Order) (domain.RiskSignal, error)
}
