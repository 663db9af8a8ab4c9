package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"sentinel/internal/service/trust/domain"
)

// RiskRule 是一条用 CEL 表达式描述的风险规则。
// 表达式的求值对象是订单属性，规则按顺序评估，首个命中者给出信号。
type RiskRule struct {
	Expression string
	Level      domain.RiskLevel
	Score      float64
	Reason     string
}

// DefaultRiskRules 是兜底规则集。生产环境应从配置下发。
func DefaultRiskRules() []RiskRule {
	return []RiskRule{
		{
			Expression: "totalAmount > 10000.0",
			Level:      domain.RiskHigh,
			Score:      0.9,
			Reason:     "order amount exceeds high-value threshold",
		},
		{
			Expression: "itemCount > 50",
			Level:      domain.RiskMedium,
			Score:      0.5,
			Reason:     "unusually large item count",
		},
	}
}

type compiledRule struct {
	program cel.Program
	rule    RiskRule
}

// CELRiskEvaluator 是 port.RiskEvaluator 的 CEL 实现。
// 这是一个典型的适配器：把第三方表达式引擎适配到我们自己的领域接口，
// 求值是订单属性的纯函数，没有任何副作用。
type CELRiskEvaluator struct {
	rules []compiledRule
}

// NewCELRiskEvaluator 编译规则集。表达式编译失败立刻报错，
// 而不是等到某一趟 pass 求值时才发现。
func NewCELRiskEvaluator(rules []RiskRule) (*CELRiskEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("totalAmount", cel.DoubleType),
		cel.Variable("itemCount", cel.IntType),
		cel.Variable("state", cel.StringType),
		cel.Variable("buyerId", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile risk rule %q: %w", r.Expression, issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to build program for rule %q: %w", r.Expression, err)
		}
		compiled = append(compiled, compiledRule{program: program, rule: r})
	}
	return &CELRiskEvaluator{rules: compiled}, nil
}

// Evaluate 实现 port.RiskEvaluator。没有规则命中时返回 LOW。
func (e *CELRiskEvaluator) Evaluate(order *domain.Order) (domain.RiskSignal, error) {
	itemCount := 0
	for _, item := range order.Items {
		itemCount += item.Quantity
	}
	activation := map[string]interface{}{
		"totalAmount": order.TotalAmount,
		"itemCount":   itemCount,
		"state":       string(order.State),
		"buyerId":     order.BuyerID,
	}

	for _, c := range e.rules {
		out, _, err := c.program.Eval(activation)
		if err != nil {
			return domain.RiskSignal{}, fmt.Errorf("risk rule evaluation failed: %w", err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return domain.RiskSignal{}, fmt.Errorf("risk rule %q did not evaluate to a boolean", c.rule.Expression)
		}
		if matched {
			return domain.RiskSignal{
				Level:  c.rule.Level,
				Score:  c.rule.Score,
				Reason: c.rule.Reason,
			}, nil
		}
	}
	return domain.RiskSignal{Level: domain.RiskLow, Score: 0, Reason: "no risk rule matched"}, nil
}
