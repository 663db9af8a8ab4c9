package interfaces

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pass 级别的运行指标。失败列表非空是可上报但不致命的状态，
// 值班同学靠这几条曲线判断自动化是否健康。
var (
	passOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_pass_orders_total",
		Help: "Orders handled by automation passes, partitioned by outcome.",
	}, []string{"outcome"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "automation_pass_duration_seconds",
		Help:    "Wall time of a full automation pass.",
		Buckets: prometheus.DefBuckets,
	})

	fraudEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_events_total",
		Help: "Fraud events raised and reviewed, partitioned by action.",
	}, []string{"action"})
)
