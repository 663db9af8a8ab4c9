package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"sentinel/internal/pkg/bootstrap"
	"sentinel/internal/pkg/logger"
	"sentinel/internal/pkg/tracing"
	"sentinel/internal/zookeeper"
)

const (
	serviceName = "automation-scheduler"
	leaseName   = "order-pass"
)

// Scheduler 是时间驱动推进的触发器。
// 它只负责"按周期触发一趟 pass"，真正的规则评估在 trust-service 内完成；
// 触发前先抢 zookeeper 租约，保证整个集群同一时刻最多一趟 pass 在跑。
type Scheduler struct {
	lease      *zookeeper.PassLease
	client     *http.Client
	triggerURL string
	cronSecret string
	tracer     trace.Tracer
}

func NewScheduler(lease *zookeeper.PassLease, triggerURL, cronSecret string) *Scheduler {
	return &Scheduler{
		lease:      lease,
		client:     &http.Client{Timeout: 5 * time.Minute},
		triggerURL: triggerURL,
		cronSecret: cronSecret,
		tracer:     otel.Tracer(serviceName),
	}
}

// StartTicking 启动定时触发循环，直到 ctx 被取消
func (s *Scheduler) StartTicking(ctx context.Context, interval time.Duration) {
	logger.Logger().Info().Dur("interval", interval).Msg("automation scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			logger.Logger().Info().Msg("automation scheduler stopping")
			return
		}
	}
}

// tick 执行一次触发尝试。抢不到租约时直接放弃本次 tick：
// 排队等一个批处理锁只会让错过的周期挤在一起重复跑。
func (s *Scheduler) tick(parentCtx context.Context) {
	ctx, span := s.tracer.Start(parentCtx, "scheduler.Tick")
	defer span.End()

	acquired, err := s.lease.TryAcquire()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lease acquisition failed")
		logger.Ctx(ctx).Error().Err(err).Msg("failed to acquire pass lease")
		return
	}
	if !acquired {
		span.SetAttributes(attribute.Bool("lease.acquired", false))
		logger.Ctx(ctx).Info().Msg("pass lease held elsewhere, skipping tick")
		return
	}
	defer func() {
		if err := s.lease.Release(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to release pass lease")
		}
	}()
	span.SetAttributes(attribute.Bool("lease.acquired", true))

	if err := s.triggerPass(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass trigger failed")
		logger.Ctx(ctx).Error().Err(err).Msg("automation pass failed")
	}
}

// triggerPass 调用 trust-service 的触发接口并记录返回的 pass 报告
func (s *Scheduler) triggerPass(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.triggerURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("X-Cron-Secret", s.cronSecret)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var report struct {
		Advanced int `json:"advanced"`
		Skipped  int `json:"skipped"`
		Failed   []struct {
			OrderID string `json:"orderId"`
			Reason  string `json:"reason"`
		} `json:"failed"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("failed to decode pass report: %w", err)
	}

	logger.Ctx(ctx).Info().
		Int("advanced", report.Advanced).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Failed)).
		Msg("automation pass finished")
	return nil
}

func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to zookeeper")
	}
	defer zkConn.Close()

	hostname, _ := os.Hostname()
	lease := zookeeper.NewPassLease(zkConn, leaseName, hostname)

	scheduler := NewScheduler(lease, cfg.Infra.TrustService.BaseURL+"/automation/run", cfg.App.CronSecret)

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.StartTicking(ctx, cfg.App.Automation.PassInterval())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger().Info().Msg("Shutting down automation-scheduler...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down tracer provider")
	}
}
