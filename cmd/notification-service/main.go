package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sentinel/internal/pkg/bootstrap"
	"sentinel/internal/pkg/logger"
	"sentinel/internal/pkg/mq"
	"sentinel/internal/pkg/tracing"
	"sentinel/internal/service/trust/domain"
)

const (
	serviceName     = "notification-service"
	consumerGroupID = "notification-group"
)

var tracer trace.Tracer

func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Logger().Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()
	tracer = otel.Tracer(serviceName)

	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic, consumerGroupID)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Logger().Info().Msg("Shutting down notification-service...")
		cancel()
	}()

	logger.Logger().Info().Str("topic", cfg.Infra.Kafka.NotificationTopic).Msg("notification consumer started")

	// 循环消费通知事件，直到收到退出信号
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Logger().Error().Err(err).Msg("could not read message")
			continue
		}
		go processNotification(msg)
	}
}

// processNotification 处理单条通知事件。
// 通知是 write-only 的协作者：这里的任何失败都只记录，不回写业务状态。
func processNotification(msg kafka.Message) {
	ctx := mq.ExtractTraceContext(context.Background(), msg.Headers)
	ctx, span := tracer.Start(ctx, "notification.Process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event domain.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed notification event")
		logger.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal notification event")
		return
	}

	span.SetAttributes(
		attribute.String("notification.recipient", event.RecipientID),
		attribute.String("notification.type", event.EventType),
	)

	// 按事件类型选择渠道。站内推送由 push-gateway 独立消费同一主题完成，
	// 这里负责落地邮件/短信等慢渠道。当前实现记录投递意图。
	switch event.EventType {
	case domain.EventFraudRaised, domain.EventFraudConfirmed:
		logger.Ctx(ctx).Warn().
			Str("recipient", event.RecipientID).
			Str("eventType", event.EventType).
			Interface("payload", event.Payload).
			Msg("dispatching fraud alert")
	default:
		logger.Ctx(ctx).Info().
			Str("recipient", event.RecipientID).
			Str("eventType", event.EventType).
			Msg("dispatching notification")
	}
}
