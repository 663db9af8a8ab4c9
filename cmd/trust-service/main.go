package main

import (
	"go.opentelemetry.io/otel"

	"sentinel/internal/pkg/bootstrap"
	"sentinel/internal/pkg/httpclient"
	"sentinel/internal/pkg/logger"
	"sentinel/internal/pkg/mq"
	"sentinel/internal/service/trust/application"
	"sentinel/internal/service/trust/infrastructure"
	"sentinel/internal/service/trust/infrastructure/adapter"
	"sentinel/internal/service/trust/infrastructure/rule"
	"sentinel/internal/service/trust/interfaces"
)

const serviceName = "trust-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	db, err := infrastructure.NewDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize mysql")
	}
	orderRepo := infrastructure.NewGormOrderRepository(db)
	fraudRepo := infrastructure.NewGormFraudEventRepository(db)
	returnRepo := infrastructure.NewGormReturnRequestRepository(db)

	riskEvaluator, err := rule.NewCELRiskEvaluator(rule.DefaultRiskRules())
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to compile risk rules")
	}

	notificationWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic)
	notifier := adapter.NewNotificationKafkaAdapter(notificationWriter)
	defer notifier.Close()

	tracer := otel.Tracer(serviceName)
	httpClient := httpclient.NewClient(tracer)
	ledger := adapter.NewLedgerHTTPAdapter(httpClient, cfg.Infra.Ledger.BaseURL)
	auth := adapter.NewAuthHTTPAdapter(httpClient, cfg.Infra.Auth.BaseURL)

	fraudService := application.NewFraudService(orderRepo, fraudRepo, notifier, tracer)
	automationService := application.NewAutomationService(
		orderRepo, returnRepo, fraudService, riskEvaluator, notifier, tracer,
		application.Thresholds{
			ProcessingAfter:      cfg.App.Automation.ProcessingAfter(),
			AssumeDeliveredAfter: cfg.App.Automation.AssumeDeliveredAfter(),
			AutoCompleteAfter:    cfg.App.Automation.AutoCompleteAfter(),
			Parallelism:          cfg.App.Automation.PassParallelism,
		},
	)
	returnService := application.NewReturnService(orderRepo, returnRepo, ledger, notifier, tracer)

	handler := interfaces.NewTrustHandler(automationService, fraudService, returnService, auth, cfg.App.CronSecret)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8081,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}
