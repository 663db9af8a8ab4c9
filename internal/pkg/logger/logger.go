package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// 全局基础 logger。服务启动时通过 Init 定制服务名。
var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 设置服务级别的公共字段
func Init(serviceName string) {
	base = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Logger 返回基础 logger
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了当前链路 TraceID 的 logger，
// 让日志可以和 Jaeger 里的 trace 对上。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &base
	}
	l := base.With().
		Str("traceId", spanCtx.TraceID().String()).
		Str("spanId", spanCtx.SpanID().String()).
		Logger()
	return &l
}
