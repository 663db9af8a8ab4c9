package interfaces

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"sentinel/internal/pkg/logger"
	"sentinel/internal/service/trust/application"
	"sentinel/internal/service/trust/domain"
	"sentinel/internal/service/trust/domain/port"
)

const serviceName = "trust-service"

// TrustHandler 封装了自动化、风控、退货三个工作流的 HTTP 处理器
type TrustHandler struct {
	automation *application.AutomationService
	fraud      *application.FraudService
	returns    *application.ReturnService
	auth       port.AuthService
	cronSecret string
}

func NewTrustHandler(automation *application.AutomationService, fraud *application.FraudService, returns *application.ReturnService, auth port.AuthService, cronSecret string) *TrustHandler {
	return &TrustHandler{
		automation: automation,
		fraud:      fraud,
		returns:    returns,
		auth:       auth,
		cronSecret: cronSecret,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *TrustHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/automation/run", h.runPassHandler)
	mux.HandleFunc("/fraud/raise", h.raiseFraudHandler)
	mux.HandleFunc("/fraud/review", h.reviewFraudHandler)
	mux.HandleFunc("/returns/request", h.requestReturnHandler)
	mux.HandleFunc("/returns/respond", h.sellerRespondHandler)
	mux.HandleFunc("/returns/received", h.markReceivedHandler)
	mux.HandleFunc("/returns/inspect", h.inspectHandler)
	mux.HandleFunc("/returns/resolve", h.resolveHandler)
}

// runPassHandler 是定时触发器和手工触发共用的入口。
// 触发层负责保证不会有两趟 pass 并发（见 automation-scheduler 的租约）。
func (h *TrustHandler) runPassHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.RunPass")
	defer span.End()

	if h.cronSecret != "" {
		secret := r.Header.Get("X-Cron-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cronSecret)) != 1 {
			http.Error(w, "invalid cron secret", http.StatusUnauthorized)
			return
		}
	}

	start := time.Now()
	report, err := h.automation.RunPass(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	passDuration.Observe(time.Since(start).Seconds())
	passOrdersTotal.WithLabelValues("advanced").Add(float64(report.Advanced))
	passOrdersTotal.WithLabelValues("skipped").Add(float64(report.Skipped))
	passOrdersTotal.WithLabelValues("failed").Add(float64(len(report.Failed)))

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"advanced":  report.Advanced,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type raiseFraudRequest struct {
	OrderID string  `json:"orderId"`
	Level   string  `json:"level"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

func (h *TrustHandler) raiseFraudHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.RaiseFraud")
	defer span.End()

	var req raiseFraudRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.fraud.Raise(ctx, req.OrderID, domain.RiskSignal{
		Level:  domain.RiskLevel(req.Level),
		Score:  req.Score,
		Reason: req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	fraudEventsTotal.WithLabelValues("raised").Inc()
	h.writeJSON(w, http.StatusCreated, event)
}

type reviewFraudRequest struct {
	EventID string `json:"eventId"`
	Action  string `json:"action"`
	Notes   string `json:"notes"`
}

func (h *TrustHandler) reviewFraudHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.ReviewFraud")
	defer span.End()

	actor, ok := h.resolveActor(ctx, w, r)
	if !ok {
		return
	}

	var req reviewFraudRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.fraud.Review(ctx, req.EventID, req.Action, actor, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	fraudEventsTotal.WithLabelValues(req.Action).Inc()
	h.writeJSON(w, http.StatusOK, event)
}

type requestReturnRequest struct {
	OrderID string             `json:"orderId"`
	Reason  string             `json:"reason"`
	Items   []domain.OrderItem `json:"items,omitempty"`
}

func (h *TrustHandler) requestReturnHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.RequestReturn")
	defer span.End()

	actor, ok := h.resolveActor(ctx, w, r)
	if !ok {
		return
	}

	var req requestReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.returns.Request(ctx, req.OrderID, actor.ID, req.Reason, req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

type sellerRespondRequest struct {
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

func (h *TrustHandler) sellerRespondHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.SellerRespond")
	defer span.End()

	actor, ok := h.resolveActor(ctx, w, r)
	if !ok {
		return
	}

	var req sellerRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.returns.SellerRespond(ctx, req.RequestID, actor, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type markReceivedRequest struct {
	RequestID string `json:"requestId"`
}

func (h *TrustHandler) markReceivedHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.MarkReceived")
	defer span.End()

	var req markReceivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.returns.MarkReceived(ctx, req.RequestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type inspectRequest struct {
	RequestID string `json:"requestId"`
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

func (h *TrustHandler) inspectHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.Inspect")
	defer span.End()

	actor, ok := h.resolveActor(ctx, w, r)
	if !ok {
		return
	}

	var req inspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.returns.Inspect(ctx, req.RequestID, actor, req.Condition, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
}

func (h *TrustHandler) resolveHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.Resolve")
	defer span.End()

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.returns.Resolve(ctx, req.RequestID, req.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// resolveActor 从 Authorization 头解析操作者；失败时写 401 并返回 false
func (h *TrustHandler) resolveActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (port.Actor, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return port.Actor{}, false
	}
	actor, err := h.auth.ResolveActor(ctx, token)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return port.Actor{}, false
	}
	return actor, true
}

// writeError 把领域错误分类映射到 HTTP 状态码
func (h *TrustHandler) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var authz *domain.AuthorizationError

	status := http.StatusInternalServerError
	switch {
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsInvalidTransition(err), domain.IsConflict(err):
		status = http.StatusConflict
	case domain.IsDownstreamFailure(err):
		status = http.StatusBadGateway
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &authz):
		status = http.StatusForbidden
	}
	logger.Logger().Error().Err(err).Int("status", status).Msg("request failed")
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *TrustHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger().Error().Err(err).Msg("failed to encode response")
	}
}
