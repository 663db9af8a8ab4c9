package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigThresholds(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 24*time.Hour, cfg.App.Automation.ProcessingAfter())
	assert.Equal(t, 7*24*time.Hour, cfg.App.Automation.AssumeDeliveredAfter())
	assert.Equal(t, 14*24*time.Hour, cfg.App.Automation.AutoCompleteAfter())
	assert.Equal(t, 5*time.Minute, cfg.App.Automation.PassInterval())
	assert.Equal(t, 8, cfg.App.Automation.PassParallelism)
}

func TestDefaultConfigEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("NOTIFICATION_TOPIC", "custom-topic")

	cfg := defaultConfig()

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "custom-topic", cfg.Infra.Kafka.NotificationTopic)
}

func TestAutomationDurationAccessors(t *testing.T) {
	c := AutomationConfig{
		ProcessingAfterHours:     6,
		AssumeDeliveredAfterDays: 3,
		AutoCompleteAfterDays:    10,
		PassIntervalSeconds:      60,
	}

	assert.Equal(t, 6*time.Hour, c.ProcessingAfter())
	assert.Equal(t, 72*time.Hour, c.AssumeDeliveredAfter())
	assert.Equal(t, 240*time.Hour, c.AutoCompleteAfter())
	assert.Equal(t, time.Minute, c.PassInterval())
}
