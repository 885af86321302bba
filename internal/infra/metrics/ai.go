package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(agentTurnsTotal, toolCallsTotal, aiCallsLatencyMs) }

var agentTurnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_turns_total",
		Help: "Agent turns finished, labeled by outcome.",
	},
	[]string{"status"}, // 'completed', 'rejected', 'error'
)

var toolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Tool invocations requested by the model, labeled by tool name.",
	},
	[]string{"tool"},
)

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 15000},
	},
	[]string{"model", "success"},
)

func IncAgentTurn(status string) { agentTurnsTotal.WithLabelValues(norm(status)).Inc() }

func IncToolCall(tool string) { toolCallsTotal.WithLabelValues(norm(tool)).Inc() }

func ObserveAICall(model string, latencyMs int64, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
