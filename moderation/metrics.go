package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_messages_processed",
	Help: "Number of group messages processed, by moderation mode",
}, []string{"mode"})

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "topicmod_message_duration_sec",
	Help: "Total duration of message processing",
})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_decisions",
	Help: "Number of moderation decisions, by action and reason",
}, []string{"action", "reason"})

var reviewPromptsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "topicmod_review_prompts_sent",
	Help: "Number of messages sent to a human reviewer",
})

var reviewDecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_review_decisions",
	Help: "Number of reviewer decisions received, by outcome",
}, []string{"status"})

var trainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_training_runs",
	Help: "Number of classifier training attempts, by result",
}, []string{"result"})

var trainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "topicmod_training_duration_sec",
	Help: "Duration of classifier training runs",
})

var exampleCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "topicmod_labeled_examples",
	Help: "Current number of distinct labeled examples",
})

var gatewayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_gateway_failures",
	Help: "Number of messaging gateway calls which failed after retries",
}, []string{"op"})

var persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicmod_persist_failures",
	Help: "Number of persistence operations which failed",
}, []string{"op"})
