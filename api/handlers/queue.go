package handlers

import (
	"net/http"

	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/llm/budget"
)

// QueueMetrics is the body of GET /api/v1/queue/metrics.
type QueueMetrics struct {
	budget.Snapshot
	Pending   int   `json:"pending"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// QueueHandler 队列指标接口
type QueueHandler struct {
	queue *queue.Queue
}

// NewQueueHandler 创建处理器
func NewQueueHandler(q *queue.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// HandleMetrics 处理 GET /api/v1/queue/metrics
func (h *QueueHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	submitted, completed, failed := h.queue.Stats()
	WriteSuccess(w, QueueMetrics{
		Snapshot:  h.queue.Metrics(),
		Pending:   len(h.queue.Pending()),
		Submitted: submitted,
		Completed: completed,
		Failed:    failed,
	})
}
