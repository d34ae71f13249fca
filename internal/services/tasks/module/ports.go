package module

import dom "newsroom/internal/services/tasks/domain"

// Ports holds the ports exposed by the tasks module
type Ports struct {
	Enqueuer   dom.EnqueuePort
	TxEnqueuer dom.TxEnqueuePort
	Worker     dom.WorkerPort
	Stats      dom.StatsPort
}
