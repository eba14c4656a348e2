package queue

import (
	"github.com/maheshrc27/autopost/internal/service"
)

type Queue struct {
	pc service.ProcessorService
	sc service.SchedulerService
}

func NewQueue(pc service.ProcessorService, sc service.SchedulerService) *Queue {
	return &Queue{
		pc: pc,
		sc: sc,
	}
}

const (
	TaskTypeProcessDue  = "queue:process_due"
	TaskTypeProcessItem = "queue:process_item"
	TaskTypeExpandDue   = "schedule:expand_due"
)

type ProcessItemPayload struct {
	ItemID int64 `json:"item_id"`
}
