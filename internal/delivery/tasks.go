package delivery

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/smartlearn/shakeout-gateway/internal/payment"
)

// TypeOrderDeliver is the asynq task type for post-settlement order handover.
const TypeOrderDeliver = "order:deliver"

// Task is the queued payload for one settled payment.
type Task struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	UserID      uuid.UUID `json:"userId"`
	Component   string    `json:"component"`
	PaymentArea string    `json:"paymentArea"`
	ItemID      int64     `json:"itemId"`
}

// Enqueuer pushes delivery orders onto the task queue. It satisfies
// payment.OrderDeliverer so the webhook reconciler never blocks on the
// downstream fulfilment call.
type Enqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// Deliver enqueues the order for asynchronous fulfilment.
func (e *Enqueuer) Deliver(ctx context.Context, order payment.DeliveryOrder) error {
	if e == nil || e.Client == nil {
		return errors.New("delivery: enqueuer not configured")
	}
	payload, err := json.Marshal(Task{
		PaymentID:   order.PaymentID,
		UserID:      order.UserID,
		Component:   order.Context.Component,
		PaymentArea: order.Context.PaymentArea,
		ItemID:      order.Context.ItemID,
	})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(e.queue()), asynq.MaxRetry(e.maxRetry())}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TypeOrderDeliver, payload), opts...)
	return err
}

func (e *Enqueuer) queue() string {
	if e.Queue != "" {
		return e.Queue
	}
	return "default"
}

func (e *Enqueuer) maxRetry() int {
	if e.MaxRetry > 0 {
		return e.MaxRetry
	}
	return 5
}
