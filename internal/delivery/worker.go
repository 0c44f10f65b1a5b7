package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/smartlearn/shakeout-gateway/internal/obs"
)

// Fulfiller hands a settled order over to the host application.
type Fulfiller interface {
	Fulfil(ctx context.Context, task Task) error
}

// Worker consumes order-delivery tasks.
type Worker struct {
	Fulfiller Fulfiller
	Logger    zerolog.Logger
}

// Handle processes one queued delivery. Returning an error lets asynq retry
// with backoff up to the task's MaxRetry.
func (w *Worker) Handle(ctx context.Context, t *asynq.Task) error {
	if w.Fulfiller == nil {
		return errors.New("delivery: fulfiller not configured")
	}
	var task Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// Malformed payloads never become valid, do not retry.
		w.Logger.Error().Err(err).Msg("dropping malformed delivery task")
		w.count("malformed")
		return nil
	}
	if err := w.Fulfiller.Fulfil(ctx, task); err != nil {
		w.Logger.Warn().Err(err).
			Str("payment_id", task.PaymentID.String()).
			Msg("order delivery attempt failed")
		w.count("retry")
		return err
	}
	w.Logger.Info().
		Str("event", "order_delivered").
		Str("payment_id", task.PaymentID.String()).
		Str("component", task.Component).
		Msg("order delivered")
	w.count("success")
	return nil
}

func (w *Worker) count(result string) {
	if obs.DeliveryTasksTotal != nil {
		obs.DeliveryTasksTotal.WithLabelValues(result).Inc()
	}
}

// HTTPFulfiller posts the delivery to the host application's fulfilment
// endpoint and treats any 2xx answer as done.
type HTTPFulfiller struct {
	URL    string
	Client *http.Client
}

func (f *HTTPFulfiller) Fulfil(ctx context.Context, task Task) error {
	if f == nil || f.URL == "" {
		return errors.New("delivery: fulfilment URL not configured")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery: fulfilment endpoint answered %d", resp.StatusCode)
	}
	return nil
}
