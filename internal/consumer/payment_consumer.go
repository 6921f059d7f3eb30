package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/Nest-ms-1/orders-ms/internal/service"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	paymentTopic  = "payment-events"
	consumerGroup = "orders-ms"
)

// paymentSucceededEvent mirrors the payment service's wire payload. The
// order id arrives as a string and is validated here before it touches the
// orchestrator.
type paymentSucceededEvent struct {
	OrderID         string `json:"orderId"`
	StripePaymentID string `json:"stripePaymentId"`
	ReceiptURL      string `json:"receiptUrl"`
}

type Consumer struct {
	svc    service.OrderService
	reader *kafka.Reader
}

func NewConsumer(svc service.OrderService, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    paymentTopic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{svc: svc, reader: reader}
}

// Run consumes payment.succeeded events until ctx is cancelled. This is a
// fire-and-forget stream: there is no reply channel, so failures are logged
// and the loop keeps going. Delivery is at-least-once; the store absorbs
// duplicates.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading payment event: %v", err)
		return
	}

	var event paymentSucceededEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Printf("error parsing payment event: %v", err)
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		log.Printf("invalid orderId %q in payment event: %v", event.OrderID, err)
		return
	}

	paid := &domain.PaidOrderEvent{
		OrderID:         orderID,
		StripePaymentID: event.StripePaymentID,
		ReceiptURL:      event.ReceiptURL,
	}
	if err := c.svc.PaidOrder(ctx, paid); err != nil {
		log.Printf("failed to apply payment for order %s: %v", orderID, err)
		return
	}

	log.Printf("payment applied to order %s (charge %s)", orderID, event.StripePaymentID)
}
