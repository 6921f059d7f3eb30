package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Caller performs one request/reply exchange over the bus: publish the
// payload under a message pattern to a collaborator queue, then block until
// exactly one correlated reply arrives or ctx expires.
type Caller interface {
	Call(ctx context.Context, queue, pattern string, payload any) (json.RawMessage, error)
}

// SetupConn dials RabbitMQ with a few attempts to survive container startup.
func SetupConn(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
}

type RPCClient struct {
	conn *amqp.Connection
}

func NewRPCClient(conn *amqp.Connection) *RPCClient {
	return &RPCClient{conn: conn}
}

// rpcError is the error envelope collaborators reply with (delivery type
// "error"): an RPC status code plus a message.
type rpcError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (c *RPCClient) Call(ctx context.Context, queue, pattern string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s payload: %w", pattern, err)
	}

	// A channel per call keeps concurrent requests from sharing consumer
	// state; the exclusive reply queue dies with it.
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare(
		"",    // random name
		false, // non-durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("could not declare reply queue: %w", err)
	}

	replies, err := ch.ConsumeWithContext(ctx,
		replyQueue.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("could not consume reply queue: %w", err)
	}

	correlationID := uuid.NewString()
	err = ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = collaborator queue
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Type:          pattern,
			CorrelationId: correlationID,
			ReplyTo:       replyQueue.Name,
			Body:          body,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not publish %s request: %w", pattern, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s call: %w", pattern, ctx.Err())
		case d, ok := <-replies:
			if !ok {
				return nil, fmt.Errorf("%s call: reply channel closed", pattern)
			}
			if d.CorrelationId != correlationID {
				continue
			}
			if d.Type == "error" {
				var remote rpcError
				if err := json.Unmarshal(d.Body, &remote); err != nil {
					return nil, fmt.Errorf("%s call failed with unreadable error reply: %w", pattern, err)
				}
				return nil, fmt.Errorf("%s call failed: %s (status %d)", pattern, remote.Message, remote.Status)
			}
			return json.RawMessage(d.Body), nil
		}
	}
}
