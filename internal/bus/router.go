package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/Nest-ms-1/orders-ms/internal/service"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const OrdersQueue = "orders"

// Message patterns served by this queue. Kept byte for byte compatible with
// the existing callers, hyphens included.
const (
	PatternCreateOrder       = "create_order"
	PatternFindAllOrders     = "find_all_orders"
	PatternFindOneOrder      = "find_one_order"
	PatternChangeOrderStatus = "change-order-status"
)

// RPCError is the reply envelope for failed operations: an HTTP-style status
// code and a message, never a raw transport error.
type RPCError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type Router struct {
	conn *amqp.Connection
	svc  service.OrderService
}

func NewRouter(conn *amqp.Connection, svc service.OrderService) *Router {
	return &Router{conn: conn, svc: svc}
}

// Run consumes the orders queue until ctx is cancelled. Each request is
// handled on its own goroutine; replies go to the request's ReplyTo queue
// with its CorrelationId.
func (r *Router) Run(ctx context.Context) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		OrdersQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx,
		OrdersQueue,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	log.Printf("orders router consuming queue %q", OrdersQueue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			go r.handle(ctx, ch, d)
		}
	}
}

func (r *Router) handle(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	result, rpcErr := r.Dispatch(ctx, d.Type, d.Body)

	if d.ReplyTo == "" {
		if rpcErr != nil {
			log.Printf("no reply queue for %s request, dropping error: %s", d.Type, rpcErr.Message)
		}
		return
	}

	reply := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
	}
	if rpcErr != nil {
		body, err := json.Marshal(rpcErr)
		if err != nil {
			log.Printf("marshal error reply for %s: %v", d.Type, err)
			return
		}
		reply.Type = "error"
		reply.Body = body
	} else {
		reply.Body = result
	}

	if err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, reply); err != nil {
		log.Printf("publish %s reply: %v", d.Type, err)
	}
}

// Dispatch maps a message pattern and JSON payload onto the orchestrator and
// shapes the outcome as either a JSON result or an RPCError.
func (r *Router) Dispatch(ctx context.Context, pattern string, body []byte) (json.RawMessage, *RPCError) {
	switch pattern {
	case PatternCreateOrder:
		return r.createOrder(ctx, body)
	case PatternFindAllOrders:
		return r.findAllOrders(ctx, body)
	case PatternFindOneOrder:
		return r.findOneOrder(ctx, body)
	case PatternChangeOrderStatus:
		return r.changeOrderStatus(ctx, body)
	default:
		log.Printf("unknown message pattern %q", pattern)
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "unknown message pattern"}
	}
}

func (r *Router) createOrder(ctx context.Context, body []byte) (json.RawMessage, *RPCError) {
	var req domain.CreateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "Check products failed"}
	}

	resp, err := r.svc.Create(ctx, &req)
	if err != nil {
		// Every create-flow failure collapses into one generic client fault;
		// the real cause stays in the logs.
		log.Printf("create order failed: %v", err)
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "Check products failed"}
	}
	return marshalReply(resp)
}

func (r *Router) findAllOrders(ctx context.Context, body []byte) (json.RawMessage, *RPCError) {
	var pagination domain.OrderPagination
	if len(body) > 0 {
		if err := json.Unmarshal(body, &pagination); err != nil {
			return nil, &RPCError{Status: http.StatusBadRequest, Message: "invalid pagination payload"}
		}
	}

	resp, err := r.svc.FindAll(ctx, &pagination)
	if err != nil {
		return nil, toRPCError(err)
	}
	return marshalReply(resp)
}

func (r *Router) findOneOrder(ctx context.Context, body []byte) (json.RawMessage, *RPCError) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "invalid payload"}
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "id must be a valid UUID"}
	}

	order, err := r.svc.FindOne(ctx, id)
	if err != nil {
		return nil, toRPCError(err)
	}
	return marshalReply(order)
}

func (r *Router) changeOrderStatus(ctx context.Context, body []byte) (json.RawMessage, *RPCError) {
	var req struct {
		ID     string             `json:"id"`
		Status domain.OrderStatus `json:"status"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "invalid payload"}
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, &RPCError{Status: http.StatusBadRequest, Message: "id must be a valid UUID"}
	}

	order, err := r.svc.ChangeStatus(ctx, id, req.Status)
	if err != nil {
		return nil, toRPCError(err)
	}
	return marshalReply(order)
}

func toRPCError(err error) *RPCError {
	var notFound *service.OrderNotFoundError
	switch {
	case errors.As(err, &notFound):
		return &RPCError{Status: http.StatusNotFound, Message: notFound.Error()}
	case errors.Is(err, service.ErrUnknownStatus),
		errors.Is(err, service.ErrProductValidation):
		return &RPCError{Status: http.StatusBadRequest, Message: err.Error()}
	default:
		log.Printf("internal error: %v", err)
		return &RPCError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
}

func marshalReply(v any) (json.RawMessage, *RPCError) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("marshal reply: %v", err)
		return nil, &RPCError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
	return body, nil
}
