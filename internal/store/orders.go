package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"bridge/internal/alpaca"
	"bridge/internal/model"
	"bridge/internal/model/enum"
	"bridge/pkg/exception"
)

// ExecutionHandler receives the order lifecycle callbacks keyed by the
// caller's local order reference. Callbacks for one reference arrive in
// event order; a reference sees zero or more partial fills and at most
// one terminal callback.
type ExecutionHandler interface {
	OnSubmitted(ref int)
	OnAccepted(ref int)
	// OnFill reports an execution. size is signed, negative for sells.
	// partial is true while the broker reports the order still working.
	OnFill(ref int, size, price float64, partial bool)
	OnCanceled(ref int)
	OnRejected(ref int)
	OnExpired(ref int)
}

type createRequest struct {
	ref    int
	intent model.OrderIntent
}

type cancelRequest struct {
	ref int
}

// broker statuses that acknowledge a working order
var acceptStatuses = map[string]struct{}{
	"new":                  {},
	"accepted":             {},
	"pending_new":          {},
	"accepted_for_bidding": {},
}

// Submit validates the intent and queues it for submission. The local
// reference must be unused; bracket intents additionally reserve ref+1
// and ref+2 for their legs.
func (s *Store) Submit(ref int, intent model.OrderIntent) error {
	if !s.bound.Load() {
		return exception.ErrOrderStoreNotStarted
	}
	if err := intent.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	_, dup := s.ordersByRef[ref]
	s.mu.Unlock()
	if dup {
		return exception.ErrOrderDuplicateReference
	}

	s.qCreate <- &createRequest{ref: ref, intent: intent}
	return nil
}

// Cancel queues a cancellation for the local reference. A reference with
// no bound broker order is dropped silently; it is either already gone
// or was never accepted.
func (s *Store) Cancel(ref int) {
	if !s.bound.Load() {
		return
	}
	s.qCancel <- &cancelRequest{ref: ref}
}

func (s *Store) createWorker(ctx context.Context) {
	for {
		var req *createRequest
		select {
		case <-ctx.Done():
			return
		case req = <-s.qCreate:
		}
		if req == nil {
			return
		}
		s.processCreate(ctx, req)
	}
}

func (s *Store) processCreate(ctx context.Context, req *createRequest) {
	inst, ok := s.Instrument(ctx, req.intent.Symbol)
	if !ok {
		logs.Warnf("submit order %d: unknown instrument %s", req.ref, req.intent.Symbol)
		s.Notify("order rejected: unknown instrument " + req.intent.Symbol)
		s.handler.OnRejected(req.ref)
		return
	}

	order, err := s.client.SubmitOrder(ctx, buildOrderRequest(req.intent, inst))
	if err != nil {
		logs.Errorf("submit order %d, err: %+v", req.ref, err)
		s.Notify("order rejected: " + err.Error())
		s.handler.OnRejected(req.ref)
		return
	}
	s.metrics.OrderSubmitted(req.intent.Side.String())

	s.bindOrder(req.ref, order.ID)
	if len(order.Legs) > 0 {
		// bracket legs take the next local references
		for i, leg := range order.Legs {
			s.bindOrder(req.ref+i+1, leg.ID)
		}
	}
	s.handler.OnSubmitted(req.ref)
	if req.intent.Type == enum.OrderTypeMarket {
		// market orders are taken immediately
		s.handler.OnAccepted(req.ref)
	}
}

// bindOrder records the ref <-> broker id mapping and replays any
// trade events that arrived before the submission response. While the
// replay drains, newly arriving events for the id keep buffering so one
// id's events never interleave across the two paths.
func (s *Store) bindOrder(ref int, orderID string) {
	s.mu.Lock()
	s.ordersByRef[ref] = orderID
	s.refsByID[orderID] = ref
	s.replaying[orderID] = struct{}{}
	s.mu.Unlock()

	for {
		s.mu.Lock()
		pend := s.transPend[orderID]
		delete(s.transPend, orderID)
		if len(pend) == 0 {
			delete(s.replaying, orderID)
			s.mu.Unlock()
			return
		}
		s.pendingLive -= len(pend)
		s.metrics.SetPendingTransactions(s.pendingLive)
		s.mu.Unlock()

		for _, trans := range pend {
			s.safeProcess(orderID, trans)
		}
	}
}

func (s *Store) cancelWorker(ctx context.Context) {
	for {
		var req *cancelRequest
		select {
		case <-ctx.Done():
			return
		case req = <-s.qCancel:
		}
		if req == nil {
			return
		}

		s.mu.Lock()
		orderID, ok := s.ordersByRef[req.ref]
		s.mu.Unlock()
		if !ok {
			// the order is no longer there
			continue
		}

		if err := s.client.CancelOrder(ctx, orderID); err != nil {
			logs.Warnf("cancel order %d (%s), err: %+v", req.ref, orderID, err)
			s.Notify("order not cancelled: " + orderID + ", " + err.Error())
			continue
		}
		s.handler.OnCanceled(req.ref)
	}
}

func (s *Store) tradeDispatchWorker(ctx context.Context) {
	for {
		trans, ok := s.qTrade.PopWait()
		if !ok || trans.OrderID == "" {
			// queue closed or stream signalled shutdown
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.dispatchTransaction(trans)
	}
}

// dispatchTransaction routes one trade event. Events for broker ids not
// yet bound to a local reference, or still replaying their buffered
// backlog, are queued and replayed on binding; the submission response
// races the trade stream.
func (s *Store) dispatchTransaction(trans model.TradeUpdate) {
	s.metrics.OrderEvent(trans.Status)

	s.mu.Lock()
	_, bound := s.refsByID[trans.OrderID]
	_, replaying := s.replaying[trans.OrderID]
	if !bound || replaying {
		pend := s.transPend[trans.OrderID]
		if len(pend) >= s.cfg.PendingTransLimit {
			pend = pend[1:]
			s.pendingLive--
		}
		s.transPend[trans.OrderID] = append(pend, trans)
		s.pendingLive++
		s.metrics.SetPendingTransactions(s.pendingLive)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.safeProcess(trans.OrderID, trans)
}

// safeProcess shields the dispatch paths from a poison event. A panic
// in classification or in a handler callback is logged, the mapping is
// dropped and the reference rejected, so the event cannot take a worker
// down and the order still sees a terminal callback.
func (s *Store) safeProcess(orderID string, trans model.TradeUpdate) {
	s.mu.Lock()
	ref, bound := s.refsByID[orderID]
	s.mu.Unlock()
	if !bound {
		return
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logs.Errorf("processing transaction %s: %+v", orderID, r)
		s.Notify("order event dropped: " + orderID)

		s.mu.Lock()
		delete(s.refsByID, orderID)
		delete(s.ordersByRef, ref)
		s.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				logs.Errorf("reject order %d: %+v", ref, r)
			}
		}()
		s.handler.OnRejected(ref)
	}()
	s.processTransaction(orderID, trans)
}

// processTransaction classifies one trade event for a bound order. The
// mapping is consumed on terminal events and kept alive through
// acknowledgements and partial fills.
func (s *Store) processTransaction(orderID string, trans model.TradeUpdate) {
	s.mu.Lock()
	ref, ok := s.refsByID[orderID]
	if !ok {
		s.mu.Unlock()
		return
	}

	status := trans.Status
	_, accept := acceptStatuses[status]
	keep := accept || status == "partially_filled" || status == "calculated"
	if !keep {
		delete(s.refsByID, orderID)
		delete(s.ordersByRef, ref)
	}
	s.mu.Unlock()

	switch {
	case status == "filled" || status == "partially_filled":
		size := trans.FilledQty
		if trans.Side == enum.OrderSideSell {
			size = -size
		}
		s.handler.OnFill(ref, size, trans.FilledAvgPrice, status == "partially_filled")

	case accept:
		s.handler.OnAccepted(ref)

	case status == "calculated":
		// settlement bookkeeping only, nothing to report

	case status == "expired":
		s.handler.OnExpired(ref)

	default:
		logs.Warnf("unhandled transaction status %q for order %d", status, ref)
		s.handler.OnRejected(ref)
	}
}

func buildOrderRequest(intent model.OrderIntent, inst model.Instrument) alpaca.OrderRequest {
	tif := enum.OrderTimeInForceDay
	if inst.Class == enum.AssetClassCrypto {
		tif = enum.OrderTimeInForceGTC
	}

	req := alpaca.OrderRequest{
		Symbol:        intent.Symbol,
		Qty:           alpaca.FormatQty(intent.Qty),
		Side:          intent.Side.String(),
		Type:          intent.Type.String(),
		TimeInForce:   tif.String(),
		ClientOrderID: uuid.NewString(),
	}

	switch intent.Type {
	case enum.OrderTypeLimit:
		req.LimitPrice = alpaca.FormatPrice(*intent.LimitPrice)
	case enum.OrderTypeStop:
		req.StopPrice = alpaca.FormatPrice(*intent.StopPrice)
	case enum.OrderTypeStopLimit:
		req.StopPrice = alpaca.FormatPrice(*intent.StopPrice)
		req.LimitPrice = alpaca.FormatPrice(*intent.LimitPrice)
	case enum.OrderTypeTrailingStop:
		if intent.TrailPercent != nil {
			req.TrailPercent = alpaca.FormatPrice(*intent.TrailPercent)
		} else {
			req.TrailPrice = alpaca.FormatPrice(*intent.TrailAmount)
		}
	}

	if intent.Bracket() {
		req.OrderClass = "bracket"
		if intent.StopLoss != nil {
			req.StopLoss = &alpaca.StopLossSpec{StopPrice: alpaca.FormatPrice(intent.StopLoss.Price)}
		}
		if intent.TakeProfit != nil {
			req.TakeProfit = &alpaca.TakeProfitSpec{LimitPrice: alpaca.FormatPrice(intent.TakeProfit.Price)}
		}
	}
	return req
}
