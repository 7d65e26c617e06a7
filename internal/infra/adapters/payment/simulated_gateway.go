package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"earlykickoff-backend/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SimulatedGateway)(nil)

// SimulatedGateway stands in for M-Pesa when no credentials are configured.
// Every push settles successfully at once; the payment use case applies the
// result through the normal callback path.
type SimulatedGateway struct {
	mu     sync.Mutex
	seq    int64
	pushes map[string]adapter.STKPushRequest
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{pushes: make(map[string]adapter.STKPushRequest)}
}

func (g *SimulatedGateway) Name() string    { return "mpesa-sim" }
func (g *SimulatedGateway) Simulated() bool { return true }

func (g *SimulatedGateway) next() string {
	g.seq++
	return fmt.Sprintf("SIM-%d-%d", time.Now().UnixMilli(), g.seq)
}

func (g *SimulatedGateway) InitiateSTKPush(ctx context.Context, req adapter.STKPushRequest) (adapter.STKPushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.pushes[id] = req
	return adapter.STKPushResult{
		MerchantRequestID: "sim-" + id,
		CheckoutRequestID: id,
		CustomerMessage:   "M-Pesa Simulation: Success",
	}, nil
}

func (g *SimulatedGateway) QuerySTKPush(ctx context.Context, checkoutRequestID string) (adapter.STKQueryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pushes[checkoutRequestID]; !ok {
		return adapter.STKQueryResult{Final: true, ResultCode: 1032, ResultDesc: "Request cancelled by user"}, nil
	}
	return adapter.STKQueryResult{Final: true, ResultCode: 0, ResultDesc: "The service request is processed successfully."}, nil
}
