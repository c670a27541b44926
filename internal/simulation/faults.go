package simulation

import (
	"errors"
	"fmt"

	"github.com/ruletree/engine/pkg/fsm"
	"github.com/ruletree/engine/pkg/models"
)

// ErrInjectedFault is returned by a FaultyRetriever when it decides, per its
// configured rate, to fail this retrieval — standing in for a record-store
// outage.
var ErrInjectedFault = errors.New("simulation: injected retrieval fault")

// FaultyRetriever implements evaluator.RecordRetriever, failing a
// configured fraction of calls instead of always returning a Product,
// standing in for a flaky record-store dependency.
type FaultyRetriever struct {
	rnd      *fsm.DeterministicRand
	failRate float64 // in [0, 1]
	current  *models.Product
}

// NewFaultyRetriever returns a RecordRetriever that returns current on
// success and ErrInjectedFault on the injected-failure branch, chosen by
// rnd at the given failRate.
func NewFaultyRetriever(rnd *fsm.DeterministicRand, failRate float64, current *models.Product) *FaultyRetriever {
	return &FaultyRetriever{rnd: rnd, failRate: failRate, current: current}
}

func (f *FaultyRetriever) Retrieve(keys map[string]string) (*models.Product, error) {
	if f.rnd.Float64() < f.failRate {
		return nil, fmt.Errorf("%w: keys=%v", ErrInjectedFault, keys)
	}
	return f.current, nil
}
