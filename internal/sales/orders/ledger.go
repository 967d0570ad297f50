package orders

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/shared"
)

// VolumeLedger tracks ordered, delivered and remaining m³ of an order.
// delivered + remaining == ordered and remaining >= 0 hold for every value
// obtainable through NewLedger, RestoreLedger and ApplyDelivery.
type VolumeLedger struct {
	ordered   decimal.Decimal
	delivered decimal.Decimal
	remaining decimal.Decimal
}

// NewLedger opens a ledger with nothing delivered.
func NewLedger(ordered decimal.Decimal) (VolumeLedger, error) {
	if !ordered.IsPositive() {
		return VolumeLedger{}, shared.Violation(shared.ErrInvalidInput, "ordered_m3", ordered, "> 0")
	}
	return VolumeLedger{ordered: ordered, delivered: decimal.Zero, remaining: ordered}, nil
}

// RestoreLedger rebuilds a persisted ledger.
func RestoreLedger(ordered, delivered, remaining decimal.Decimal) (VolumeLedger, error) {
	if !ordered.IsPositive() || delivered.IsNegative() || remaining.IsNegative() || !delivered.Add(remaining).Equal(ordered) {
		return VolumeLedger{}, fmt.Errorf("%w: inconsistent volume ledger ordered=%s delivered=%s remaining=%s",
			shared.ErrInvalidInput, ordered, delivered, remaining)
	}
	return VolumeLedger{ordered: ordered, delivered: delivered, remaining: remaining}, nil
}

func (l VolumeLedger) Ordered() decimal.Decimal   { return l.ordered }
func (l VolumeLedger) Delivered() decimal.Decimal { return l.delivered }
func (l VolumeLedger) Remaining() decimal.Decimal { return l.remaining }

// Exhausted reports whether nothing remains to deliver.
func (l VolumeLedger) Exhausted() bool {
	return !l.remaining.IsPositive()
}

// ApplyDelivery moves volume from remaining to delivered.
func (l VolumeLedger) ApplyDelivery(volume decimal.Decimal) (VolumeLedger, error) {
	if !volume.IsPositive() {
		return l, shared.Violation(shared.ErrVolumeOutOfRange, "volume_m3", volume, "> 0")
	}
	if volume.GreaterThan(l.remaining) {
		return l, shared.Violation(shared.ErrVolumeExceedsRemaining, "volume_m3", volume, "<= "+l.remaining.String())
	}
	return VolumeLedger{
		ordered:   l.ordered,
		delivered: l.delivered.Add(volume),
		remaining: l.remaining.Sub(volume),
	}, nil
}

func (l VolumeLedger) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Ordered   decimal.Decimal `json:"ordered_m3"`
		Delivered decimal.Decimal `json:"delivered_m3"`
		Remaining decimal.Decimal `json:"remaining_m3"`
	}{l.ordered, l.delivered, l.remaining})
}
