// Package matcher pairs baseline records with incoming records by identity.
package matcher

import (
	"github.com/okian/gestor/internal/domain/model"
)

// Dataset names used in collision errors.
const (
	DatasetBaseline = "baseline"
	DatasetIncoming = "incoming"
)

// Pair is a baseline record and the incoming record sharing its key.
type Pair struct {
	Baseline model.ClientRecord
	Incoming model.ClientRecord
}

// Result separates matched pairs from incoming records with no baseline.
type Result struct {
	Pairs     []Pair
	Unmatched []model.ClientRecord

	// order replays the incoming sequence: >= 0 indexes Pairs,
	// < 0 indexes Unmatched as -(i+1).
	order []int
}

// Each walks the result in incoming order. baseline is nil for unmatched records.
func (r Result) Each(fn func(baseline *model.ClientRecord, incoming model.ClientRecord)) {
	for _, o := range r.order {
		if o >= 0 {
			p := r.Pairs[o]
			fn(&p.Baseline, p.Incoming)
			continue
		}
		fn(nil, r.Unmatched[-o-1])
	}
}

// Len is the number of incoming records covered by the result.
func (r Result) Len() int { return len(r.order) }

// Match pairs every incoming record with the baseline record of the same
// (OwnerID, ClientID). Baseline records with no incoming counterpart are
// ignored. A repeated key in either dataset aborts the pass with a
// *model.CollisionError before any pairing happens.
func Match(baseline, incoming []model.ClientRecord) (Result, error) {
	byKey, err := model.Index(DatasetBaseline, baseline)
	if err != nil {
		return Result{}, err
	}
	if _, err := model.Index(DatasetIncoming, incoming); err != nil {
		return Result{}, err
	}

	res := Result{order: make([]int, 0, len(incoming))}
	for _, in := range incoming {
		if i, ok := byKey[in.Key()]; ok {
			res.Pairs = append(res.Pairs, Pair{Baseline: baseline[i], Incoming: in})
			res.order = append(res.order, len(res.Pairs)-1)
			continue
		}
		res.Unmatched = append(res.Unmatched, in)
		res.order = append(res.order, -len(res.Unmatched))
	}
	return res, nil
}
