package heapdb

// StringHistogram estimates the frequency of string values with a
// count-min sketch, so equality and containment predicates over string
// columns can be costed without keeping the values themselves.

import (
	boom "github.com/tylertreat/BoomFilters"
)

type StringHistogram struct {
	cms *boom.CountMinSketch
}

func NewStringHistogram() (*StringHistogram, error) {
	cms := boom.NewCountMinSketch(0.001, 0.999)
	return &StringHistogram{cms: cms}, nil
}

func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
}

// EstimateSelectivity returns the estimated fraction of recorded values
// matching "value op s". The sketch only answers point frequencies, so
// equality and like use it directly; inequality is its complement, and
// range operators fall back to a fixed default.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	total := h.cms.TotalCount()
	if total == 0 {
		return 0.0
	}
	eq := float64(h.cms.Count([]byte(s))) / float64(total)
	switch op {
	case OpEq, OpLike:
		return eq
	case OpNeq:
		return 1.0 - eq
	default:
		return 0.5
	}
}
