package heapdb

// TableStats keeps per-column histograms for one table, built from a full
// scan, and answers the cost and selectivity questions a planner would ask.
// No planner lives in this package; the stats stand alone.

import "fmt"

// Stats is the estimation interface maintained for a table.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// CostPerPage is the cost charged per page read during a scan. Adjust to
// match the storage device.
const CostPerPage = 1000

// NumHistBins is the bucket count used for int histograms.
const NumHistBins = 100

type TableStats struct {
	desc      *TupleDesc
	numTuples int
	numPages  int
	intHists  map[int]*IntHistogram
	strHists  map[int]*StringHistogram
}

// ComputeTableStats scans dbFile twice under one transaction: once to find
// each int column's range, once to populate the histograms.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}
	defer bp.CommitTransaction(tid)

	desc := dbFile.Descriptor()
	ts := &TableStats{
		desc:     desc,
		numPages: dbFile.NumPages(),
		intHists: make(map[int]*IntHistogram),
		strHists: make(map[int]*StringHistogram),
	}

	mins := make(map[int]int64)
	maxs := make(map[int]int64)
	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}
	if err := iter.Open(); err != nil {
		return nil, err
	}
	for {
		ok, err := iter.HasNext()
		if err != nil {
			iter.Close()
			return nil, err
		}
		if !ok {
			break
		}
		t, err := iter.Next()
		if err != nil {
			iter.Close()
			return nil, err
		}
		ts.numTuples++
		for i, f := range t.Fields {
			v, ok := f.(IntField)
			if !ok {
				continue
			}
			if _, seen := mins[i]; !seen || int64(v.Value) < mins[i] {
				mins[i] = int64(v.Value)
			}
			if _, seen := maxs[i]; !seen || int64(v.Value) > maxs[i] {
				maxs[i] = int64(v.Value)
			}
		}
	}

	for i, ft := range desc.Fields {
		switch ft.Ftype {
		case IntType:
			vMin, vMax := mins[i], maxs[i]
			if ts.numTuples == 0 {
				vMin, vMax = 0, 0
			}
			h, err := NewIntHistogram(NumHistBins, vMin, vMax)
			if err != nil {
				iter.Close()
				return nil, err
			}
			ts.intHists[i] = h
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				iter.Close()
				return nil, err
			}
			ts.strHists[i] = h
		}
	}

	if err := iter.Rewind(); err != nil {
		iter.Close()
		return nil, err
	}
	for {
		ok, err := iter.HasNext()
		if err != nil {
			iter.Close()
			return nil, err
		}
		if !ok {
			break
		}
		t, err := iter.Next()
		if err != nil {
			iter.Close()
			return nil, err
		}
		for i, f := range t.Fields {
			switch v := f.(type) {
			case IntField:
				ts.intHists[i].AddValue(int64(v.Value))
			case StringField:
				ts.strHists[i].AddValue(v.Value)
			}
		}
	}
	return ts, iter.Close()
}

// EstimateScanCost estimates the cost of a full sequential scan, assuming
// whole-page reads and a cold buffer pool.
func (ts *TableStats) EstimateScanCost() float64 {
	return float64(ts.numPages) * CostPerPage
}

// EstimateCardinality returns the expected number of rows surviving a
// predicate with the given selectivity.
func (ts *TableStats) EstimateCardinality(selectivity float64) int {
	return int(selectivity * float64(ts.numTuples))
}

// EstimateSelectivity looks up the named field's histogram and estimates
// the selectivity of "field op value".
func (ts *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	idx, err := findFieldInTd(FieldType{Fname: field, Ftype: UnknownType}, ts.desc)
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case IntField:
		h, ok := ts.intHists[idx]
		if !ok {
			return 0, DbError{TypeMismatchError, fmt.Sprintf("field %s is not an int column", field)}
		}
		return h.EstimateSelectivity(op, int64(v.Value)), nil
	case StringField:
		h, ok := ts.strHists[idx]
		if !ok {
			return 0, DbError{TypeMismatchError, fmt.Sprintf("field %s is not a string column", field)}
		}
		return h.EstimateSelectivity(op, v.Value), nil
	}
	return 0, DbError{TypeMismatchError, fmt.Sprintf("unsupported value type %T", value)}
}
