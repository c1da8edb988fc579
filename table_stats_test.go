package heapdb

import (
	"math"
	"path/filepath"
	"testing"
)

func TestIntHistogramUniform(t *testing.T) {
	h, err := NewIntHistogram(10, 0, 99)
	if err != nil {
		t.Fatalf("NewIntHistogram: %v", err)
	}
	for v := int64(0); v < 100; v++ {
		h.AddValue(v)
	}
	cases := []struct {
		op   BoolOp
		v    int64
		want float64
	}{
		{OpLt, 50, 0.5},
		{OpGt, 49, 0.5},
		{OpLe, 99, 1.0},
		{OpGe, 0, 1.0},
		{OpGt, 200, 0.0},
		{OpLt, -5, 0.0},
		{OpEq, 50, 0.01},
	}
	for _, c := range cases {
		got := h.EstimateSelectivity(c.op, c.v)
		if math.Abs(got-c.want) > 0.1 {
			t.Errorf("selectivity(%v %d) = %.3f, want about %.3f", c.op, c.v, got, c.want)
		}
	}
}

func TestIntHistogramSkewed(t *testing.T) {
	h, _ := NewIntHistogram(NumHistBins, 1, 1000)
	for i := 0; i < 900; i++ {
		h.AddValue(5)
	}
	for i := 0; i < 100; i++ {
		h.AddValue(900)
	}
	eqCommon := h.EstimateSelectivity(OpEq, 5)
	eqRare := h.EstimateSelectivity(OpEq, 900)
	if eqCommon <= eqRare {
		t.Errorf("common value should be more selective: %.4f vs %.4f", eqCommon, eqRare)
	}
	if got := h.EstimateSelectivity(OpGt, 500); math.Abs(got-0.1) > 0.05 {
		t.Errorf("selectivity(> 500) = %.3f, want about 0.1", got)
	}
}

func TestStringHistogram(t *testing.T) {
	h, err := NewStringHistogram()
	if err != nil {
		t.Fatalf("NewStringHistogram: %v", err)
	}
	if got := h.EstimateSelectivity(OpEq, "x"); got != 0.0 {
		t.Errorf("empty histogram estimated %.3f, want 0", got)
	}
	for i := 0; i < 90; i++ {
		h.AddValue("common")
	}
	for i := 0; i < 10; i++ {
		h.AddValue("rare")
	}
	common := h.EstimateSelectivity(OpEq, "common")
	rare := h.EstimateSelectivity(OpEq, "rare")
	if math.Abs(common-0.9) > 0.05 {
		t.Errorf("selectivity(common) = %.3f, want about 0.9", common)
	}
	if math.Abs(rare-0.1) > 0.05 {
		t.Errorf("selectivity(rare) = %.3f, want about 0.1", rare)
	}
}

func TestComputeTableStats(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "score", Ftype: IntType},
	}}
	bp, err := NewBufferPool(10)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "stats.dat"), td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	tid := NewTID()
	bp.BeginTransaction(tid)
	for i := int32(0); i < 100; i++ {
		name := "even"
		if i%2 == 1 {
			name = "odd"
		}
		tup := &Tuple{Desc: *td, Fields: []DBValue{StringField{name}, IntField{i}}}
		if err := hf.insertTuple(tup, tid); err != nil {
			t.Fatalf("insertTuple: %v", err)
		}
	}
	bp.CommitTransaction(tid)

	ts, err := ComputeTableStats(bp, hf)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}
	if got := ts.EstimateScanCost(); got != float64(hf.NumPages())*CostPerPage {
		t.Errorf("scan cost = %.0f, want %.0f", got, float64(hf.NumPages())*CostPerPage)
	}
	if got := ts.EstimateCardinality(0.5); got != 50 {
		t.Errorf("cardinality at 0.5 = %d, want 50", got)
	}
	sel, err := ts.EstimateSelectivity("score", OpLt, IntField{50})
	if err != nil {
		t.Fatalf("EstimateSelectivity: %v", err)
	}
	if math.Abs(sel-0.5) > 0.1 {
		t.Errorf("selectivity(score < 50) = %.3f, want about 0.5", sel)
	}
	sel, err = ts.EstimateSelectivity("name", OpEq, StringField{"even"})
	if err != nil {
		t.Fatalf("EstimateSelectivity: %v", err)
	}
	if math.Abs(sel-0.5) > 0.1 {
		t.Errorf("selectivity(name = even) = %.3f, want about 0.5", sel)
	}
	if _, err := ts.EstimateSelectivity("absent", OpEq, IntField{0}); err == nil {
		t.Errorf("selectivity of an unknown field should fail")
	}
	if _, err := ts.EstimateSelectivity("name", OpEq, IntField{0}); err == nil {
		t.Errorf("int probe of a string column should fail")
	}
}
