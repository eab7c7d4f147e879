package batch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var errPartial = errors.New("partial")

func TestSummarize(t *testing.T) {
	o := Summarize([]Result{
		NewOK("a"),
		NewError("b", errors.New("boom")),
		NewOK("c"),
	})
	if o.Written != 2 || o.Failed != 1 {
		t.Fatalf("unexpected counts %+v", o)
	}
	if len(o.Errors) != 1 || o.Errors[0] != "b: boom" {
		t.Errorf("unexpected errors %v", o.Errors)
	}
}

func TestSummarize_CapsErrors(t *testing.T) {
	var results []Result
	for i := range maxReportedErrors + 5 {
		results = append(results, NewError(fmt.Sprint(i), errors.New("x")))
	}
	o := Summarize(results)
	if o.Failed != maxReportedErrors+5 {
		t.Errorf("Failed = %d", o.Failed)
	}
	if len(o.Errors) != maxReportedErrors {
		t.Errorf("len(Errors) = %d, want %d", len(o.Errors), maxReportedErrors)
	}
}

func TestMerge(t *testing.T) {
	a := Outcome{Written: 2, Failed: 1, Errors: []string{"x: a"}}
	b := Outcome{Written: 3, Failed: 1, Errors: []string{"y: b"}}
	got := a.Merge(b)
	if got.Written != 5 || got.Failed != 2 || len(got.Errors) != 2 {
		t.Errorf("unexpected merge %+v", got)
	}
	if len(a.Errors) != 1 {
		t.Error("Merge mutated the receiver")
	}
}

func TestOutcome_Err(t *testing.T) {
	if err := (Outcome{Written: 3}).Err(errPartial); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := Outcome{Failed: 1, Errors: []string{"k: boom"}}.Err(errPartial)
	if !errors.Is(err, errPartial) || !strings.Contains(err.Error(), "k: boom") {
		t.Errorf("unexpected error %v", err)
	}

	if err := (Outcome{Failed: 1}).Err(errPartial); err != errPartial {
		t.Errorf("expected bare sentinel, got %v", err)
	}
}

func TestResult_Accessors(t *testing.T) {
	boom := errors.New("boom")
	r := NewError("k", boom)
	if r.ID() != "k" || r.Status() != StatusError || r.Err() != boom {
		t.Errorf("unexpected result %+v", r)
	}
	if ok := NewOK("k"); ok.Status() != StatusOK || ok.Err() != nil {
		t.Errorf("unexpected ok result %+v", ok)
	}
}
