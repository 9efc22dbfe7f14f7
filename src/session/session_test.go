package session

import (
	"errors"
	"testing"
)

func TestAppendAssignsContiguousSequence(t *testing.T) {
	h := NewHistory()

	for i := 0; i < 3; i++ {
		if err := h.Append(Iteration{Seq: i, Source: "v", Kind: KindRefinement}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	cur, err := h.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Seq != 2 {
		t.Errorf("Current.Seq = %d, want 2", cur.Seq)
	}
	if cur.CreatedAt.IsZero() {
		t.Error("Append should stamp CreatedAt")
	}
}

func TestAppendRejectsGapAndLeavesHistoryUntouched(t *testing.T) {
	h := NewHistory()
	if err := h.Append(Iteration{Seq: 0, Source: "a", Kind: KindInitial}); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := h.Append(Iteration{Seq: 2, Source: "b", Kind: KindRefinement})
	var seqErr *SequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected *SequenceError, got %v", err)
	}
	if seqErr.Want != 1 || seqErr.Got != 2 {
		t.Errorf("SequenceError = want %d got %d, expected want 1 got 2", seqErr.Want, seqErr.Got)
	}

	if h.Len() != 1 {
		t.Errorf("failed append mutated history: Len = %d", h.Len())
	}
	cur, _ := h.Current()
	if cur.Source != "a" {
		t.Errorf("latest changed after rejected append: %q", cur.Source)
	}
}

func TestAppendRejectsDuplicateSeq(t *testing.T) {
	h := NewHistory()
	if err := h.Append(Iteration{Seq: 0, Source: "a", Kind: KindInitial}); err != nil {
		t.Fatalf("append: %v", err)
	}
	var seqErr *SequenceError
	if err := h.Append(Iteration{Seq: 0, Source: "b", Kind: KindRefinement}); !errors.As(err, &seqErr) {
		t.Fatalf("expected *SequenceError for duplicate seq, got %v", err)
	}
}

func TestFirstAppendMustStartAtZero(t *testing.T) {
	h := NewHistory()
	var seqErr *SequenceError
	if err := h.Append(Iteration{Seq: 1, Source: "a", Kind: KindInitial}); !errors.As(err, &seqErr) {
		t.Fatalf("expected *SequenceError for seq 1 on empty history, got %v", err)
	}
	if err := h.Append(Iteration{Seq: 0, Source: "a", Kind: KindInitial}); err != nil {
		t.Fatalf("append seq 0: %v", err)
	}
}

func TestCurrentOnEmpty(t *testing.T) {
	h := NewHistory()
	if _, err := h.Current(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestResetClearsAndRenewsID(t *testing.T) {
	h := NewHistory()
	oldID := h.ID()
	if oldID == "" {
		t.Fatal("history should start with an id")
	}
	_ = h.Append(Iteration{Seq: 0, Source: "a", Kind: KindInitial})

	h.Reset()

	if h.Len() != 0 {
		t.Errorf("Len after Reset = %d", h.Len())
	}
	if h.NextSeq() != 0 {
		t.Errorf("NextSeq after Reset = %d, want 0", h.NextSeq())
	}
	if h.ID() == oldID {
		t.Error("Reset should renew the session id")
	}
	// numbering restarts at 0 for the next problem
	if err := h.Append(Iteration{Seq: 0, Source: "b", Kind: KindInitial}); err != nil {
		t.Errorf("append after reset: %v", err)
	}
	var seqErr *SequenceError
	h.Reset()
	if err := h.Append(Iteration{Seq: 1, Source: "c", Kind: KindInitial}); !errors.As(err, &seqErr) {
		t.Errorf("append seq 1 right after reset should fail, got %v", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	h := NewHistory()
	_ = h.Append(Iteration{Seq: 0, Source: "a", Kind: KindInitial})

	all := h.All()
	all[0].Source = "mutated"

	cur, _ := h.Current()
	if cur.Source != "a" {
		t.Errorf("All leaked internal storage: %q", cur.Source)
	}
}
