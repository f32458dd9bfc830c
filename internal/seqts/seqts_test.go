package seqts

import "testing"

func TestGenerateDropContinue(t *testing.T) {
	r := New(1<<16, 60)

	out, ok := r.Generate(100)
	if !ok || out != 1 {
		t.Fatalf("Generate(100) = (%d, %v), want (1, true)", out, ok)
	}

	r.DropValue(101)

	out, ok = r.Generate(102)
	if !ok || out != 2 {
		t.Fatalf("Generate(102) = (%d, %v), want (2, true)", out, ok)
	}
}

func TestGenerateRejectsDroppedDuplicate(t *testing.T) {
	r := New(1<<16, 60)

	_, _ = r.Generate(100)
	r.DropValue(101)

	if _, ok := r.Generate(101); ok {
		t.Fatal("Generate(101) after DropValue(101) should be rejected")
	}
}

func TestGenerateMonotonicRun(t *testing.T) {
	r := New(1<<16, 60)

	prev, ok := r.Generate(5000)
	if !ok {
		t.Fatal("first Generate should succeed")
	}
	for in := uint64(5001); in < 5010; in++ {
		out, ok := r.Generate(in)
		if !ok {
			t.Fatalf("Generate(%d) unexpectedly rejected", in)
		}
		if out != prev+1 {
			t.Fatalf("Generate(%d) = %d, want %d", in, out, prev+1)
		}
		prev = out
	}
}

func TestWraparound(t *testing.T) {
	const max = 1 << 8
	r := New(max, 60)

	_, _ = r.Generate(max - 2)
	out, ok := r.Generate(max - 1)
	if !ok {
		t.Fatal("Generate should accept value before wrap")
	}
	out2, ok := r.Generate(0)
	if !ok {
		t.Fatal("Generate should accept value after wrap")
	}
	if out2 != (out+1)%max {
		t.Fatalf("wraparound output = %d, want %d", out2, (out+1)%max)
	}
}

func TestReinitSynthesizesAdvance(t *testing.T) {
	r := New(1<<16, 60)

	last, _ := r.Generate(100)
	r.Reinit()

	out, ok := r.Generate(9000)
	if !ok {
		t.Fatal("Generate after Reinit should succeed")
	}
	if out != last+1 {
		t.Fatalf("Generate after Reinit = %d, want %d", out, last+1)
	}
}

func TestTsRewriteReinitAdvancesBySampleRate(t *testing.T) {
	tr := NewTs(1<<32, 60, 90000)

	last, ok := tr.Generate(0, 1000)
	if !ok {
		t.Fatal("first Generate should succeed")
	}

	tr.Reinit(1000) // 1000ms since last accepted sample at t=0
	out, ok := tr.Generate(1000, 555555)
	if !ok {
		t.Fatal("Generate after Reinit should succeed")
	}
	want := last + 90000
	if out != want {
		t.Fatalf("Generate after Reinit = %d, want %d", out, want)
	}
}
