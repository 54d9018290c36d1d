package core

import (
	"errors"
	"testing"
)

// invalidate breaks the hash of the last block.
func invalidate(blocks []*Block) []*Block {
	out := CloneBlocks(blocks)
	out[len(out)-1].Data += "!"
	return out
}

func TestChooseChain(t *testing.T) {
	v := NewValidator(testDifficulty, nil)
	short := buildChain(t, 4, "a") // len 5
	long := buildChain(t, 6, "b")  // len 7
	tie := buildChain(t, 4, "c")   // len 5, different content

	cases := []struct {
		name          string
		local, remote []*Block
		want          []*Block
	}{
		{"same chain", short, short, short},
		{"longer remote wins", short, long, long},
		{"shorter remote loses", long, short, long},
		{"tie keeps local", short, tie, short},
		{"only remote valid", invalidate(long), short, short},
		{"only local valid", short, invalidate(long), short},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := v.ChooseChain(c.local, c.remote)
			if err != nil {
				t.Fatalf("ChooseChain: %v", err)
			}
			if len(got) != len(c.want) || got[len(got)-1].Hash != c.want[len(c.want)-1].Hash {
				t.Fatalf("chose chain with tip %s, want %s", got[len(got)-1].Hash, c.want[len(c.want)-1].Hash)
			}
		})
	}
}

func TestChooseChainBothInvalid(t *testing.T) {
	v := NewValidator(testDifficulty, nil)
	local := invalidate(buildChain(t, 2, "a"))
	remote := invalidate(buildChain(t, 3, "b"))

	got, err := v.ChooseChain(local, remote)
	if got != nil {
		t.Fatalf("expected no chain, got len %d", len(got))
	}
	if !errors.Is(err, ErrIrreconcilable) {
		t.Fatalf("expected ErrIrreconcilable, got %v", err)
	}
	var ie *IrreconcilableError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IrreconcilableError, got %T", err)
	}
	if ie.LocalLen != 3 || ie.RemoteLen != 4 {
		t.Fatalf("unexpected lengths %+v", ie)
	}
	if !errors.Is(ie.LocalErr, ErrHash) || !errors.Is(ie.RemoteErr, ErrHash) {
		t.Fatalf("unexpected causes: %v / %v", ie.LocalErr, ie.RemoteErr)
	}
}

func TestChooseChainEmptyRemote(t *testing.T) {
	v := NewValidator(testDifficulty, nil)
	local := buildChain(t, 1, "a")
	got, err := v.ChooseChain(local, nil)
	if err != nil {
		t.Fatalf("ChooseChain: %v", err)
	}
	if len(got) != len(local) {
		t.Fatalf("empty remote replaced local")
	}
}

func TestChainReconcile(t *testing.T) {
	c := newTestChain(t)
	remote := buildChain(t, 3, "remote")

	adopted, err := c.Reconcile(remote)
	if err != nil || !adopted {
		t.Fatalf("expected adoption, got adopted=%v err=%v", adopted, err)
	}
	if c.Len() != 4 || c.Tip().Hash != remote[3].Hash {
		t.Fatalf("ledger does not match remote")
	}

	// Reconciling with itself is a no-op.
	adopted, err = c.Reconcile(c.Blocks())
	if err != nil || adopted {
		t.Fatalf("self reconcile: adopted=%v err=%v", adopted, err)
	}

	remote[3].Data = "mutated after adoption"
	if c.Tip().Data == "mutated after adoption" {
		t.Fatalf("ledger aliases the adopted slice")
	}
}

func TestChainReconcileIrreconcilable(t *testing.T) {
	c := newTestChain(t)
	c.blocks = invalidate(buildChain(t, 2, "local"))
	before := c.Blocks()

	adopted, err := c.Reconcile(invalidate(buildChain(t, 4, "remote")))
	if adopted {
		t.Fatalf("adopted an invalid chain")
	}
	if !errors.Is(err, ErrIrreconcilable) {
		t.Fatalf("expected ErrIrreconcilable, got %v", err)
	}
	if c.Len() != len(before) || c.Tip().Hash != before[len(before)-1].Hash {
		t.Fatalf("ledger changed on irreconcilable state")
	}
}
