package chain

import "testing"

func TestEntropyDeterministic(t *testing.T) {
	a := Env{Height: 120, TxIndex: 3, Sender: "alice"}
	b := Env{Height: 120, TxIndex: 3, Sender: "bob"}
	if a.Entropy() != b.Entropy() {
		t.Fatalf("entropy must depend only on height and ordinal")
	}
	if a.Entropy() == (Env{Height: 120, TxIndex: 4}).Entropy() {
		t.Fatalf("ordinal should change the value")
	}
	if a.Entropy() == (Env{Height: 121, TxIndex: 3}).Entropy() {
		t.Fatalf("height should change the value")
	}
}
