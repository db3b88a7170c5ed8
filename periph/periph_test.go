package periph

import (
	"errors"
	"testing"

	"devicecode-periph/errcode"
)

func TestClaimIsExclusive(t *testing.T) {
	k := Key{Class: "sai"}
	defer Release(k)

	if err := Claim(k); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !Claimed(k) {
		t.Fatal("key not marked claimed")
	}
	err := Claim(k)
	if !errors.Is(err, errcode.Busy) {
		t.Fatalf("second claim: got %v, want busy", err)
	}

	Release(k)
	Release(k) // idempotent
	if Claimed(k) {
		t.Fatal("key still claimed after release")
	}
	if err := Claim(k); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	a := Key{Class: "timer", Group: 0, Index: 0}
	b := Key{Class: "timer", Group: 0, Index: 1}
	defer Release(a)
	defer Release(b)
	if err := Claim(a); err != nil {
		t.Fatal(err)
	}
	if err := Claim(b); err != nil {
		t.Fatalf("distinct key rejected: %v", err)
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{Class: "sai", Group: 1}).String(); got != "sai1" {
		t.Fatalf("sai key = %q", got)
	}
	if got := (Key{Class: "timer", Group: 1, Index: 0}).String(); got != "timer1.0" {
		t.Fatalf("timer key = %q", got)
	}
}
