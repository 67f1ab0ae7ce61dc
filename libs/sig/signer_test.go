package sig

import (
	"bytes"
	"testing"
)

func TestSigner(t *testing.T) {
	_, err := NewSigner(nil, nil)
	if err == nil {
		t.Error("Expected error on nil keys")
	}

	s1, err := NewSigner([][]byte{[]byte("key1")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSigner([][]byte{[]byte("key2")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s3, err := NewSigner([][]byte{[]byte("key2"), []byte("key1")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("foobar")

	sig, err := s1.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) == 0 {
		t.Fatal("Zero length signature")
	}

	if !s1.Verify(msg, sig) {
		t.Fatalf("Signature did not verify: %+v", sig)
	}

	// Different key should not verify
	if s2.Verify(msg, sig) {
		t.Fatal("Different key should not verify")
	}

	// Old keys should still verify (key rotation)
	if !s3.Verify(msg, sig) {
		t.Fatal("Old key did not verify")
	}

	// First key should be considered latest and signatures deterministic
	sig1, err := s2.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := s3.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Fatal("Expected signatures by the same latest key to match")
	}

	// Tampered message should not verify
	if s1.Verify([]byte("foobaz"), sig) {
		t.Fatal("Tampered message should not verify")
	}
}
