package codec

import "testing"

func TestStringRoundTrip(t *testing.T) {
	b, err := String.Encode("hello")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := String.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v != "hello" {
		t.Fatalf("got %q, want %q", v, "hello")
	}
}

func TestUint64RoundTripAndOrder(t *testing.T) {
	a, _ := Uint64.Encode(1)
	b, _ := Uint64.Encode(2)
	if !BytesLess(a, b) {
		t.Fatal("expected encoded byte order to match numeric order for uint64")
	}
	v, err := Uint64.Decode(a)
	if err != nil || v != 1 {
		t.Fatalf("Decode = (%d, %v), want (1, nil)", v, err)
	}
}

func TestInt64RoundTripAndOrderAcrossSign(t *testing.T) {
	neg, _ := Int64.Encode(-5)
	pos, _ := Int64.Encode(5)
	if !BytesLess(neg, pos) {
		t.Fatal("expected -5's encoding to sort before 5's")
	}
	v, err := Int64.Decode(neg)
	if err != nil || v != -5 {
		t.Fatalf("Decode = (%d, %v), want (-5, nil)", v, err)
	}
}

func TestBytesLess(t *testing.T) {
	cases := []struct {
		a, b []byte
		want bool
	}{
		{[]byte("a"), []byte("b"), true},
		{[]byte("b"), []byte("a"), false},
		{[]byte("a"), []byte("a"), false},
		{[]byte("ab"), []byte("abc"), true},
	}
	for _, c := range cases {
		if got := BytesLess(c.a, c.b); got != c.want {
			t.Fatalf("BytesLess(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
