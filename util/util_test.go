package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	cases := []struct{ v, b, up, down int }{
		{0, 4096, 0, 0},
		{1, 4096, 4096, 0},
		{4096, 4096, 4096, 4096},
		{4097, 4096, 8192, 4096},
	}
	for _, c := range cases {
		if got := Roundup(c.v, c.b); got != c.up {
			t.Errorf("Roundup(%d,%d) = %d, want %d", c.v, c.b, got, c.up)
		}
		if got := Rounddown(c.v, c.b); got != c.down {
			t.Errorf("Rounddown(%d,%d) = %d, want %d", c.v, c.b, got, c.down)
		}
	}
}

func TestMinMax(t *testing.T) {
	if Min(3, 5) != 3 {
		t.Fatal("Min wrong")
	}
	if Max(3, 5) != 5 {
		t.Fatal("Max wrong")
	}
}

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 0x1122334455667788)
	if got := Readn(buf, 8, 0); got != 0x1122334455667788 {
		t.Fatalf("got %x", got)
	}
	Writen(buf, 4, 8, 42)
	if got := Readn(buf, 4, 8); got != 42 {
		t.Fatalf("got %d", got)
	}
	Writen(buf, 1, 12, 200)
	if got := Readn(buf, 1, 12); got != 200 {
		t.Fatalf("got %d", got)
	}
}

func TestReadnOutOfBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	buf := make([]uint8, 4)
	Readn(buf, 8, 0)
}
