package imath

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		a, b, want int
	}{
		{0, 16, 0},
		{1, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{64, 16, 4},
		{100, 32, 4},
	}
	for _, c := range cases {
		if got := CeilDiv(c.a, c.b); got != c.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		len, align, want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{61, 4, 64},
	}
	for _, c := range cases {
		if got := AlignUp(c.len, c.align); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.len, c.align, got, c.want)
		}
	}
}

func TestDivider(t *testing.T) {
	cases := []struct {
		w, h, start, want int
	}{
		{512, 512, 64, 8},
		{512, 512, NoStartResolution, 1},
		{512, 512, 512, 1},
		{512, 512, 256, 2},
		{1920, 1080, 64, 32},
		{1, 1, 64, 1},
	}
	for _, c := range cases {
		if got := Divider(c.w, c.h, c.start); got != c.want {
			t.Errorf("Divider(%d, %d, %d) = %d, want %d", c.w, c.h, c.start, got, c.want)
		}
	}
}

func TestRect(t *testing.T) {
	r := MakeRect(2, 3, 10, 8)
	if r.Width() != 8 || r.Height() != 5 {
		t.Fatalf("rect size = %dx%d, want 8x5", r.Width(), r.Height())
	}
	if !r.Contains(2, 3) || !r.Contains(9, 7) {
		t.Error("rect does not contain its corners")
	}
	if r.Contains(10, 7) || r.Contains(9, 8) || r.Contains(1, 3) {
		t.Error("rect contains pixels outside its bounds")
	}
}
