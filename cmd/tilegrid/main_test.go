package main

import "testing"

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("-10, -20,30,40")
	if err != nil {
		t.Fatal(err)
	}
	if b.Min[0] != -10 || b.Min[1] != -20 || b.Max[0] != 30 || b.Max[1] != 40 {
		t.Fatalf("bound=%v", b)
	}

	for _, s := range []string{"", "1,2,3", "a,b,c,d", "10,0,0,10"} {
		if _, err := parseBBox(s); err == nil {
			t.Fatalf("%q: expected error", s)
		}
	}
}
