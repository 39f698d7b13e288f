package timecode

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00.000"},
		{5000, "00:00:05.000"},
		{61001, "00:01:01.001"},
		{3599999, "00:59:59.999"},
		{3600000, "01:00:00.000"},
		{86400000, "24:00:00.000"},
		{360000000, "100:00:00.000"},
		{-5, "00:00:00.000"},
	}
	for _, c := range cases {
		if got := Format(c.ms); got != c.want {
			t.Errorf("Format(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

// Lexicographic order follows numeric order only while the hour field stays
// at two digits, i.e. below 100h ("100:00:00.000" sorts before "99:...").
func TestFormatMonotonic(t *testing.T) {
	const hundredHours = int64(100 * 3600 * 1000)
	prev := Format(0)
	for ms := int64(1); ms < 400000; ms += 997 {
		cur := Format(ms)
		if cur < prev {
			t.Fatalf("Format(%d) = %q sorts before previous %q", ms, cur, prev)
		}
		prev = cur
	}
	prev = Format(hundredHours - 400000)
	for ms := hundredHours - 399999; ms < hundredHours; ms += 997 {
		cur := Format(ms)
		if cur < prev {
			t.Fatalf("Format(%d) = %q sorts before previous %q", ms, cur, prev)
		}
		prev = cur
	}
	if got := Format(hundredHours); got != "100:00:00.000" {
		t.Errorf("Format(100h) = %q", got)
	}
}

func TestFormatDeterministic(t *testing.T) {
	if Format(123456) != Format(123456) {
		t.Fatal("Format is not deterministic")
	}
}
