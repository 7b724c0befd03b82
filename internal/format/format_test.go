package format

import "testing"

func TestNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1 000"},
		{12345, "12 345"},
		{1234567, "1 234 567"},
	}

	for _, tt := range tests {
		if got := Number(tt.in); got != tt.want {
			t.Errorf("Number(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		value, total int
		want         string
	}{
		{0, 0, "0%"},
		{5, 0, "0%"},
		{1, 4, "25.0%"},
		{1, 3, "33.3%"},
		{2, 3, "66.7%"},
		{3, 3, "100.0%"},
	}

	for _, tt := range tests {
		if got := Percent(tt.value, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %q, want %q", tt.value, tt.total, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(10, 0); got != "0.0" {
		t.Errorf("Ratio(10, 0) = %q, want %q", got, "0.0")
	}
	if got := Ratio(10, 4); got != "2.5" {
		t.Errorf("Ratio(10, 4) = %q, want %q", got, "2.5")
	}
}

func TestText(t *testing.T) {
	if got := Text("  "); got != "-" {
		t.Errorf("Text(blank) = %q, want %q", got, "-")
	}
	if got := Text("Louga"); got != "Louga" {
		t.Errorf("Text(Louga) = %q, want %q", got, "Louga")
	}
}
