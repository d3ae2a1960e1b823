package flags

import "testing"

func TestBigramDetector(t *testing.T) {
	d := NewBigramDetector()

	cases := []struct {
		input string
		want  bool
	}{
		{"television", false},
		{"johnsmith", false},
		{"JohnSmith", false},
		{"interesting", false},
		{"xkqvzjwp", true},
		{"qzxwvkjq", true},
		{"xj29dk4qz", true}, // digits ignored, remaining letters score low
	}
	for _, tc := range cases {
		got, err := d.IsNonsense(tc.input)
		if err != nil {
			t.Errorf("IsNonsense(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("IsNonsense(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestBigramDetector_TooShort(t *testing.T) {
	d := NewBigramDetector()

	for _, input := range []string{"", "abc", "ab123"} {
		if _, err := d.IsNonsense(input); err == nil {
			t.Errorf("IsNonsense(%q): expected an error for short input", input)
		}
	}
}
