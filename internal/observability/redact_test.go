package observability

import "testing"

func TestMaskSecrets(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "***"},
		{"abc", "***"},
		{"abcdef", "***"},
		{"abcdefg", "abc****"},
		{"supersecret", "sup********"},
	}
	for _, tc := range cases {
		if got := MaskSecrets(tc.in); got != tc.want {
			t.Errorf("MaskSecrets(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
