package semver

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want Result
	}{
		{"equal", "1.0.0", "1.0.0", Same},
		{"equal different lengths", "1.0", "1.0.0", Same},
		{"trailing zero segment equal", "1.2.0", "1.2", Same},
		{"v prefix stripped", "v2.0.0", "1.9.9", Newer},
		{"both prefixed", "v1.1.0", "v1.2.0", Older},
		{"major wins", "2.0.0", "1.99.99", Newer},
		{"minor wins", "1.3.0", "1.2.99", Newer},
		{"patch wins", "1.2.4", "1.2.3", Newer},
		{"numeric beats string length", "1.10.0", "1.9.0", Newer},
		{"non-numeric segment lexicographic", "1.0.beta", "1.0.alpha", Newer},
		{"mixed numeric and string", "1.0.1", "1.0.rc1", Older},
		{"empty both", "", "", Same},
		{"empty vs version", "", "1.0.0", Older},
		{"garbage both", "not-a-version", "not-a-version", Same},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Antisymmetry: Compare(a,b) must be the inverse of Compare(b,a).
func TestCompareAntisymmetric(t *testing.T) {
	versions := []string{"1.0.0", "1.0", "1.2.0", "v2.0.0", "1.9.9", "0.0.1", "10.0", "1.10.2"}
	for _, a := range versions {
		for _, b := range versions {
			ab := Compare(a, b)
			ba := Compare(b, a)
			if ab != -ba {
				t.Errorf("Compare(%q, %q) = %v but Compare(%q, %q) = %v", a, b, ab, b, a, ba)
			}
		}
	}
}

// Transitivity over well-formed dotted-numeric strings: a > b and b > c
// implies a > c.
func TestCompareTransitive(t *testing.T) {
	ordered := []string{"0.9", "1.0.0", "1.0.1", "1.2", "1.2.0.1", "1.10.0", "2.0.0", "10.1"}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if got := Compare(ordered[j], ordered[i]); got != Newer {
				t.Errorf("Compare(%q, %q) = %v, want Newer", ordered[j], ordered[i], got)
			}
		}
	}
}

func TestIsNewer(t *testing.T) {
	if !IsNewer("1.1.0", "1.0.0") {
		t.Error("IsNewer(1.1.0, 1.0.0) = false, want true")
	}
	if IsNewer("1.0.0", "1.0.0") {
		t.Error("IsNewer(1.0.0, 1.0.0) = true, want false")
	}
	if IsNewer("0.9.9", "1.0.0") {
		t.Error("IsNewer(0.9.9, 1.0.0) = true, want false")
	}
}
