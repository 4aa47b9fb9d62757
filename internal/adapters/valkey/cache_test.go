package valkey

import "testing"

func TestNamespaced(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"tripplanner", "geocode:reverse:u0mbq2w8x", "tripplanner:geocode:reverse:u0mbq2w8x"},
		{"", "destinations:nearby:1", "destinations:nearby:1"},
	}
	for _, tt := range tests {
		if got := namespaced(tt.prefix, tt.key); got != tt.want {
			t.Errorf("namespaced(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}
