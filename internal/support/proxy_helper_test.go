package support

import (
	"reflect"
	"testing"
)

func TestIsValidProxyAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"simple", "1.2.3.4:80", true},
		{"five digit port", "10.0.0.1:65535", true},
		{"three digit octets", "192.168.100.200:3128", true},
		{"missing port", "1.2.3.4", false},
		{"six digit port", "1.2.3.4:123456", false},
		{"four digit octet", "1234.2.3.4:80", false},
		{"three octets", "1.2.3:80", false},
		{"hostname", "example.com:80", false},
		{"trailing text", "1.2.3.4:80 extra", false},
		{"credentials", "1.2.3.4:80:user:pass", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidProxyAddress(tt.address); got != tt.valid {
				t.Fatalf("IsValidProxyAddress(%q) = %t, want %t", tt.address, got, tt.valid)
			}
		})
	}
}

func TestFilterProxyAddresses(t *testing.T) {
	input := []string{" 1.2.3.4:80 ", "junk", "5.6.7.8:8080", "9.9.9.9:", "1.2.3.4:80"}
	want := []string{"1.2.3.4:80", "5.6.7.8:8080", "1.2.3.4:80"}

	if got := FilterProxyAddresses(input); !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterProxyAddresses returned %v, want %v", got, want)
	}
}

func TestProxyHost(t *testing.T) {
	if got := ProxyHost("203.0.113.5:3128"); got != "203.0.113.5" {
		t.Fatalf("ProxyHost returned %q, want 203.0.113.5", got)
	}
	if got := ProxyHost("garbage"); got != "" {
		t.Fatalf("ProxyHost returned %q for garbage input, want empty", got)
	}
}
