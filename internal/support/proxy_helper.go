package support

import (
	"net"
	"regexp"
	"strings"
)

// proxyAddressRe is the only shape accepted into storage: four 1-3 digit octets and a 1-5 digit port.
var proxyAddressRe = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{1,5}$`)

func IsValidProxyAddress(address string) bool {
	return proxyAddressRe.MatchString(address)
}

// FilterProxyAddresses trims every candidate and keeps the ones shaped like ipv4:port.
// Order is preserved; duplicates are left to the caller.
func FilterProxyAddresses(candidates []string) []string {
	valid := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if IsValidProxyAddress(candidate) {
			valid = append(valid, candidate)
		}
	}
	return valid
}

// ProxyHost returns the ip part of an ip:port address, or "" when it cannot be split.
func ProxyHost(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return ""
	}
	return host
}
