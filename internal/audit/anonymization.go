// Package audit provides append-only audit logging for administrative score
// operations, with request metadata capture and IP anonymization.
package audit

import (
	"net"
	"strings"
	"time"
)

// IPRetentionDays is how long audit log entries keep the full client IP
// before the anonymization job truncates it.
const IPRetentionDays = 90

// Anonymization masks: IPv4 keeps the /24 network, IPv6 keeps the /48
// prefix. Both are coarse enough to not identify a client while still
// supporting network-level incident analysis.
var (
	ipv4AnonymizationMask = net.CIDRMask(24, 32)
	ipv6AnonymizationMask = net.CIDRMask(48, 128)
)

// AnonymizeIP truncates an IP address to its anonymization prefix.
// Returns the empty string for unparseable input, so a malformed stored
// value degrades to "no IP" rather than surviving anonymization.
func AnonymizeIP(ipStr string) string {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(ipv4AnonymizationMask).String()
	}
	return ip.Mask(ipv6AnonymizationMask).String()
}

// IPAnonymizationCutoff returns the moment before which stored entries are
// due for IP anonymization.
func IPAnonymizationCutoff() time.Time {
	return time.Now().UTC().AddDate(0, 0, -IPRetentionDays)
}
