package engine

import (
	"net/netip"
	"strings"

	"banalert/internal/config"
)

// IgnoreList holds addresses whose bans are accepted but never forwarded.
type IgnoreList struct {
	prefixes []netip.Prefix
}

func buildIgnoreList(entries []string) *IgnoreList {
	l := &IgnoreList{}
	for _, e := range entries {
		p, err := config.ParseIPOrPrefix(e)
		if err != nil {
			continue
		}
		l.prefixes = append(l.prefixes, p)
	}
	return l
}

// Match accepts a bare address or an address with a port. Anything that
// does not parse as an address never matches.
func (l *IgnoreList) Match(ip string) bool {
	if l == nil || len(l.prefixes) == 0 {
		return false
	}
	addr, ok := parseAddr(ip)
	if !ok {
		return false
	}
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap(), true
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	return netip.Addr{}, false
}
