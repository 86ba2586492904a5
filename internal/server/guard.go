package server

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/brogergvhs/mangasrc/internal/errs"
)

// publicHost fails when host names or resolves to an address the image
// relay must not reach: loopback, private, link-local or unspecified.
func publicHost(ctx context.Context, host string) error {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: host %s is not public", errs.ErrInvalidInput, host)
	}

	var ips []net.IP
	if ip := net.ParseIP(h); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, h)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %w", errs.ErrTransportExhausted, host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	for _, ip := range ips {
		if !routable(ip) {
			return fmt.Errorf("%w: host %s resolves to %s", errs.ErrInvalidInput, host, ip)
		}
	}

	return nil
}

func routable(ip net.IP) bool {
	return !ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsUnspecified()
}
