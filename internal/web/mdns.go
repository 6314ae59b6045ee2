package web

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	// MDNSServiceType is advertised so the status page shows up in LAN browsers.
	MDNSServiceType = "_http._tcp"
	MDNSDomain      = "local."
)

// Advertisement is a registered mDNS service.
type Advertisement interface {
	Shutdown()
}

// Advertise registers the status page as instance on port.
func Advertise(instance string, port int) (Advertisement, error) {
	txt := []string{
		"path=/",
		"json=/index.json",
		"ws=/ws",
	}
	server, err := zeroconf.Register(instance, MDNSServiceType, MDNSDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return server, nil
}

// PortFromAddr extracts the TCP port of a listen address such as ":80".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("listen address %q has no fixed port", addr)
	}
	return port, nil
}
