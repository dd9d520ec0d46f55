// Package netif reports uplink state from the station interface.
package netif

import (
	"context"
	"net"

	"github.com/bft-labs/wifiship/internal/ports"
)

// Interface is the subset of net.Interface the link check needs.
type Interface interface {
	Up() bool
	Addrs() ([]net.Addr, error)
}

type osInterface struct{ *net.Interface }

func (i osInterface) Up() bool { return i.Flags&net.FlagUp != 0 }

// Lookup finds an interface by name.
type Lookup func(name string) (Interface, error)

func osLookup(name string) (Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return osInterface{ifi}, nil
}

// Link implements ports.Link. The link is up when the interface is
// administratively up and holds a routable unicast address, which on a
// station interface means it is associated and has a lease.
type Link struct {
	iface  string
	lookup Lookup
	logger ports.Logger
}

// NewLink returns a link check for iface. An empty name yields a link that
// is always up, for wired or test setups.
func NewLink(iface string, logger ports.Logger) *Link {
	return &Link{iface: iface, lookup: osLookup, logger: logger}
}

// WithLookup replaces interface lookup.
func (l *Link) WithLookup(fn Lookup) *Link {
	l.lookup = fn
	return l
}

// Up implements ports.Link.
func (l *Link) Up(ctx context.Context) bool {
	if l.iface == "" {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	ifi, err := l.lookup(l.iface)
	if err != nil {
		l.logger.Debug("link lookup failed", ports.String("iface", l.iface), ports.Err(err))
		return false
	}
	if !ifi.Up() {
		return false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		l.logger.Debug("link address lookup failed", ports.String("iface", l.iface), ports.Err(err))
		return false
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return true
	}
	return false
}
