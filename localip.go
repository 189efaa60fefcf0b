package main

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultProbeAddr = "8.8.8.8:80"

var loopbackIP = net.IPv4(127, 0, 0, 1)

// LocalIPResolver finds the address the host would use for outbound traffic.
// Dialing UDP only binds a local endpoint, nothing is sent to ProbeAddr.
type LocalIPResolver struct {
	ProbeAddr string
	Timeout   time.Duration
	Dial      func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewLocalIPResolver(probeAddr string) *LocalIPResolver {
	if probeAddr == "" {
		probeAddr = defaultProbeAddr
	}
	d := &net.Dialer{}
	return &LocalIPResolver{
		ProbeAddr: probeAddr,
		Timeout:   2 * time.Second,
		Dial:      d.DialContext,
	}
}

func (r *LocalIPResolver) Resolve(ctx context.Context) (net.IP, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	conn, err := r.Dial(ctx, "udp4", r.ProbeAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return nil, fmt.Errorf("no usable local address for %s (got %v)", r.ProbeAddr, conn.LocalAddr())
	}
	return addr.IP, nil
}

// Discover is Resolve with the loopback fallback. The fallback changes which
// hostnames the certificate is good for, so it is always logged.
func (r *LocalIPResolver) Discover(ctx context.Context) net.IP {
	ip, err := r.Resolve(ctx)
	if err != nil {
		log.WithError(err).WithField("probe", r.ProbeAddr).Warnln("local IP discovery failed, using", loopbackIP)
		return loopbackIP
	}
	log.WithField("ip", ip.String()).Debugln("discovered local IP")
	return ip
}
