package api

import (
	"fmt"
	"net"

	"dio64board/errcode"
)

// incrementAddr returns addr ("host:port") with the host's last IPv4
// octet incremented by delta, used to derive a linked secondary's address
// from the primary's (spec.md §4.4: "secondaries ... are the primary's IP
// with the last octet incremented by index").
func incrementAddr(addr string, delta int) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errcode.Wrap("api.incrementAddr", errcode.Argument, err)
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", errcode.Wrapf("api.incrementAddr", errcode.Argument, "not an IPv4 address: "+host)
	}
	last := int(ip[3]) + delta
	if last < 0 || last > 255 {
		return "", errcode.Wrapf("api.incrementAddr", errcode.Argument, "secondary octet out of range")
	}
	ip[3] = byte(last)
	return fmt.Sprintf("%s:%s", ip.String(), port), nil
}
