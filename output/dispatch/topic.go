package dispatch

import (
	"net"
	"strings"

	"github.com/relex/frame-agent/defs"
)

// Topic builds the message topic of results: "stream.<stream_id>.analytic.<analytic_host>"
//
// Empty parts become "default". The analytic host is the analytic address without port.
func Topic(streamID string, analyticAddress string) string {
	return "stream." + topicPart(streamID) + ".analytic." + topicPart(AddressHost(analyticAddress))
}

// AddressHost strips the port and scheme from an address
func AddressHost(address string) string {
	if i := strings.Index(address, "://"); i >= 0 {
		address = address[i+3:]
	}
	if i := strings.IndexByte(address, '/'); i >= 0 {
		address = address[:i]
	}
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}

func topicPart(part string) string {
	if part == "" {
		return defs.DefaultTopicPart
	}
	return part
}
