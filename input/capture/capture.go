// Package capture opens capture sources by address scheme
package capture

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/relex/frame-agent/base"
)

var (
	openersMutex   sync.RWMutex
	openers        = map[string]base.CaptureOpener{}
	fallbackOpener base.CaptureOpener
)

// RegisterOpener registers the opener of addresses in the given scheme, e.g. "synthetic" for "synthetic://..."
func RegisterOpener(scheme string, opener base.CaptureOpener) {
	openersMutex.Lock()
	defer openersMutex.Unlock()
	if _, exists := openers[scheme]; exists {
		panic("duplicate capture scheme: " + scheme)
	}
	openers[scheme] = opener
}

// RegisterFallbackOpener registers the opener of addresses without a registered scheme, e.g. RTSP URLs and video files
func RegisterFallbackOpener(opener base.CaptureOpener) {
	openersMutex.Lock()
	defer openersMutex.Unlock()
	fallbackOpener = opener
}

// Schemes lists registered schemes
func Schemes() []string {
	openersMutex.RLock()
	defer openersMutex.RUnlock()
	schemes := make([]string, 0, len(openers))
	for s := range openers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open opens a capture source by address
//
// Failures are wrapped in base.ErrSourceUnavailable.
func Open(address string, options base.CaptureOptions) (base.CaptureSource, error) {
	opener := lookupOpener(address)
	if opener == nil {
		return nil, fmt.Errorf("%w: no capture backend for %q, available schemes: %v", base.ErrSourceUnavailable, address, Schemes())
	}
	source, err := opener(address, options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", base.ErrSourceUnavailable, err)
	}
	return source, nil
}

// Opener returns Open as a base.CaptureOpener
func Opener() base.CaptureOpener {
	return Open
}

func lookupOpener(address string) base.CaptureOpener {
	openersMutex.RLock()
	defer openersMutex.RUnlock()
	if i := strings.Index(address, "://"); i > 0 {
		if opener, ok := openers[strings.ToLower(address[:i])]; ok {
			return opener
		}
	}
	return fallbackOpener
}

// ParseAddress parses the address of a registered scheme
func ParseAddress(address string) (*url.URL, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid capture address %q: %w", address, err)
	}
	return u, nil
}
