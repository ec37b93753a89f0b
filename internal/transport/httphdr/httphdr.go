// Package httphdr injects and extracts the wire Context into and out of
// plain HTTP headers, for compensable services fronted by net/http
// rather than gRPC.
package httphdr

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/tylooteam/tyloo/internal/txcore"
)

const (
	// XidHeader carries the global transaction id.
	XidHeader = "X-Tyloo-Xid"
	// BranchIDHeader carries the current branch id.
	BranchIDHeader = "X-Tyloo-Branch-Id"
	// StatusHeader carries the numeric Status (spec.md §6: 1=TRYING,
	// 2=CONFIRMING, 3=CANCELLING).
	StatusHeader = "X-Tyloo-Status"
)

// Inject sets wc's three fields as headers on h.
func Inject(h http.Header, wc txcore.Context) {
	h.Set(XidHeader, wc.Xid.String())
	h.Set(BranchIDHeader, wc.BranchID.String())
	h.Set(StatusHeader, strconv.Itoa(int(wc.Status)))
}

// Extract reads a wire Context out of h. ok is false if XidHeader is
// absent — the caller treats that as "no inbound context," matching
// spec.md §4.3's getTylooContext returning null.
func Extract(h http.Header) (wc txcore.Context, ok bool, err error) {
	xidStr := h.Get(XidHeader)
	if xidStr == "" {
		return txcore.Context{}, false, nil
	}

	xid, err := uuid.FromString(xidStr)
	if err != nil {
		return txcore.Context{}, false, fmt.Errorf("httphdr: parse %s: %w", XidHeader, err)
	}

	branchID, err := uuid.FromString(h.Get(BranchIDHeader))
	if err != nil {
		return txcore.Context{}, false, fmt.Errorf("httphdr: parse %s: %w", BranchIDHeader, err)
	}

	statusNum, err := strconv.Atoi(h.Get(StatusHeader))
	if err != nil {
		return txcore.Context{}, false, fmt.Errorf("httphdr: parse %s: %w", StatusHeader, err)
	}

	return txcore.Context{Xid: xid, BranchID: branchID, Status: txcore.Status(statusNum)}, true, nil
}
