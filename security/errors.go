package security

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrCipherSuites       = errors.Define("security: cipher suites rejected")
	ErrPeerUnverified     = errors.Define("security: peer is unverified")
	ErrPeerNoCertificates = errors.Define("security: peer has no certificates")
	ErrNoTrustedCAs       = errors.Define("security: no trusted CAs")
	ErrPeerNotTrusted     = errors.Define("security: peer certificate is not trusted")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "security"
)

// Inbound error codes carried on the read path. Zero means none; CodeEOF is
// the sentinel delivered when the inbound side closes cleanly.
const (
	CodeNone = 0
	CodeEOF  = -1
)
