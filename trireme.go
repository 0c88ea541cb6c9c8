// Package trireme bridges byte-stream I/O layers and TLS record engines. The
// security package holds the session adapter itself; this package ships the
// event-loop runtime the adapter is driven on and convenience constructors.
package trireme

import (
	"github.com/linearregression/trireme/security"
)

// NewClientConnection builds a client-side session adapter. serverName and
// serverPort feed the engine's SNI and session hints at Init time.
func NewClientConnection(rt security.Runtime, serverName string, serverPort int, options ...security.Option) (conn *security.Connection, err error) {
	conn, err = security.NewConnection(rt, security.RoleClient, serverName, serverPort, options...)
	return
}

// NewServerConnection builds a server-side session adapter.
func NewServerConnection(rt security.Runtime, options ...security.Option) (conn *security.Connection, err error) {
	conn, err = security.NewConnection(rt, security.RoleServer, "", 0, options...)
	return
}
