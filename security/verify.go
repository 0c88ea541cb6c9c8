package security

import (
	"crypto/x509"
	"strings"

	"github.com/brickingsoft/errors"
)

// TrustStore validates a presented certificate chain against a set of trusted
// roots. authType is the key-exchange derived algorithm name, see
// trustAlgorithm.
type TrustStore interface {
	VerifyClient(chain []*x509.Certificate, authType string) (err error)
	VerifyServer(chain []*x509.Certificate, authType string) (err error)
}

// NewCertPoolTrustStore builds a TrustStore over an x509 root pool.
// Certificates past the leaf are offered as intermediates.
func NewCertPoolTrustStore(roots *x509.CertPool) TrustStore {
	return &certPoolTrustStore{
		roots: roots,
	}
}

type certPoolTrustStore struct {
	roots *x509.CertPool
}

func (store *certPoolTrustStore) VerifyClient(chain []*x509.Certificate, authType string) (err error) {
	err = store.verify(chain, x509.ExtKeyUsageClientAuth)
	return
}

func (store *certPoolTrustStore) VerifyServer(chain []*x509.Certificate, authType string) (err error) {
	err = store.verify(chain, x509.ExtKeyUsageServerAuth)
	return
}

func (store *certPoolTrustStore) verify(chain []*x509.Certificate, usage x509.ExtKeyUsage) (err error) {
	if len(chain) == 0 {
		err = errors.From(ErrPeerNoCertificates, errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		return
	}
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	_, err = chain[0].Verify(x509.VerifyOptions{
		Roots:         store.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{usage},
	})
	return
}

// checkPeerAuthorization runs the manual peer checks the engine does not
// enforce itself. Failures are recorded as data, not raised: the upper layer
// reads VerifyError after the handshake-done callback and applies policy.
// A server that never asked for a client certificate accepts an anonymous
// peer silently.
func (conn *Connection) checkPeerAuthorization() {
	session, has := conn.engine.Session()
	if !has {
		if conn.role == RoleClient || conn.requestCert {
			conn.handleError(errors.From(ErrPeerUnverified, errors.WithMeta(errMetaPkgKey, errMetaPkgVal)))
		}
		return
	}

	chain, err := session.PeerCertificates()
	if err != nil {
		conn.log.Debug().Msg("peer is unverified")
		if conn.role == RoleClient || conn.requestCert {
			conn.handleError(err)
		}
		return
	}

	if len(chain) == 0 {
		conn.log.Debug().Msg("peer has no certificates")
		if conn.role == RoleClient || conn.requestCert {
			conn.handleError(errors.From(ErrPeerNoCertificates, errors.WithMeta(errMetaPkgKey, errMetaPkgVal)))
		}
		return
	}

	if conn.trustStore == nil {
		conn.handleError(errors.From(ErrNoTrustedCAs, errors.WithMeta(errMetaPkgKey, errMetaPkgVal)))
		return
	}

	algo := trustAlgorithm(session.CipherSuite())
	conn.log.Debug().
		Str("suite", session.CipherSuite()).
		Str("protocol", session.Protocol()).
		Str("algorithm", algo).
		Msg("checking peer trust")

	var verifyErr error
	if conn.role == RoleServer {
		verifyErr = conn.trustStore.VerifyClient(chain, algo)
	} else {
		verifyErr = conn.trustStore.VerifyServer(chain, algo)
	}
	if verifyErr != nil {
		conn.log.Debug().Err(verifyErr).Msg("peer failed trust check")
		conn.handleError(errors.From(
			ErrPeerNotTrusted,
			errors.WithWrap(verifyErr),
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		))
	}
}

// trustAlgorithm derives the trust-check algorithm name from the cipher-suite
// prefix. There is no simple rule for this; the table covers the known cases
// and a wrong pick makes the store check certificate attributes that might
// not be present.
func trustAlgorithm(suite string) (algo string) {
	switch {
	case strings.HasPrefix(suite, "TLS_ECDHE_ECDSA"):
		algo = "ECDHE_ECDSA"
	case strings.HasPrefix(suite, "TLS_ECDHE_RSA"):
		algo = "ECDHE_RSA"
	case strings.HasPrefix(suite, "TLS_ECDH_ECDSA"):
		algo = "ECDH_ECDSA"
	case strings.HasPrefix(suite, "TLS_DHE_DSS"):
		algo = "DHE_DSS"
	case strings.HasPrefix(suite, "TLS_DHE_RSA"):
		algo = "DHE_RSA"
	case strings.HasPrefix(suite, "TLS_ECDH_RSA"):
		algo = "ECDH_RSA"
	case strings.HasPrefix(suite, "SSL_RSA_EXPORT"):
		algo = "RSA_EXPORT"
	case strings.HasPrefix(suite, "TLS_RSA"), strings.HasPrefix(suite, "SSL_RSA"):
		algo = "RSA"
	default:
		algo = "UNKNOWN"
	}
	return
}
