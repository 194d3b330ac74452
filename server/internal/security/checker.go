package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/facultyload/facultyload/server/internal/config"
)

// Certificate states.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringWithinDays marks a certificate as expiring.
const expiringWithinDays = 30

const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate presented by the upstream.
type CertStatus struct {
	Endpoint  string    `json:"endpoint"`
	AuthType  string    `json:"auth_type"`
	Status    string    `json:"status"`
	DaysLeft  int       `json:"days_left"`
	Issuer    string    `json:"issuer,omitempty"`
	NotAfter  string    `json:"not_after,omitempty"` // RFC3339
	CheckedAt time.Time `json:"checked_at"`
}

// Check dials the TLS endpoint of the source and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for non-HTTPS endpoints; there is no certificate to inspect.
// The dial is bounded by a 10-second timeout.
func Check(ctx context.Context, src config.SourceConfig) *CertStatus {
	u, err := url.Parse(src.URL)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		Endpoint:  u.Scheme + "://" + u.Host + u.Path,
		AuthType:  src.Auth.Mode,
		CheckedAt: time.Now().UTC(),
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))
	cs.Status = statusForDays(daysLeft)
	return cs
}

func statusForDays(daysLeft float64) string {
	switch {
	case daysLeft <= 0:
		return StatusExpired
	case daysLeft <= expiringWithinDays:
		return StatusExpiring
	default:
		return StatusValid
	}
}

// Tracker keeps the most recent CertStatus of the configured source.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	latest *CertStatus
}

// Refresh runs Check and stores its result. A nil result (plain HTTP or no
// source configured) clears the previous status.
func (t *Tracker) Refresh(ctx context.Context, src config.SourceConfig) *CertStatus {
	cs := Check(ctx, src)
	t.mu.Lock()
	t.latest = cs
	t.mu.Unlock()
	return cs
}

// Latest returns a copy of the last stored status, or nil.
func (t *Tracker) Latest() *CertStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return nil
	}
	cp := *t.latest
	return &cp
}
