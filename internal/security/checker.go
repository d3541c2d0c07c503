package security

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/feedwatch/feedwatch/internal/config"
)

const dialTimeout = 10 * time.Second

// Warning is one audit finding about the loaded configuration.
type Warning struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`

	// Level is "warning" or "info".
	Level string `json:"level"`

	// Detail explains the finding and what to do about it.
	Detail string `json:"detail"`
}

// Audit inspects cfg for insecure choices and returns findings. It never
// blocks startup; callers log the warnings and continue.
func Audit(cfg *config.Config) []Warning {
	var out []Warning

	for _, src := range cfg.Sources {
		if u, err := url.Parse(src.URL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			out = append(out, Warning{
				Key:    "plain_http:" + src.Name,
				Level:  "warning",
				Detail: fmt.Sprintf("source %q polls %s over plain HTTP; listener counts and any credentials travel unencrypted", src.Name, u.Host),
			})
		}
		if src.TLS.InsecureSkipVerify {
			out = append(out, Warning{
				Key:    "insecure_skip_verify:" + src.Name,
				Level:  "warning",
				Detail: fmt.Sprintf("source %q disables TLS certificate verification; anyone on the path can impersonate the directory", src.Name),
			})
		}
	}

	if cfg.Server.APIKeyEnv == "" {
		out = append(out, Warning{
			Key:    "api_unauthenticated",
			Level:  "info",
			Detail: "no server.api_key_env configured; the status API accepts unauthenticated requests",
		})
	} else if cfg.Server.APIKey() == "" {
		out = append(out, Warning{
			Key:    "api_key_unresolved",
			Level:  "warning",
			Detail: fmt.Sprintf("server.api_key_env names %q but the variable is empty; the status API accepts unauthenticated requests", cfg.Server.APIKeyEnv),
		})
	}

	for _, wh := range cfg.Notify.Webhooks {
		if wh.URLEnv == "" && strings.Contains(wh.URL, "hooks.") {
			out = append(out, Warning{
				Key:    "webhook_url_inline:" + wh.Name,
				Level:  "info",
				Detail: fmt.Sprintf("webhook %q carries its URL inline; webhook URLs embed a secret, prefer url_env", wh.Name),
			})
		}
	}

	return out
}

// CertStatus describes the TLS leaf certificate of one HTTPS source.
type CertStatus struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	AuthType string `json:"auth_type"`

	// Status is one of: valid | expiring | expired | unreachable.
	Status string `json:"status"`

	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
	DaysLeft int    `json:"days_left"`
}

// CheckCert dials the TLS endpoint for the given source and returns a
// CertStatus describing the leaf certificate.
//
// Returns nil for non-HTTPS sources, since there is no certificate to
// inspect. Uses a 10-second dial timeout so a slow host does not stall the
// polling loop.
func CheckCert(ctx context.Context, src config.Source) *CertStatus {
	u, err := url.Parse(src.URL)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		Source:   src.Name,
		URL:      src.URL,
		AuthType: src.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port in the URL, append the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}

	return cs
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
