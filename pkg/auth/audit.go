package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/nasa-explorer/explorer/pkg/contextkeys"
	"github.com/nasa-explorer/explorer/pkg/observability"
)

// AuditLog is one security relevant event
type AuditLog struct {
	Action    string
	Status    string
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	RequestID string
	Reason    string
	CreatedAt time.Time
}

// AuditLogger writes security audit events to the structured log
type AuditLogger struct {
	logger *observability.Logger
	ips    *ClientIPResolver
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.WithField("component", "audit"),
		now:    time.Now,
	}
}

// WithClientIPs sets the resolver used for the ip_address field
func (al *AuditLogger) WithClientIPs(res *ClientIPResolver) *AuditLogger {
	al.ips = res
	return al
}

// LogAction records an audit event. Failures and denials are logged at
// warn level, everything else at info.
func (al *AuditLogger) LogAction(ctx context.Context, log *AuditLog) error {
	if log.Action == "" {
		return fmt.Errorf("action is required")
	}
	if log.Status == "" {
		return fmt.Errorf("status is required")
	}

	log.CreatedAt = al.now().UTC()
	if log.RequestID == "" {
		log.RequestID = contextkeys.GetRequestID(ctx)
	}

	fields := map[string]interface{}{
		"action":     log.Action,
		"status":     log.Status,
		"ip_address": log.IPAddress,
		"created_at": log.CreatedAt,
	}
	if log.UserID != "" {
		fields["user_id"] = log.UserID
	}
	if log.Email != "" {
		fields["email"] = log.Email
	}
	if log.UserAgent != "" {
		fields["user_agent"] = log.UserAgent
	}
	if log.RequestID != "" {
		fields["request_id"] = log.RequestID
	}
	if log.Reason != "" {
		fields["reason"] = log.Reason
	}

	entry := al.logger.WithFields(fields)
	if log.Status == StatusSuccess {
		entry.Info("audit event")
	} else {
		entry.Warn("audit event")
	}
	return nil
}

// LogFromRequest creates an audit log from an HTTP request
func (al *AuditLogger) LogFromRequest(r *http.Request, action, status, userID, email string, reason error) error {
	log := &AuditLog{
		Action:    action,
		Status:    status,
		UserID:    userID,
		Email:     email,
		IPAddress: al.ips.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if reason != nil {
		log.Reason = reason.Error()
	}
	return al.LogAction(r.Context(), log)
}

// ClientIP returns the connection address of r. Forwarding headers are
// ignored; use a ClientIPResolver with trusted proxies to honor them.
func ClientIP(r *http.Request) string {
	return (*ClientIPResolver)(nil).ClientIP(r)
}

// ClientIPResolver derives the client address from X-Forwarded-For and
// X-Real-IP, but only when the request arrives from a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses trustedProxies as CIDRs or bare addresses
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		res.trusted = append(res.trusted, prefix)
	}
	return res, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ClientIP returns the client address for r. Forwarded hops are walked from
// the nearest one outwards and the first untrusted hop wins. A nil resolver
// trusts nobody.
func (res *ClientIPResolver) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if res == nil || !res.isTrusted(remote) {
		return remote
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !res.isTrusted(hop) {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remote
}

func (res *ClientIPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Audit action constants
const (
	ActionUserRegister      = "user.register"
	ActionUserList          = "user.list"
	ActionAuthSuccess       = "auth.success"
	ActionAuthFailure       = "auth.failure"
	ActionTokenRejected     = "token.rejected"
	ActionRateLimitExceeded = "ratelimit.exceeded"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
