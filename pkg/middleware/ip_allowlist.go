package middleware

import (
	"net"
	"net/http"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const decisionCacheSize = 1000

// IPAllowlistMiddleware rejects clients whose IP is not in the allowlist.
// Decisions are memoized in an LRU keyed by the raw client IP string.
type IPAllowlistMiddleware struct {
	exactIPs        map[string]bool // Normalized single addresses
	allowedNetworks []*net.IPNet    // CIDR blocks, most specific first
	appLogger       *zap.Logger
	decisions       *lru.Cache[string, bool]
}

// NewIPAllowlistMiddleware parses allowedIPs (addresses or CIDR blocks).
// Entries that parse as neither are logged and skipped.
func NewIPAllowlistMiddleware(allowedIPs []string, appLogger *zap.Logger) *IPAllowlistMiddleware {
	if appLogger == nil {
		appLogger = zap.NewNop()
	}
	decisions, _ := lru.New[string, bool](decisionCacheSize)

	m := &IPAllowlistMiddleware{
		exactIPs:  make(map[string]bool),
		appLogger: appLogger,
		decisions: decisions,
	}

	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				appLogger.Warn("Ignoring invalid allowlist CIDR", zap.String("entry", entry), zap.Error(err))
				continue
			}
			m.allowedNetworks = append(m.allowedNetworks, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			appLogger.Warn("Ignoring invalid allowlist address", zap.String("entry", entry))
			continue
		}
		m.exactIPs[ip.String()] = true
	}

	// Larger mask = more specific
	sort.Slice(m.allowedNetworks, func(i, j int) bool {
		maskI, _ := m.allowedNetworks[i].Mask.Size()
		maskJ, _ := m.allowedNetworks[j].Mask.Size()
		return maskI > maskJ
	})

	return m
}

// Middleware returns the Echo middleware enforcing the allowlist.
// An empty allowlist admits everyone.
func (m *IPAllowlistMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if publicPaths[path] {
				return next(c)
			}

			clientIP := c.RealIP()
			cached := m.decisions.Contains(clientIP)
			if !m.IsIPAllowed(clientIP) {
				// Only first-time denials are logged
				if !cached {
					m.appLogger.Warn("IP access denied - not in allowlist",
						zap.String("client_ip", clientIP),
						zap.String("path", path))
				}
				return reject(c, http.StatusForbidden, "IP_NOT_ALLOWED", "Access denied: IP not allowed")
			}
			return next(c)
		}
	}
}

// IsIPAllowed reports whether ipStr passes the allowlist
func (m *IPAllowlistMiddleware) IsIPAllowed(ipStr string) bool {
	if len(m.allowedNetworks) == 0 && len(m.exactIPs) == 0 {
		return true
	}
	if allowed, ok := m.decisions.Get(ipStr); ok {
		return allowed
	}

	allowed := false
	if ip := net.ParseIP(ipStr); ip != nil {
		allowed = m.exactIPs[ip.String()]
		for _, network := range m.allowedNetworks {
			if allowed {
				break
			}
			allowed = network.Contains(ip)
		}
	}

	m.decisions.Add(ipStr, allowed)
	return allowed
}

// CachedDecisions returns how many client IPs have a memoized decision
func (m *IPAllowlistMiddleware) CachedDecisions() int {
	return m.decisions.Len()
}
