package services

import (
	"net"
	"strings"

	"github.com/mssola/user_agent"
)

const (
	LocalDevelopment = "Local Development"
	unknownValue     = "unknown"
	directReferrer   = "direct"
)

// VisitorInfo is the metadata stored with every click.
type VisitorInfo struct {
	IPAddress       string
	Device          string
	Browser         string
	OperatingSystem string
	Referrer        string
	Location        string
}

type locator interface {
	Lookup(ip string) (GeoLocation, bool)
}

type VisitorResolver struct {
	geo     locator
	maskIPs bool
}

// NewVisitorResolver accepts a nil geo service; locations then fall back to
// "unknown".
func NewVisitorResolver(geo *GeoIPService, maskIPs bool) *VisitorResolver {
	r := &VisitorResolver{maskIPs: maskIPs}
	if geo != nil {
		r.geo = geo
	}
	return r
}

// CaptureIP returns the form of ip that may be queued and stored. Loopback
// addresses are kept so Resolve still recognizes them.
func (r *VisitorResolver) CaptureIP(ip string) string {
	if !r.maskIPs || ip == "" || isLoopback(ip) {
		return ip
	}
	return maskIP(ip)
}

func (r *VisitorResolver) Resolve(ip, userAgent, referer string) VisitorInfo {
	ua := user_agent.New(userAgent)
	info := VisitorInfo{
		Device:   detectDevice(ua, userAgent),
		Referrer: referer,
	}
	if info.Referrer == "" {
		info.Referrer = directReferrer
	}

	browserName, browserVersion := ua.Browser()
	info.Browser = joinNameVersion(browserName, browserVersion)

	osInfo := ua.OSInfo()
	info.OperatingSystem = joinNameVersion(osInfo.Name, osInfo.Version)

	switch {
	case isLoopback(ip):
		info.IPAddress = LocalDevelopment
		info.Location = LocalDevelopment
		return info
	case ip == "":
		info.IPAddress = unknownValue
	case r.maskIPs:
		info.IPAddress = maskIP(ip)
	default:
		info.IPAddress = ip
	}

	info.Location = r.location(ip)
	return info
}

func (r *VisitorResolver) location(ip string) string {
	if r.geo == nil || ip == "" {
		return unknownValue
	}
	loc, ok := r.geo.Lookup(ip)
	if !ok {
		return unknownValue
	}

	city, country := loc.City, loc.Country
	if city == "" {
		city = "Unknown City"
	}
	if country == "" {
		country = "Unknown Country"
	}
	return city + ", " + country
}

// detectDevice relies on the parser for bots and mobiles. The raw string only
// separates tablets from phones, which the parser reports alike.
func detectDevice(ua *user_agent.UserAgent, raw string) string {
	if ua.Bot() {
		return "bot"
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return "tablet"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

func joinNameVersion(name, version string) string {
	if name == "" {
		name = unknownValue
	}
	return strings.TrimSpace(name + " " + version)
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// maskIP zeroes the last IPv4 octet and hides IPv6 addresses entirely.
func maskIP(ip string) string {
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == '.' {
			return ip[:i] + ".0"
		}
		if ip[i] == ':' {
			return "IPv6 (Masked)"
		}
	}
	return ip
}
