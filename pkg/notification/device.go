package notification

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var portSuffix = regexp.MustCompile(`:\d+$`)

// ExtractDeviceInfo derives device information from HTTP request headers.
// Returns nil when no User-Agent is present.
func ExtractDeviceInfo(r *http.Request) *DeviceInfo {
	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	return &DeviceInfo{
		UserAgent:  userAgent,
		DeviceType: detectDeviceType(ua),
		Browser:    detectBrowser(ua),
		OS:         detectOS(ua),
		DeviceHash: deviceHash(r),
	}
}

func detectDeviceType(ua string) string {
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "chromium"):
		return "chrome"
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "safari"):
		return "safari"
	default:
		return "unknown"
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ipod"):
		return "ios"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return "unknown"
	}
}

// deviceHash fingerprints the requesting device from a few stable headers
func deviceHash(r *http.Request) string {
	fingerprint := fmt.Sprintf("%s|%s|%s|%s",
		r.Header.Get("User-Agent"),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		portSuffix.ReplaceAllString(r.RemoteAddr, ""),
	)

	hash := md5.Sum([]byte(fingerprint))
	return fmt.Sprintf("%x", hash)
}
