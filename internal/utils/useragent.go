package utils

import (
	"github.com/mssola/user_agent"
)

// ParseUserAgent extracts device information from a raw User-Agent header
// for audit enrichment.
func ParseUserAgent(rawUA string) map[string]interface{} {
	if rawUA == "" {
		return map[string]interface{}{"raw": ""}
	}

	ua := user_agent.New(rawUA)
	browser, version := ua.Browser()

	return map[string]interface{}{
		"browser":         browser,
		"browser_version": version,
		"os":              ua.OS(),
		"platform":        ua.Platform(),
		"mobile":          ua.Mobile(),
		"bot":             ua.Bot(),
	}
}
