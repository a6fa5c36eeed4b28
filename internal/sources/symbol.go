package sources

import "strings"

// MarketSymbol prefixes a bare 6-digit code with its exchange: sh for
// Shanghai (6xx/9xx), bj for Beijing (4xx/8xx), sz for everything else.
func MarketSymbol(code string) string {
	switch {
	case strings.HasPrefix(code, "6"), strings.HasPrefix(code, "9"):
		return "sh" + code
	case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"):
		return "bj" + code
	default:
		return "sz" + code
	}
}

// YahooSymbol maps a bare code to Yahoo Finance notation. Beijing listings
// are not covered there, so they map to an empty string.
func YahooSymbol(code string) string {
	switch MarketSymbol(code)[:2] {
	case "sh":
		return code + ".SS"
	case "sz":
		return code + ".SZ"
	default:
		return ""
	}
}
