package market

import "strings"

var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC"}

// BaseAsset reduces any exchange spelling of a symbol to its canonical
// base asset: "BTCUSDT", "BTC_USDT", "BTC-USD" and "BTC" all map to "BTC".
// Normalization happens exactly once, at this boundary; everything keyed on
// a symbol (cooldowns, reconciliation) stores the result.
func BaseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	for _, suffix := range quoteSuffixes {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// Pair renders the canonical trading pair sent to the exchange client.
func Pair(baseAsset string) string {
	return BaseAsset(baseAsset) + "USDT"
}

// IsBTC reports whether a symbol resolves to bitcoin itself; BTC influence
// rules never apply to BTC.
func IsBTC(symbol string) bool {
	return BaseAsset(symbol) == "BTC"
}
