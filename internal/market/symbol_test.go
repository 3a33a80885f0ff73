package market

import "testing"

func TestBaseAsset_QuoteSuffixVariantsCollide(t *testing.T) {
	variants := []string{"BTCUSDT", "BTC_USDT", "BTC_USD", "BTC-USD", "btcusdt", " BTC/USDT "}
	for _, v := range variants {
		if got := BaseAsset(v); got != "BTC" {
			t.Fatalf("BaseAsset(%q)=%q want=BTC", v, got)
		}
	}
}

func TestBaseAsset_BareAssetUnchanged(t *testing.T) {
	cases := map[string]string{
		"BTC":  "BTC",
		"BONK": "BONK",
		"USDT": "USDT",
		"eth":  "ETH",
	}
	for in, want := range cases {
		if got := BaseAsset(in); got != want {
			t.Fatalf("BaseAsset(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestBaseAsset_BTCQuotedPairs(t *testing.T) {
	if got := BaseAsset("ETHBTC"); got != "ETH" {
		t.Fatalf("BaseAsset(ETHBTC)=%q want=ETH", got)
	}
}

func TestPair(t *testing.T) {
	if got := Pair("BTC_USD"); got != "BTCUSDT" {
		t.Fatalf("Pair(BTC_USD)=%q want=BTCUSDT", got)
	}
}

func TestIsBTC(t *testing.T) {
	if !IsBTC("BTC_USDT") {
		t.Fatalf("IsBTC(BTC_USDT)=false want=true")
	}
	if IsBTC("ETHUSDT") {
		t.Fatalf("IsBTC(ETHUSDT)=true want=false")
	}
}
