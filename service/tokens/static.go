package tokens

// knownTokens is the static table consulted before any cache or remote lookup.
var knownTokens = map[string]TokenInfo{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Symbol: "USDC", Decimals: 6, Name: "USD Coin"},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Symbol: "USDT", Decimals: 6, Name: "Tether USD"},
	WrappedSOLMint: {Symbol: "WSOL", Decimals: 9, Name: "Wrapped SOL"},
	"9n4nbM75f5Ui33ZbPYXn59EwSgE8CGsHtAeTH5YFeJ9E": {Symbol: "BTC", Decimals: 6, Name: "Wrapped Bitcoin (Sollet)"},
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {Symbol: "mSOL", Decimals: 9, Name: "Marinade staked SOL"},
	"J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn": {Symbol: "jitoSOL", Decimals: 9, Name: "Jito Staked SOL"},
	"bSo13r4TkiE4KumL71LsHTPpL2euBYLFx6h9HP3piy1":  {Symbol: "bSOL", Decimals: 9, Name: "BlazeStake Staked SOL"},
}

// Known returns the static entry for mint, if any.
func Known(mint string) (TokenInfo, bool) {
	info, ok := knownTokens[mint]
	return info, ok
}
