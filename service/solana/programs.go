package solana

import (
	"maps"

	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// AssociatedTokenProgramID creates associated token accounts
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")

	// ComputeBudgetProgramID sets compute limits and priority fees
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

	// JupiterV6ProgramID is the Jupiter aggregator
	JupiterV6ProgramID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

	// RaydiumAMMProgramID is the Raydium AMM v4
	RaydiumAMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	// OrcaWhirlpoolProgramID is the Orca concentrated liquidity program
	OrcaWhirlpoolProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

	// MarinadeProgramID is the Marinade liquid staking program
	MarinadeProgramID = solana.MustPublicKeyFromBase58("MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD")
)

// ProgramRegistry maps program IDs to human readable names.
type ProgramRegistry map[string]string

// Contains reports whether id is registered.
func (r ProgramRegistry) Contains(id string) bool {
	_, ok := r[id]
	return ok
}

// Name returns the registered name of id, or "" when unknown.
func (r ProgramRegistry) Name(id string) string {
	return r[id]
}

func key(id string) string {
	return solana.MustPublicKeyFromBase58(id).String()
}

func merge(registries ...ProgramRegistry) ProgramRegistry {
	out := make(ProgramRegistry)
	for _, r := range registries {
		maps.Copy(out, r)
	}
	return out
}

// NativeStakeProgramID is the stake program as the classifier lists it. It
// decodes to 33 bytes, so it is kept as a string and matched literally.
const NativeStakeProgramID = "StakeSSzfxn391k3LvdKbZP5WVwWd6AsY39qcgwy7f3J"

// CorePrograms are invoked by ordinary wallet transfers. They identify
// program accounts but do not make a transaction programmatic and do not
// stop a transfer from being pure.
var CorePrograms = ProgramRegistry{
	SystemProgramID.String():        "System Program",
	MemoProgramIDSPL.String():       "SPL Memo",
	MemoProgramIDLegacy.String():    "Memo v1",
	ComputeBudgetProgramID.String(): "Compute Budget",
}

// DEXPrograms, LendingPrograms and StakingPrograms drive context
// classification. They are narrower than KnownPrograms; a registered venue
// missing here classifies as OTHER_PROGRAM.
var DEXPrograms = ProgramRegistry{
	RaydiumAMMProgramID.String():                        "Raydium AMM",
	key("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"): "Orca",
	JupiterV6ProgramID.String():                         "Jupiter V6",
	OrcaWhirlpoolProgramID.String():                     "Orca Whirlpools",
}

var LendingPrograms = ProgramRegistry{
	key("So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"):  "Solend",
	key("4MangoMjqJ2firMokCjjGgoK8d4MXcrgL7XJaL3w6fVg"): "Mango V3",
	key("LendZqTs7gn5CTSJU1jWKhKuVpjg9avMpS7FgG7V4CJ"):  "Port Finance",
}

var StakingPrograms = ProgramRegistry{
	MarinadeProgramID.String():                          "Marinade Finance",
	NativeStakeProgramID:                                "Stake Program",
	key("J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"): "Jito",
}

var tokenPrograms = ProgramRegistry{
	TokenProgramID.String():           "Token Program",
	Token2022ProgramID.String():       "Token-2022 Program",
	AssociatedTokenProgramID.String(): "Associated Token Program",
}

var dexVenues = ProgramRegistry{
	key("CAMMCzo5YL8w4VFF8KVHrK22GGUQpMDdHwMBSPBy4kD"):  "Raydium CLMM",
	key("JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB"):  "Jupiter V4",
	key("DjVE6JNiYqPL2QXyCUUh8rNjHrbz9hXHNYt99MQ59qw1"): "Orca V1",
	key("EhYXq3ANp5nAerUpbSgd7VK2RRcxK1zNuSQ755G5Mtc1"): "Orca V2",
	key("EUqojwWA2rd19FZrzeBncJsm38Jm1hEhE3zsmX3bRc2o"): "Serum DEX",
	key("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"): "Serum DEX V3",
	key("BJ3jrUzddfuSrZHXSCxMbUE2yoHqpiUWyypURhoxiFwZ"): "Serum DEX V2",
	key("CLMM9tUoggJu2wagPkkqs9eFG4BWhVBZWkP1qv3Sp7tR"): "Lifinity",
	key("AMM55ShdkoGRB5jVYPjWziwk8m5MpwyDgsMWHaMSQWH6"): "Lifinity V2",
	key("SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ"):  "Saber",
	key("MERLuDFBMmsHnsBPZw2sDQZHvXFMwp8EdjudcU2HKky"):  "Mercurial",
	// not a 32-byte key
	"TokenSwapV1M41u6Xd9fgY4wXDrPmKUkKGfTLnNGN": "Aldrin",
}

var lendingVenues = ProgramRegistry{
	key("mv3ekLzLbnVPNxjSKvqBpU3ZeZXPQdEC3bp5MDEBG68"):  "Mango V4",
	key("FC81tbGt6JWRXidaWYFXxGnTk2VgEYrLR9c2YLGgCu8z"): "Francium",
}

var stakingVenues = ProgramRegistry{
	key("SP12tWFxD9oJsVWNavTTBZvMbA6gkAmxtVgxdqvyvhY"): "Stake Pool Program",
	// not a 32-byte key
	"Zap9yosk9j9Jc1GLyYQ9rQHY8oPrBF5iqHoZdFYHoW": "Socean",
}

var bridgePrograms = ProgramRegistry{
	key("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"):  "Wormhole",
	key("wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb"):  "Wormhole Token Bridge",
	key("HDwcJBJXjL9FpJ7UBsYBtaDjsBUhuLCUYoz3zr8SWWaQ"): "Wormhole NFT Bridge",
	key("A94X2fRy3wydNShU4dRaDyap2UuoeWJGWyATtyp61WVf"): "Allbridge",
}

var nftPrograms = ProgramRegistry{
	key("hausS13jsjafwWwGqZTUQRmWyvyxn9EQpqMwV1PBBmk"):  "Metaplex Auction House",
	key("M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K"):  "Magic Eden",
	key("CJsLwbP1iu5DuUikHEJnLfANgKy6stB2uFgvBBHoyxwz"): "Solanart",
}

var otherPrograms = ProgramRegistry{
	key("FsJ3A3u2vn5cTVofAjvy6y5kwABJAqYWpe4975bi2epH"): "Pyth Oracle",
	key("gSbePebfvPy7tRqimPoVecS2UsBvYv46ynrzWocc92s"):  "Pyth Program",
	key("GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"): "SPL Governance",
	key("CropUGUScj1h4KoGx47n8yXwkzLHFMeGtLhNLrG3TCxs"): "Crop Finance",
	// not a 32-byte key
	"Gov1BBdCNNqVD39vdFm93vVEwX7xEYqR3AwKbyKPP4": "Governance",
}

// KnownPrograms is the broad registry of token, DeFi, bridge, NFT, oracle
// and governance programs. Invoking any of them marks a transaction
// programmatic and rules out PURE_TRANSFER.
var KnownPrograms = merge(
	tokenPrograms,
	DEXPrograms, dexVenues,
	LendingPrograms, lendingVenues,
	StakingPrograms, stakingVenues,
	bridgePrograms, nftPrograms, otherPrograms,
)

// IsProgramAddress reports whether address is any registered program,
// including the core programs.
func IsProgramAddress(address string) bool {
	return CorePrograms.Contains(address) || KnownPrograms.Contains(address)
}
