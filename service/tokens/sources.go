package tokens

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/brojonat/solfeat/service/httpapi"
)

// Source is a remote token metadata provider.
type Source interface {
	Name() string
	Lookup(ctx context.Context, mint string) (TokenInfo, error)
}

// flexInt decodes integers that some providers send as quoted strings.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(data), err)
	}
	f.value = int(v)
	f.set = true
	return nil
}

func (f *flexInt) orDefault(def int) int {
	if f == nil || !f.set {
		return def
	}
	return f.value
}

// HeliusSource resolves metadata through the Helius token-metadata endpoint.
type HeliusSource struct {
	client  *httpapi.Client
	baseURL string
	apiKey  string
}

// NewHeliusSource creates a Helius metadata source.
func NewHeliusSource(client *httpapi.Client, baseURL, apiKey string) *HeliusSource {
	return &HeliusSource{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (s *HeliusSource) Name() string { return "helius" }

type heliusTokenMetadata struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Decimals       *flexInt `json:"decimals"`
	LegacyMetadata *struct {
		Symbol   string   `json:"symbol"`
		Name     string   `json:"name"`
		Decimals *flexInt `json:"decimals"`
	} `json:"legacyMetadata"`
	OnChainMetadata *struct {
		Metadata struct {
			Data struct {
				Symbol string `json:"symbol"`
				Name   string `json:"name"`
			} `json:"data"`
		} `json:"metadata"`
	} `json:"onChainMetadata"`
}

// Lookup posts the mint to Helius and reads the first returned entry.
func (s *HeliusSource) Lookup(ctx context.Context, mint string) (TokenInfo, error) {
	endpoint := fmt.Sprintf("%s/v0/token-metadata?api-key=%s", s.baseURL, url.QueryEscape(s.apiKey))
	body := map[string][]string{"mintAccounts": {mint}}

	var results []heliusTokenMetadata
	if err := s.client.PostJSON(ctx, endpoint, nil, body, &results); err != nil {
		return TokenInfo{}, err
	}
	if len(results) == 0 {
		return TokenInfo{}, fmt.Errorf("helius returned no metadata for %s", mint)
	}

	md := results[0]
	info := TokenInfo{Symbol: md.Symbol, Name: md.Name, Decimals: md.Decimals.orDefault(DefaultDecimals)}
	if md.LegacyMetadata != nil {
		if info.Symbol == "" {
			info.Symbol = md.LegacyMetadata.Symbol
		}
		if info.Name == "" {
			info.Name = md.LegacyMetadata.Name
		}
		if md.Decimals == nil || !md.Decimals.set {
			info.Decimals = md.LegacyMetadata.Decimals.orDefault(DefaultDecimals)
		}
	}
	if md.OnChainMetadata != nil {
		if info.Symbol == "" {
			info.Symbol = strings.TrimRight(md.OnChainMetadata.Metadata.Data.Symbol, "\x00")
		}
		if info.Name == "" {
			info.Name = strings.TrimRight(md.OnChainMetadata.Metadata.Data.Name, "\x00")
		}
	}
	return info, nil
}

// MoralisSource resolves metadata through the Moralis Solana gateway.
type MoralisSource struct {
	client  *httpapi.Client
	baseURL string
	apiKey  string
}

// NewMoralisSource creates a Moralis metadata source.
func NewMoralisSource(client *httpapi.Client, baseURL, apiKey string) *MoralisSource {
	return &MoralisSource{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (s *MoralisSource) Name() string { return "moralis" }

// Lookup fetches the mint's metadata document.
func (s *MoralisSource) Lookup(ctx context.Context, mint string) (TokenInfo, error) {
	endpoint := fmt.Sprintf("%s/token/mainnet/%s/metadata", s.baseURL, url.PathEscape(mint))

	var md struct {
		Symbol   string   `json:"symbol"`
		Name     string   `json:"name"`
		Decimals *flexInt `json:"decimals"`
	}
	if err := s.client.GetJSON(ctx, endpoint, map[string]string{"X-API-Key": s.apiKey}, &md); err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{Symbol: md.Symbol, Name: md.Name, Decimals: md.Decimals.orDefault(DefaultDecimals)}, nil
}
