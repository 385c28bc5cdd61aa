package analysis

// Keywords groups the weighted keyword tiers driving quality scoring and
// relevance filtering. The tiers ship with crypto-tuned defaults but are
// plain data: config may replace any of them.
type Keywords struct {
	HighValue   []string
	MediumValue []string
	LowValue    []string
	Technical   []string
	Analytical  []string
	Anchors     []string
}

// Topic is one taxonomy entry; declaration order breaks score ties during
// extraction.
type Topic struct {
	Name     string
	Keywords []string
}

// DefaultKeywords returns the built-in crypto keyword tiers.
func DefaultKeywords() Keywords {
	return Keywords{
		HighValue: []string{
			"bitcoin", "btc", "ethereum", "eth", "cryptocurrency", "crypto",
			"blockchain", "satoshi", "vitalik", "defi", "nft",
		},
		MediumValue: []string{
			"trading", "market", "price", "altcoin", "binance", "coinbase",
			"exchange", "wallet", "mining", "staking", "yield", "liquidity",
		},
		LowValue: []string{
			"investment", "investor", "bull", "bear", "rally", "crash",
			"adoption", "regulation", "sec", "government", "institutional",
		},
		Technical: []string{
			"consensus", "protocol", "smart contract", "hash rate", "node",
			"fork", "upgrade", "eip", "layer 2", "scaling", "gas", "fees",
		},
		Analytical: []string{
			"analysis", "prediction", "forecast", "trend", "pattern",
			"technical", "fundamental", "market", "data", "research",
		},
		Anchors: []string{"crypto", "blockchain"},
	}
}

// DefaultTaxonomy returns the built-in topic taxonomy.
func DefaultTaxonomy() []Topic {
	return []Topic{
		{Name: "Bitcoin", Keywords: []string{"bitcoin", "btc", "satoshi", "lightning", "taproot"}},
		{Name: "Ethereum", Keywords: []string{"ethereum", "eth", "ether", "vitalik", "eip", "gas"}},
		{Name: "DeFi", Keywords: []string{"defi", "decentralized finance", "yield", "liquidity", "uniswap", "aave", "compound"}},
		{Name: "NFTs", Keywords: []string{"nft", "non-fungible", "opensea", "collectible", "metaverse"}},
		{Name: "Trading", Keywords: []string{"trading", "trade", "exchange", "volume", "technical analysis", "chart"}},
		{Name: "Regulation", Keywords: []string{"regulation", "regulatory", "sec", "government", "compliance", "legal"}},
		{Name: "Market Analysis", Keywords: []string{"market", "price", "bull", "bear", "rally", "prediction", "forecast"}},
		{Name: "Technology", Keywords: []string{"blockchain", "consensus", "smart contract", "protocol", "upgrade", "innovation"}},
		{Name: "Mining", Keywords: []string{"mining", "hash rate", "proof of work", "asic", "difficulty", "miner"}},
		{Name: "Institutional", Keywords: []string{"institutional", "etf", "corporate", "adoption", "investment", "fund"}},
		{Name: "Altcoins", Keywords: []string{"altcoin", "solana", "cardano", "polkadot", "chainlink", "polygon"}},
		{Name: "Stablecoins", Keywords: []string{"stablecoin", "usdt", "usdc", "tether", "circle", "terra"}},
	}
}

func orDefault(tier, fallback []string) []string {
	if len(tier) > 0 {
		return tier
	}
	return fallback
}
