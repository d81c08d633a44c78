package labels

import (
	"strings"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Built-in address book. Seeded at startup and overridable by
// higher-confidence entries from the label store.

var ethereumExchangeAddresses = map[string]string{
	// Binance
	"0x28c6c06298d514db089934071355e5743bf21d60": "binance",
	"0xdfd5293d8e347dfe59e90efd55b2956a1343963d": "binance",
	"0x5a52e96bacdabb82fd05763e25335261b270efcb": "binance",
	"0x3f5ce5fbfe3e9af3971dd833d26ba9b5c936f0be": "binance",
	"0x85b931a32a0725be14285b66f1a22178c672d69b": "binance",
	"0x708396f17127c42383e3b9014072679b2f60b82f": "binance",
	"0xe0f0cfde7ee664943906f17f7f14342e76a5cec7": "binance",
	"0x21a31ee1afc51d94c2efccaa2092ad1028285549": "binance",

	// Coinbase
	"0x71660c4005ba85c37ccec55d0c4493e66fe775d3": "coinbase",
	"0x503828976d22510aad0201ac7ec88293211d23da": "coinbase",
	"0xddfabcdc4d8ffc6d5beaf154f18b778f892a0740": "coinbase",
	"0xa090e606e30bd747d4e6245a1517ebe430f0057e": "coinbase",
	"0xf6c0aa7ebfe9992200c67e5388e546f7d1362713": "coinbase",
	"0x58553f5c5e55f2393cf6e65527847aef599e4a46": "coinbase",

	// Kraken
	"0x2910543af39aba0cd09dbb2d50200b3e800a63d2": "kraken",
	"0x0a869d79a7052c7f1b55a8ebabbea3420f0d1e13": "kraken",
	"0xa83b11093c858c86321fbc4c20fe82cdbd58e09e": "kraken",
	"0x267be1c1d684f78cb4f6a176c4911b741e4ffdc0": "kraken",
	"0x53d284357ec70ce289d6d64134dfac8e511c8a3d": "kraken",

	// KuCoin
	"0x2b5634c42055806a59e9107ed44d43c426e58258": "kucoin",
	"0x689c56aef474df92d44a1b70850f808488f9769c": "kucoin",
	"0xf16e9b0d03470827a95cdfd0cb8a8a3b46969b91": "kucoin",

	// OKX
	"0x6cc5f688a315f3dc28a7781717a9a798a59fda7b": "okx",
	"0x236f9f97e0e62388479bf9e5ba4889e46b0273c3": "okx",
	"0x5041ed759dd4afc3a72b8192c143f72f4724081a": "okx",

	// Crypto.com
	"0x6262998ced04146fa42253a5c0af90ca02dfd2a3": "crypto.com",
	"0x46340b20830761efd32832a74d7169b29feb9758": "crypto.com",

	// Huobi
	"0x1062a747393198f70f71ec65a582423dba7e5ab3": "huobi",
	"0xab5c66752a9e8167967685f1450532fb96d5d24f": "huobi",
	"0xdc76cd25977e0a5ae17155770273ad58648900d3": "huobi",

	// Bitfinex
	"0x876eabf441b2ee5b5b0554fd502a8e0600950cfa": "bitfinex",
	"0x742d35cc6634c0532925a3b844bc454e4438f44e": "bitfinex",

	// Gemini
	"0xd24400ae8bfebb18ca49be86258a3c749cf46853": "gemini",
	"0x6fc82a5fe25a5cdb58bc74600a40a69c065263f8": "gemini",

	// Gate.io
	"0x0d0707963952f2fba59dd06f2b425ace40b492fe": "gate.io",
	"0x1c4b70a3968436b9a0a9cf5205c787eb81bb558c": "gate.io",
}

var ethereumDEXRouters = map[string]string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "uniswap_v2_router",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "uniswap_v3_router",
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "uniswap_v3_router_2",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "sushiswap_router",
	"0x1b02da8cb0d097eb8d57a175b88c7d8b47997506": "sushiswap_router_2",
	"0x99a58482bd75cbab83b27ec03ca68ff489b5788f": "curve_pool",
	"0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7": "curve_3pool",
	"0xba12222222228d8ba445958a75a0704d566bf2c8": "balancer_vault",
	"0x1111111254fb6c44bac0bed2854e76f90643097d": "1inch_v4_router",
	"0x1111111254eeb25477b68fb85ed929f73a960582": "1inch_v5_router",
	"0xdef171fe48cf0115b1d80b88dc8eab59176fee57": "paraswap_v5",
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x_proxy",
}

var ethereumBridges = map[string]string{
	"0x99c9fc46f92e8a1c0dec1b1747d010903e884be1": "optimism_gateway",
	"0x8484ef722627bf18ca5ae6bcf031c23e6e922b30": "arbitrum_bridge",
	"0xa0c68c638235ee32657e8f720a23cec1bfc77c77": "polygon_bridge",
	"0x40ec5b33f54e0e8a33a975908c5ba1c14e5bbbdf": "polygon_erc20_bridge",
	"0x3ee18b2214aff97000d974cf647e7c347e8fa585": "wormhole_bridge",
	"0xabea9132b05a70803a4e85094fd0e1800777fbef": "zksync_bridge",
}

var ethereumStaking = map[string]string{
	"0xae7ab96520de3a18e5e111b5eaab095312d7fe84": "lido_steth",
	"0x00000000219ab540356cbb839cbe05303d7705fa": "eth2_deposit",
	"0xbe9895146f7af43049ca1c1ae358b0541ea49704": "coinbase_cbeth",
	"0xac3e018457b222d93114458476f3e3416abbe38f": "frax_sfrxeth",
}

var ethereumLending = map[string]string{
	"0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9": "aave_v2_pool",
	"0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2": "aave_v3_pool",
	"0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b": "compound_comptroller",
}

var ethereumMarketMakers = map[string]string{
	"0x0548f59fee79f8832c299e01dca5c76f034f558e": "wintermute",
	"0x3ccdf48c5b8040526815e47322dfd0b524f390d9": "wintermute_2",
	"0x9507c04b10486547584c37bcbd931b2a4fee9a41": "jump_trading",
	"0x21b2be9090d1d319e67a981d42811ba5a4e9b35e": "dv_trading",
}

var solanaExchangeAddresses = map[string]string{
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1": "binance",
	"6QEJkDV8NhHc4pUCAP3v6n5h5osHUqR1xCEhUAX8e9bL": "binance",
	"BQcdHdAQW1hczDbBi9hiegXAR7A98Q9jx3X3iBBBDiq4": "binance",
}

var solanaDEXPrograms = map[string]string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "raydium_amm",
	"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin": "serum_dex",
	"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  "orca_pools",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "orca_whirlpools",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "jupiter_aggregator",
}

var xrpExchangeAddresses = map[string]string{
	"rLNaPoKeeBjZe2qs6x52yVPZpZ8td4dc6w": "binance",
	"rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh": "binance",
	"rJb5KsHsDHF1YS5B5DU6QCkH5NsPaKQTcy": "binance",
	"rNQEMJw3sAoXpYUe4gr9C1Js5EZK3cVUmJ": "coinbase",
}

// builtinConfidence is assigned to hand-curated entries
const builtinConfidence = 0.95

// BuiltinRegistry returns the embedded address book keyed by chain then address
func BuiltinRegistry() map[models.Chain]map[string]*models.AddressLabel {
	now := time.Now().UTC()
	reg := make(map[models.Chain]map[string]*models.AddressLabel)

	add := func(chain models.Chain, addrs map[string]string, kind models.LabelKind) {
		if reg[chain] == nil {
			reg[chain] = make(map[string]*models.AddressLabel)
		}
		for addr, entity := range addrs {
			key := addr
			if chain != models.ChainSolana && chain != models.ChainXRP {
				key = strings.ToLower(addr)
			}
			reg[chain][key] = &models.AddressLabel{
				Address:    key,
				Chain:      chain,
				Kind:       kind,
				EntityName: entity,
				Confidence: builtinConfidence,
				UpdatedAt:  now,
			}
		}
	}

	add(models.ChainEthereum, ethereumExchangeAddresses, models.LabelCEX)
	add(models.ChainEthereum, ethereumDEXRouters, models.LabelDEX)
	add(models.ChainEthereum, ethereumBridges, models.LabelBridge)
	add(models.ChainEthereum, ethereumStaking, models.LabelStaking)
	add(models.ChainEthereum, ethereumLending, models.LabelLending)
	add(models.ChainEthereum, ethereumMarketMakers, models.LabelMEV)
	add(models.ChainSolana, solanaExchangeAddresses, models.LabelCEX)
	add(models.ChainSolana, solanaDEXPrograms, models.LabelDEX)
	add(models.ChainXRP, xrpExchangeAddresses, models.LabelCEX)

	// Polygon and BSC share the EVM router deployments
	add(models.ChainPolygon, ethereumDEXRouters, models.LabelDEX)
	add(models.ChainBSC, ethereumDEXRouters, models.LabelDEX)

	return reg
}
