package chain

import (
	"math/big"

	"github.com/coinharbor/walletcore/internal/currency"
)

// Builtin network descriptors. These cover the networks the demo daemon and
// tests run against; production systems discover networks from the query
// service and register them alongside these.

// BitcoinMainnet returns a fresh bitcoin mainnet descriptor.
func BitcoinMainnet() *Network { return bitcoinNetwork("bitcoin-mainnet", "Bitcoin", true) }

// BitcoinTestnet returns a fresh bitcoin testnet descriptor.
func BitcoinTestnet() *Network { return bitcoinNetwork("bitcoin-testnet", "Bitcoin Testnet", false) }

func bitcoinNetwork(uid, name string, mainnet bool) *Network {
	btc := currency.NewCurrency(uid+":btc", "BTC", "Bitcoin", currency.TypeNative, "")
	sat := currency.NewBaseUnit(btc, "SAT", "Satoshi", "sat")
	unit := currency.NewUnit(btc, "BTC", "Bitcoin", "B", 8, sat)

	n, err := NewNetwork(NetworkConfig{
		UID:                     uid,
		Name:                    name,
		IsMainnet:               mainnet,
		Native:                  btc,
		ConfirmationsUntilFinal: 6,
		Fees: []*NetworkFee{
			{UID: uid + ":fee-10m", ConfirmationTimeMS: 10 * 60 * 1000,
				PricePerCostFactor: currency.NewAmountFromBase(big.NewInt(25), sat)},
			{UID: uid + ":fee-60m", ConfirmationTimeMS: 60 * 60 * 1000,
				PricePerCostFactor: currency.NewAmountFromBase(big.NewInt(5), sat)},
		},
		SupportedModes: []SyncMode{
			SyncModeAPIOnly, SyncModeAPIWithP2PSubmit, SyncModeP2POnly,
		},
		SupportedSchemes: []AddressScheme{
			AddressSchemeBTCSegwit, AddressSchemeBTCLegacy,
		},
	})
	if err != nil {
		panic(err) // static descriptor, cannot fail
	}
	n.AddCurrency(btc, sat, unit)
	return n
}

// EthereumMainnet returns a fresh ethereum mainnet descriptor.
func EthereumMainnet() *Network {
	uid := "ethereum-mainnet"
	eth := currency.NewCurrency(uid+":eth", "ETH", "Ether", currency.TypeNative, "")
	wei := currency.NewBaseUnit(eth, "WEI", "Wei", "wei")
	gwei := currency.NewUnit(eth, "GWEI", "Gwei", "gwei", 9, wei)
	ether := currency.NewUnit(eth, "ETH", "Ether", "E", 18, wei)

	n, err := NewNetwork(NetworkConfig{
		UID:                     uid,
		Name:                    "Ethereum",
		IsMainnet:               true,
		Native:                  eth,
		ConfirmationsUntilFinal: 12,
		Fees: []*NetworkFee{
			{UID: uid + ":fee-1m", ConfirmationTimeMS: 60 * 1000,
				PricePerCostFactor: currency.NewAmountFromBase(big.NewInt(4_000_000_000), wei)},
			{UID: uid + ":fee-5m", ConfirmationTimeMS: 5 * 60 * 1000,
				PricePerCostFactor: currency.NewAmountFromBase(big.NewInt(2_000_000_000), wei)},
		},
		SupportedModes:   []SyncMode{SyncModeAPIOnly, SyncModeP2POnly},
		SupportedSchemes: []AddressScheme{AddressSchemeETHDefault},
	})
	if err != nil {
		panic(err)
	}
	n.AddCurrency(eth, wei, gwei, ether)
	return n
}

// Builtin returns the builtin descriptor for uid, if any.
func Builtin(uid string) (*Network, bool) {
	switch uid {
	case "bitcoin-mainnet":
		return BitcoinMainnet(), true
	case "bitcoin-testnet":
		return BitcoinTestnet(), true
	case "ethereum-mainnet":
		return EthereumMainnet(), true
	default:
		return nil, false
	}
}

// BuiltinUIDs lists the uids of all builtin networks.
func BuiltinUIDs() []string {
	return []string{"bitcoin-mainnet", "bitcoin-testnet", "ethereum-mainnet"}
}
