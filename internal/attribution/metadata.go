package attribution

import (
	"regexp"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/rawblock/riskgraph/pkg/models"
)

const (
	MethodScriptType    = "SCRIPT_TYPE_ANALYSIS"
	MethodAddressReuse  = "ADDRESS_REUSE_PATTERN"
	MethodAddressFormat = "ADDRESS_FORMAT_ANALYSIS"
)

// Bitcoin script templates recognised from an address encoding
const (
	ScriptUnknown = ""
	ScriptP2PKH   = "p2pkh"
	ScriptP2SH    = "p2sh"
	ScriptP2WPKH  = "p2wpkh"
	ScriptP2WSH   = "p2wsh"
	ScriptP2TR    = "p2tr"
)

var evmAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ScriptType decodes a mainnet Bitcoin address and returns its script
// template, or ScriptUnknown when the address does not decode
func ScriptType(addr string) string {
	decoded, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
	if err != nil {
		return ScriptUnknown
	}
	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		return ScriptP2PKH
	case *btcutil.AddressScriptHash:
		return ScriptP2SH
	case *btcutil.AddressWitnessPubKeyHash:
		return ScriptP2WPKH
	case *btcutil.AddressWitnessScriptHash:
		return ScriptP2WSH
	case *btcutil.AddressTaproot:
		return ScriptP2TR
	}
	return ScriptUnknown
}

// metadataMethods returns the on-chain metadata analyses that apply to addr
func metadataMethods(addr string, chain Blockchain, sample []models.Transfer) []string {
	var methods []string
	switch {
	case chain == Bitcoin:
		if ScriptType(addr) != ScriptUnknown {
			methods = append(methods, MethodScriptType)
		}
		hashes := make(map[string]bool)
		for _, t := range touching(addr, sample) {
			if t.Hash != "" {
				hashes[t.Hash] = true
			}
		}
		if len(hashes) > 1 {
			methods = append(methods, MethodAddressReuse)
		}
	case chain.IsEVM():
		if evmAddress.MatchString(addr) {
			methods = append(methods, MethodAddressFormat)
		}
	}
	return methods
}
