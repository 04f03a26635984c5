package models

import "github.com/shopspring/decimal"

// EntityProfile describes a known real-world operator of addresses
type EntityProfile struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Category         string          `json:"category"` // exchange/mixer/defi/bridge/wallet/darknet
	RiskTier         RiskLevel       `json:"riskTier"`
	Addresses        []string        `json:"addresses"`
	TotalVolume      decimal.Decimal `json:"totalVolume"`
	TransactionCount int             `json:"transactionCount"`
	FirstSeen        int64           `json:"firstSeen"`
	LastSeen         int64           `json:"lastSeen"`
	Jurisdictions    []string        `json:"jurisdictions"`
	ComplianceStatus string          `json:"complianceStatus"`
}

// AttributionResult is the outcome of attributing one address
type AttributionResult struct {
	Address          string         `json:"address"`
	Blockchain       string         `json:"blockchain"`
	EntityMatch      string         `json:"entityMatch,omitempty"`
	Entity           *EntityProfile `json:"entity,omitempty"`
	ClusterID        string         `json:"clusterId,omitempty"`
	RelatedAddresses []string       `json:"relatedAddresses"`
	Confidence       float64        `json:"confidence"`
	Methods          []string       `json:"attributionMethods"`
	RiskIndicators   []string       `json:"riskIndicators"`
}

// BridgeFlow summarises the traffic an address sent through one bridge contract
type BridgeFlow struct {
	BridgeAddress      string          `json:"bridgeAddress"`
	TransactionCount   int             `json:"transactionCount"`
	TotalVolume        decimal.Decimal `json:"totalVolume"`
	SimilarityRatio    float64         `json:"similarityRatio"`
	AvgIntervalSeconds float64         `json:"avgIntervalSeconds"`
	PatternType        string          `json:"patternType,omitempty"`
	RiskScore          float64         `json:"riskScore"`
	Suspicious         bool            `json:"suspicious"`
}

type CrossChainAnalysis struct {
	DetectedFlows    []BridgeFlow `json:"detectedFlows"` // suspicious flows only
	TotalBridgesUsed int          `json:"totalBridgesUsed"`
	HighestRiskScore float64      `json:"highestRiskScore"`
}
