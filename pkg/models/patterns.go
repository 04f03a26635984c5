package models

import "github.com/shopspring/decimal"

const (
	PatternLayering      = "LAYERING"
	PatternSmurfing      = "SMURFING"
	PatternRoundTripping = "ROUND_TRIPPING"
	PatternClustering    = "ADDRESS_CLUSTERING"
)

// LayeringChain is a forward path whose amounts decay roughly by a fixed retention per hop
type LayeringChain struct {
	Path            []string `json:"path"`
	Hops            int      `json:"hops"`
	AmountRetention float64  `json:"amountRetention"` // last edge amount / previous edge amount
	RiskScore       float64  `json:"riskScore"`
}

// LayeringResult holds every retained chain starting from an address
type LayeringResult struct {
	PatternType  string          `json:"patternType"`
	Chains       []LayeringChain `json:"chains"`
	MaxRiskScore float64         `json:"maxRiskScore"`
}

// SmurfingResult describes the similarity of an address's outgoing amounts
type SmurfingResult struct {
	PatternType      string          `json:"patternType"`
	Detected         bool            `json:"detected"`
	TransactionCount int             `json:"transactionCount"`
	SimilarityRatio  float64         `json:"similarityRatio"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	RiskScore        float64         `json:"riskScore"`
}

// RoundTripCycle is a simple cycle that starts and ends at the analysed address.
// Path lists the cycle's nodes once, beginning with the analysed address.
type RoundTripCycle struct {
	Path      []string `json:"path"`
	Length    int      `json:"length"`
	RiskScore float64  `json:"riskScore"`
}

type RoundTripResult struct {
	PatternType  string           `json:"patternType"`
	Cycles       []RoundTripCycle `json:"cycles"`
	MaxRiskScore float64          `json:"maxRiskScore"`
	Truncated    bool             `json:"truncated,omitempty"` // search step budget exhausted
}

// AddressCluster is a weakly connected group of addresses
type AddressCluster struct {
	Addresses   []string        `json:"addresses"`
	Size        int             `json:"size"`
	TotalVolume decimal.Decimal `json:"totalVolume"`
	HasMixer    bool            `json:"hasMixer"`
	RiskScore   float64         `json:"riskScore"`
}

type ClusterResult struct {
	PatternType    string           `json:"patternType"`
	Clusters       []AddressCluster `json:"clusters"`
	TotalClusters  int              `json:"totalClusters"`
	MaxClusterSize int              `json:"maxClusterSize"`
	MaxRiskScore   float64          `json:"maxRiskScore"`
}

// PatternAnalysis is the combined output of every detector for one address
type PatternAnalysis struct {
	Address          string          `json:"address"`
	Layering         LayeringResult  `json:"layering"`
	Smurfing         SmurfingResult  `json:"smurfing"`
	RoundTripping    RoundTripResult `json:"roundTripping"`
	Clustering       ClusterResult   `json:"clustering"`
	OverallRiskScore float64         `json:"overallRiskScore"`
	RiskFactors      []string        `json:"riskFactors"`
}
