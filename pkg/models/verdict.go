package models

import "time"

// ComponentScores are the three weighted inputs of an aggregated score
type ComponentScores struct {
	Compliance  float64 `json:"compliance"`
	Pattern     float64 `json:"pattern"`
	Attribution float64 `json:"attribution"`
}

type PatternSummary struct {
	LayeringDetected      bool     `json:"layeringDetected"`
	SmurfingDetected      bool     `json:"smurfingDetected"`
	RoundTrippingDetected bool     `json:"roundTrippingDetected"`
	ClusterCount          int      `json:"clusterCount"`
	OverallRiskScore      float64  `json:"overallRiskScore"`
	RiskFactors           []string `json:"riskFactors"`
}

type AttributionSummary struct {
	EntityMatch    string   `json:"entityMatch,omitempty"`
	ClusterID      string   `json:"clusterId,omitempty"`
	Confidence     float64  `json:"confidence"`
	RiskScore      float64  `json:"riskScore"`
	CrossChainRisk float64  `json:"crossChainRisk"`
	RiskIndicators []string `json:"riskIndicators"`
}

// RiskVerdict is the explainable result of analysing a single transaction
type RiskVerdict struct {
	AnalysisID   string             `json:"analysisId"`
	TxHash       string             `json:"txHash"`
	FromAddress  string             `json:"fromAddress"`
	ToAddress    string             `json:"toAddress"`
	RiskScore    int                `json:"riskScore"`
	RiskLevel    RiskLevel          `json:"riskLevel"`
	Flags        []string           `json:"flags"`
	Confidence   float64            `json:"confidence"`
	Components   ComponentScores    `json:"components"`
	Compliance   ComplianceResult   `json:"compliance"`
	Patterns     PatternSummary     `json:"patterns"`
	Intelligence AttributionSummary `json:"intelligence"`
	Timestamp    time.Time          `json:"timestamp"`
}

type ClusterSummary struct {
	TotalClusters      int     `json:"totalClusters"`
	LargestClusterSize int     `json:"largestClusterSize"`
	MaxRiskScore       float64 `json:"maxRiskScore"`
}

// WalletVerdict is the result of analysing an address with its transfer history
type WalletVerdict struct {
	Address     string             `json:"address"`
	Blockchain  string             `json:"blockchain"`
	RiskScore   int                `json:"riskScore"`
	RiskLevel   RiskLevel          `json:"riskLevel"`
	Attribution AttributionResult  `json:"attribution"`
	Clustering  ClusterSummary     `json:"clustering"`
	CrossChain  CrossChainAnalysis `json:"crossChain"`
	Summary     string             `json:"summary"`
	Timestamp   time.Time          `json:"timestamp"`
}

// EngineStats is a point-in-time view of engine activity
type EngineStats struct {
	Nodes           int      `json:"nodes"`
	Edges           int      `json:"edges"`
	AnalysesRun     int64    `json:"analysesRun"`
	WalletsAnalysed int64    `json:"walletsAnalysed"`
	AuditEntries    int      `json:"auditEntries"`
	KnownEntities   int      `json:"knownEntities"`
	UptimeSeconds   float64  `json:"uptimeSeconds"`
	Frameworks      []string `json:"defaultFrameworks"`
}
