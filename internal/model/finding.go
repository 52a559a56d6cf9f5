package model

// Agent names for scout findings.
const (
	AgentDemographics = "demographics"
	AgentCommercial   = "commercial"
	AgentMarketIntel  = "market_intel"
)

// Finding is the raw output of one research agent for one cycle: the LLM
// narrative plus the tool envelopes it was grounded on. Immutable once
// produced; accumulated by append at fan-in, never overwritten.
type Finding struct {
	Agent     string     `json:"agent"`
	Town      string     `json:"town"`
	Narrative string     `json:"llm_response"`
	Envelopes []Envelope `json:"tool_results"`
	Timestamp string     `json:"timestamp"`
}

// SourceStatus records one contributing source inside a category verdict.
type SourceStatus struct {
	SourceID string      `json:"source_id"`
	Status   FetchStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
}

// CategoryVerdict is the aggregate verification status for one data category.
type CategoryVerdict struct {
	Status  FetchStatus    `json:"status"`
	Sources []SourceStatus `json:"sources"`
}

// VerificationReport is the verifier's accounting of every tool call made
// during a cycle. Derived deterministically; never persisted standalone.
type VerificationReport struct {
	Timestamp     string                     `json:"timestamp"`
	TotalCalls    int                        `json:"total_tool_calls"`
	VerifiedCount int                        `json:"verified_count"`
	FailedCount   int                        `json:"failed_count"`
	Categories    map[string]CategoryVerdict `json:"categories"`
}

// FetchFailure is one failed tool call extracted by the verifier.
type FetchFailure struct {
	SourceID  string `json:"source_id"`
	Error     string `json:"error"`
	RawURL    string `json:"raw_url,omitempty"`
	Timestamp string `json:"timestamp"`
}
