package domain

import "time"

// Phase names one stage of a timing campaign.
type Phase string

const (
	PhaseIdentify Phase = "identify"
	PhaseExtract  Phase = "extract"
	PhaseAll      Phase = "all"
)

// SearchResult is the terminal state of a secret search. An exhausted
// candidate space is Found == false, not an error.
type SearchResult struct {
	Identity Identity `json:"user_id" yaml:"user_id"`
	Secret   string   `json:"pin,omitempty" yaml:"pin,omitempty"`
	Found    bool     `json:"found" yaml:"found"`

	// Attempts counts candidates whose verification completed
	Attempts int `json:"attempts" yaml:"attempts"`

	// Failed counts candidates abandoned after exhausting their retries
	// and the second pass
	Failed int `json:"failed" yaml:"failed"`

	// Incomplete marks a search that ended without an answer for every
	// candidate
	Incomplete bool `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Extraction is the record handed to result sinks after a successful search.
type Extraction struct {
	// Timestamp is when the secret was confirmed
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// RunID identifies the campaign that produced the record
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	Identity Identity `json:"user_id" yaml:"user_id"`
	Secret   string   `json:"pin" yaml:"pin"`

	// Token is the opaque success payload returned by the target
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// ReportEntry is one point of the identity to timing plot.
type ReportEntry struct {
	Identity Identity `json:"user_id" yaml:"user_id"`
	Median   float64  `json:"median_seconds" yaml:"median_seconds"`
	Flagged  bool     `json:"flagged" yaml:"flagged"`
}

// Report is the plain-data summary of a campaign, suitable for plotting.
type Report struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Target     string         `json:"target" yaml:"target"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Entries    []ReportEntry  `json:"entries,omitempty" yaml:"entries,omitempty"`
	Detection  *Detection     `json:"detection,omitempty" yaml:"detection,omitempty"`
	Searches   []SearchResult `json:"searches,omitempty" yaml:"searches,omitempty"`
	Extraction *Extraction    `json:"extraction,omitempty" yaml:"extraction,omitempty"`
}

// NewReport builds the entry list for a profile and its detection.
func NewReport(runID, target string, profile TimingProfile, detection *Detection) *Report {
	r := &Report{
		RunID:     runID,
		Target:    target,
		Detection: detection,
	}

	for _, id := range profile.Identities() {
		entry := ReportEntry{Identity: id, Median: profile[id]}
		if detection != nil {
			entry.Flagged = detection.IsFlagged(id)
		}
		r.Entries = append(r.Entries, entry)
	}
	return r
}
