// Package record defines the persistent artifacts a fit produces.
package record

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// FitRun is one completed model fit: the starting guess, the best-fit values
// and goodness-of-fit diagnostics.
type FitRun struct {
	VersionedRecord
	ID           string             `json:"id"`
	CreatedAtUTC string             `json:"created_at_utc"`
	Theory       string             `json:"theory"`
	DataPoints   int                `json:"data_points"`
	InitialGuess map[string]float64 `json:"initial_guess"`
	BestParams   map[string]float64 `json:"best_params"`
	Chisq        float64            `json:"chisq"`
	RedChisq     float64            `json:"red_chisq"`
	Evaluations  int                `json:"evaluations"`
	Converged    bool               `json:"converged"`
}
