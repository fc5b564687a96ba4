package health

// Status represents overall client health.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Report is the health summary served by the admin API.
type Report struct {
	OverallStatus   Status   `json:"overall_status"`
	Online          bool     `json:"online"`
	Summary         string   `json:"summary"`
	Signals         []string `json:"signals"`
	Recommendations []string `json:"recommendations"`
}
