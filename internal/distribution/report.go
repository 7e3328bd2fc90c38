package distribution

import "time"

// Status of one subscriber within a run.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is the isolated result for one subscriber.
type Outcome struct {
	SubscriberID   uint   `json:"subscriber_id"`
	SubscriberName string `json:"subscriber_name"`
	Status         Status `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Offers         int    `json:"offers,omitempty"`
}

// Report aggregates a distribution run. Partial success is a normal
// outcome, not a failure of the run.
type Report struct {
	Supplier   string    `json:"supplier"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (r Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r Report) Sent() int    { return r.count(StatusSent) }
func (r Report) Skipped() int { return r.count(StatusSkipped) }
func (r Report) Failed() int  { return r.count(StatusFailed) }
