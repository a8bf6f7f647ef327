package lifecycle

import (
	"time"

	"ptcoach/pt-manager/internal/domain"
)

// Stats are the dashboard figures for the current year.
type Stats struct {
	Year          int         `json:"year"`
	TotalClients  int         `json:"totalClients"`
	ActiveClients int         `json:"activeClients"`
	MonthlyIncome float64     `json:"monthlyIncome"`
	Revenue       [12]float64 `json:"revenue"`
	NewClients    [12]int     `json:"newClients"`
}

// ComputeStats aggregates clients and payments as of now in loc. A client
// is active when it has no expiry or the expiry has not passed.
func ComputeStats(clients []domain.Client, payments []domain.Payment, now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	st := Stats{Year: local.Year(), TotalClients: len(clients)}

	for _, c := range clients {
		if c.ExpiresAt == nil || !c.ExpiresAt.Before(now) {
			st.ActiveClients++
		}
		created := c.CreatedAt.In(loc)
		if !c.CreatedAt.IsZero() && created.Year() == st.Year {
			st.NewClients[created.Month()-1]++
		}
	}
	for _, p := range payments {
		paid := p.PaidAt.In(loc)
		if p.PaidAt.IsZero() || paid.Year() != st.Year {
			continue
		}
		st.Revenue[paid.Month()-1] += p.Amount
	}
	st.MonthlyIncome = st.Revenue[local.Month()-1]
	return st
}
