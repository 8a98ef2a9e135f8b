package tracker

// Stats is a summary over the closed trade set.
type Stats struct {
	Closed       int                      `json:"closed"`
	Wins         int                      `json:"wins"`
	Losses       int                      `json:"losses"`
	WinRatePct   float64                  `json:"win_rate_pct"`
	AvgRR        float64                  `json:"avg_rr"`
	CumulativeRR float64                  `json:"cumulative_rr"`
	Extended     int                      `json:"extended"`
	PerStrategy  map[string]StrategyStats `json:"per_strategy"`
}

// StrategyStats breaks the summary down by the rule that produced the
// entry signal.
type StrategyStats struct {
	Closed       int     `json:"closed"`
	Wins         int     `json:"wins"`
	CumulativeRR float64 `json:"cumulative_rr"`
}

// Stats summarizes every closed trade. Target hits count as wins, stop
// hits as losses; a breakeven stop-out still books as a loss with zero R.
func (tr *Tracker) Stats() Stats {
	tr.closedMu.Lock()
	defer tr.closedMu.Unlock()

	s := Stats{PerStrategy: make(map[string]StrategyStats)}
	for _, t := range tr.closed {
		s.Closed++
		s.CumulativeRR += t.RealizedRR
		if t.State == StateClosedTP {
			s.Wins++
		} else {
			s.Losses++
		}
		if t.Extended {
			s.Extended++
		}
		ps := s.PerStrategy[t.Signal.Strategy]
		ps.Closed++
		ps.CumulativeRR += t.RealizedRR
		if t.State == StateClosedTP {
			ps.Wins++
		}
		s.PerStrategy[t.Signal.Strategy] = ps
	}
	if s.Closed > 0 {
		s.WinRatePct = float64(s.Wins) / float64(s.Closed) * 100
		s.AvgRR = s.CumulativeRR / float64(s.Closed)
	}
	return s
}
