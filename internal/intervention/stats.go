package intervention

// Stats summarises the last 24 hours of popups.
type Stats struct {
	TotalShown         int     `json:"total_shown"`
	StayFocused        int     `json:"stay_focused"`
	Dismissed          int     `json:"dismissed"`
	Breaks             int     `json:"breaks"`
	Effectiveness      float64 `json:"effectiveness"` // percent of shown popups answered with stay-focused
	AdaptiveMultiplier float64 `json:"adaptive_multiplier"`
	ConsecutivePopups  int     `json:"consecutive_popups"`
	ActiveDismissals   int     `json:"active_dismissals"`
}

// Stats returns the popup statistics.
func (p *Policy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var s Stats
	for _, e := range p.history {
		if now.Sub(e.Timestamp) >= statsWindow {
			continue
		}
		switch e.Action {
		case ActionShown:
			s.TotalShown++
		case ActionStayFocused:
			s.StayFocused++
		case ActionDismiss:
			s.Dismissed++
		case ActionCooldown:
			s.Breaks++
		}
	}
	if s.TotalShown > 0 {
		s.Effectiveness = float64(s.StayFocused) / float64(s.TotalShown) * 100
	}
	s.AdaptiveMultiplier = p.multiplier
	s.ConsecutivePopups = p.consecutive
	s.ActiveDismissals = len(p.dismissed)
	return s
}
