package notification

import (
	"fmt"
	"math"
	"strings"

	"github.com/predeshen/telegramscalperbot-sub000/internal/filter"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
)

// FormatSignal renders an admitted signal as an alert card.
func FormatSignal(sig *model.Signal) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s (%s)\n", sig.Symbol, sig.Timeframe, sig.Direction, sig.Strategy)
	fmt.Fprintf(&b, "Entry:  %s\n", fmtPrice(sig.Entry))
	fmt.Fprintf(&b, "Stop:   %s\n", fmtPrice(sig.Stop))
	fmt.Fprintf(&b, "Target: %s\n", fmtPrice(sig.Target))
	fmt.Fprintf(&b, "R:R %.2f | Confidence %d/5", sig.RiskReward, sig.Confidence)
	if !math.IsNaN(sig.Snapshot.RSI) {
		fmt.Fprintf(&b, "\nRSI %.1f", sig.Snapshot.RSI)
	}
	if !math.IsNaN(sig.Snapshot.ADX) {
		fmt.Fprintf(&b, " | ADX %.1f", sig.Snapshot.ADX)
	}
	if !math.IsNaN(sig.Snapshot.VolumeRatio) {
		fmt.Fprintf(&b, " | Vol %.2fx", sig.Snapshot.VolumeRatio)
	}
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("Signal: %s %s %s", sig.Symbol, sig.Timeframe, sig.Direction),
		Message: b.String(),
	}
}

// FormatEvent renders a trade lifecycle event as an alert card.
func FormatEvent(ev tracker.Event) Alert {
	head := fmt.Sprintf("%s %s %s", ev.Symbol, ev.Timeframe, ev.Direction)
	switch ev.Type {
	case tracker.EventOpened:
		return Alert{
			Level:   AlertInfo,
			Title:   "Tracking: " + head,
			Message: fmt.Sprintf("%s\nNow tracking from entry %s.", head, fmtPrice(ev.Price)),
		}
	case tracker.EventBreakeven:
		return Alert{
			Level: AlertInfo,
			Title: "Breakeven: " + head,
			Message: fmt.Sprintf("%s\nStop moved to entry %s at price %s. Position is risk free.",
				head, fmtPrice(ev.EffectiveStop), fmtPrice(ev.Price)),
		}
	case tracker.EventStopWarning:
		return Alert{
			Level: AlertWarning,
			Title: "Stop approaching: " + head,
			Message: fmt.Sprintf("%s\nPrice %s is closing in on stop %s.",
				head, fmtPrice(ev.Price), fmtPrice(ev.EffectiveStop)),
		}
	case tracker.EventTargetExtended:
		return Alert{
			Level: AlertInfo,
			Title: "Target extended: " + head,
			Message: fmt.Sprintf("%s\nMomentum holding, target stretched to %s.",
				head, fmtPrice(ev.EffectiveTarget)),
		}
	case tracker.EventReversalAdvisory:
		return Alert{
			Level: AlertWarning,
			Title: "Reversal risk: " + head,
			Message: fmt.Sprintf("%s\nProfit giveback with fading momentum at %s. Consider an early exit.",
				head, fmtPrice(ev.Price)),
		}
	case tracker.EventClosed:
		level := AlertInfo
		verdict := "Target hit"
		if ev.Outcome == tracker.StateClosedSL {
			level = AlertCritical
			verdict = "Stopped out"
		}
		return Alert{
			Level: level,
			Title: fmt.Sprintf("%s: %s", verdict, head),
			Message: fmt.Sprintf("%s\nExit %s, realized %.2fR (%s).",
				head, fmtPrice(ev.Price), ev.RealizedRR, ev.Strategy),
		}
	}
	return Alert{
		Level:   AlertInfo,
		Title:   string(ev.Type) + ": " + head,
		Message: fmt.Sprintf("%s at %s", head, fmtPrice(ev.Price)),
	}
}

// FormatSuppression renders a filter rejection for the audit channel.
func FormatSuppression(s filter.Suppression) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Suppressed: %s %s %s", s.Symbol, s.Timeframe, s.Direction),
		Message: fmt.Sprintf("%s %s %s at %s suppressed: %s",
			s.Symbol, s.Timeframe, s.Direction, fmtPrice(s.Entry), s.Reason),
	}
}

// fmtPrice trims trailing zeros so crypto and FX quotes both read well.
func fmtPrice(p float64) string {
	s := fmt.Sprintf("%.6f", p)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
