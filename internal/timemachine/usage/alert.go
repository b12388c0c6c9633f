package usage

// Level is a budget alert level, ordered by severity.
type Level int

const (
	AlertNone Level = iota
	AlertWarning
	AlertCritical
	AlertEmergency
)

func (l Level) String() string {
	switch l {
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	case AlertEmergency:
		return "emergency"
	default:
		return "ok"
	}
}

// Thresholds are fractions of MaxDailyChars at which each alert level starts.
type Thresholds struct {
	Warning   float64
	Critical  float64
	Emergency float64
}

// DefaultThresholds returns 70% / 90% / 95%.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 0.7, Critical: 0.9, Emergency: 0.95}
}

// levelFor maps a usage fraction onto an alert level.
func (th Thresholds) levelFor(fraction float64) Level {
	switch {
	case th.Emergency > 0 && fraction >= th.Emergency:
		return AlertEmergency
	case th.Critical > 0 && fraction >= th.Critical:
		return AlertCritical
	case th.Warning > 0 && fraction >= th.Warning:
		return AlertWarning
	default:
		return AlertNone
	}
}
