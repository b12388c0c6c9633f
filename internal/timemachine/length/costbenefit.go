package length

// CostBenefit scores a reply of lengthChars: the engagement score, discounted
// for replies that are too short or too long, per thousandth of a dollar of
// synthesis cost. Higher is better; zero cost yields 0.
func CostBenefit(lengthChars, engagement int, costPerChar float64) float64 {
	cost := float64(lengthChars) * costPerChar
	if cost <= 0 {
		return 0
	}
	return float64(engagement) * engagementMultiplier(lengthChars) / (cost * 1000)
}

func engagementMultiplier(n int) float64 {
	switch {
	case n < 200:
		return 0.6
	case n < 500:
		return 1.0
	case n < 800:
		return 0.9
	case n < 1200:
		return 0.7
	default:
		return 0.4
	}
}
