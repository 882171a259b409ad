package scoring

// Maturity is the ordinal classification derived from the total points.
type Maturity string

// Maturity levels, lowest first.
const (
	Initial     Maturity = "Initial"
	Developing  Maturity = "Developing"
	Established Maturity = "Established"
	Leading     Maturity = "Leading"
)

// Lower bounds (inclusive) of each level above Initial.
const (
	developingFrom  = 101
	establishedFrom = 201
	leadingFrom     = 301
)

// Levels returns the maturity levels in ascending order.
func Levels() []Maturity {
	return []Maturity{Initial, Developing, Established, Leading}
}

// Classify maps a total point score to its maturity level.
func Classify(total float64) Maturity {
	switch {
	case total >= leadingFrom:
		return Leading
	case total >= establishedFrom:
		return Established
	case total >= developingFrom:
		return Developing
	default:
		return Initial
	}
}
