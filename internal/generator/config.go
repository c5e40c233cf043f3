package generator

// Config drives the mock account generator.
type Config struct {
	// Contact receives every generated notification.
	Contact string

	MinScore   int
	MaxScore   int
	MinBalance int // whole currency units
	MaxBalance int
	MaxDaysAgo int

	Seed int64
}

// DefaultConfig returns the ranges the dashboard demo data was drawn from.
func DefaultConfig() Config {
	return Config{
		Contact:    "billing-test@example.com",
		MinScore:   25,
		MaxScore:   95,
		MinBalance: 300,
		MaxBalance: 2000,
		MaxDaysAgo: 30,
		Seed:       42,
	}
}
