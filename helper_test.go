package journal

import "time"

// TRY is a helper for test to create lira money from const
func TRY(v float64) Money { return M(v, "TRY") }

// day is a helper for test to create a timestamp at noon.
func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
