package scoring

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/financials"
)

// AverageGrowth returns the growth multiplier of field across consecutive
// records: 1 + mean(end/start - 1) over every pair where both sides are
// present and start is non-zero. It returns 0 when no pair qualifies.
func AverageGrowth[R financials.Record](ticker string, records []R, field financials.Field) float64 {
	var sum float64
	var count int

	for i := 0; i+1 < len(records); i++ {
		start, ok := records[i].Value(field)
		if !ok {
			log.Info().Str("ticker", ticker).Str("field", string(field)).Msg("unknown growth field")
			return 0
		}
		end, _ := records[i+1].Value(field)

		if start == nil || end == nil {
			log.Info().
				Str("ticker", ticker).
				Str("field", string(field)).
				Str("from", records[i].Period()).
				Str("to", records[i+1].Period()).
				Msg("missing value, growth pair skipped")
			continue
		}
		if *start == 0 {
			log.Info().
				Str("ticker", ticker).
				Str("field", string(field)).
				Str("from", records[i].Period()).
				Msg("zero start value, growth pair skipped")
			continue
		}

		sum += *end / *start - 1
		count++
	}

	if count == 0 {
		return 0
	}
	return 1 + sum/float64(count)
}

// Average returns the mean of the present values of field, or 0 when there
// are none.
func Average[R financials.Record](records []R, field financials.Field) float64 {
	var sum float64
	var count int
	for _, r := range records {
		v, ok := r.Value(field)
		if !ok || v == nil {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
