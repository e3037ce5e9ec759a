package utils

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Summary describes a set of ratings.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// roundFloat rounds a float64 to a specified number of decimal places.
func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// Summarize computes count, mean, sample standard deviation, median and range
// of data, rounded to 4 decimals. Nil values are ignored; an empty input
// yields the zero Summary and a single value has a standard deviation of 0.
func Summarize(data []*float64) Summary {
	values := make(stats.Float64Data, 0, len(data))
	for _, v := range data {
		if v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return Summary{}
	}

	// errors below only signal empty input, ruled out above
	mean, _ := values.Mean()
	median, _ := values.Median()
	lo, _ := values.Min()
	hi, _ := values.Max()
	sd := 0.0
	if len(values) > 1 {
		sd, _ = values.StandardDeviationSample()
	}

	return Summary{
		Count:  len(values),
		Mean:   roundFloat(mean, 4),
		StdDev: roundFloat(sd, 4),
		Median: roundFloat(median, 4),
		Min:    lo,
		Max:    hi,
	}
}
