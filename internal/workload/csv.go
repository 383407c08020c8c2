package workload

import (
	"encoding/csv"
	"io"
	"strconv"
)

// DefaultColumn is the power column written by WriteCSV when none is given
const DefaultColumn = "power_kw"

// WriteCSV writes series as "hour,<column>" rows, readable as a power file
func WriteCSV(w io.Writer, series []float64, timestepHours float64, column string) error {
	if column == "" {
		column = DefaultColumn
	}
	if timestepHours <= 0 {
		timestepHours = 1
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hour", column}); err != nil {
		return err
	}
	for i, v := range series {
		row := []string{
			strconv.FormatFloat(float64(i)*timestepHours, 'f', -1, 64),
			strconv.FormatFloat(v, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
