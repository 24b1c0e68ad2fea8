package sfr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row is one line of the tabulated star-formation history: the table lists
// 1+z, log10 halo mass, log10 SFR and log10 stellar mass.
type Row struct {
	ZPlus1      float64
	LogMass     float64
	LogSFR      float64
	LogStellarM float64
}

// Parse reads whitespace-separated four-column rows from r. Blank lines and
// lines starting with '#' are skipped. Any other malformed line is an error.
func Parse(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)
	var rows []Row
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("sfr table line %d: want 4 columns, got %d", lineNo, len(fields))
		}
		var vals [4]float64
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("sfr table line %d column %d: %w", lineNo, i+1, err)
			}
			vals[i] = v
		}
		if vals[0] <= 0 {
			return nil, fmt.Errorf("sfr table line %d: 1+z must be positive, got %g", lineNo, vals[0])
		}
		rows = append(rows, Row{
			ZPlus1:      vals[0],
			LogMass:     vals[1],
			LogSFR:      vals[2],
			LogStellarM: vals[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading sfr table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sfr table is empty")
	}
	return rows, nil
}
