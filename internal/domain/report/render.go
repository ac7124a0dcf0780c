package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV renders every dataset of data in order. Datasets after the first
// are separated by a blank line and preceded by their key.
func WriteCSV(w io.Writer, data *Data) error {
	cw := csv.NewWriter(w)
	for i, key := range data.Order {
		ds := data.DataSets[key]
		if i > 0 {
			if err := cw.Write(nil); err != nil {
				return err
			}
			if err := cw.Write([]string{key}); err != nil {
				return err
			}
		}
		if err := cw.Write(ds.Columns); err != nil {
			return err
		}
		for _, row := range ds.Rows {
			record := make([]string, len(ds.Columns))
			for j, col := range ds.Columns {
				record[j] = formatCell(row[col])
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderCSV is WriteCSV into a byte slice.
func RenderCSV(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, data); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *Cohort:
		if x == nil {
			return "0"
		}
		return strconv.Itoa(x.Size)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
