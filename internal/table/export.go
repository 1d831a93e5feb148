package table

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"admybrand-insights/backend-go/internal/models"
)

var csvHeader = []string{"Rank", "Name", "Symbol", "Price", "Change (24h)", "Market Cap", "Volume (24h)"}

// WriteCSV writes the header and one row per record, in order. Raw decimal
// strings are written as received; the change column gets a "%" suffix.
func WriteCSV(w io.Writer, records []models.AssetRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Rank),
			r.Name,
			r.Symbol,
			r.Price,
			r.Change + "%",
			r.MarketCap,
			r.Volume24h,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func CSV(records []models.AssetRecord) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = WriteCSV(&buf, records)
	return buf.Bytes()
}

func ExportFilename(now time.Time) string {
	return "cryptocurrency-market-data-" + now.UTC().Format("2006-01-02") + ".csv"
}
