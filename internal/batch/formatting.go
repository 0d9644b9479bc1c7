package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(results []FileResult, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(results)
	case FormatJSONL:
		return formatJSONL(results)
	case FormatCSV:
		return formatCSV(results)
	case FormatText, "":
		return formatText(results), nil
	default:
		return "", fmt.Errorf("unknown output format: %q", format)
	}
}

// formatJSON formats results as one JSON document.
func formatJSON(results []FileResult) (string, error) {
	batchResult := struct {
		Images []FileResult `json:"images"`
	}{Images: results}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatJSONL formats results as one JSON object per line.
func formatJSONL(results []FileResult) (string, error) {
	var output strings.Builder
	enc := json.NewEncoder(&output)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return "", err
		}
	}
	return output.String(), nil
}

// formatCSV formats results as one row per entry.
func formatCSV(results []FileResult) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"file", "entry_index", "x", "y", "w", "h", "message", "translation", "error"}}

	for _, res := range results {
		if len(res.Entries) == 0 {
			rows = append(rows, []string{res.File, "", "", "", "", "", "", "", res.Error})
			continue
		}
		for j, e := range res.Entries {
			rows = append(rows, []string{
				res.File,
				strconv.Itoa(j),
				strconv.Itoa(e.X),
				strconv.Itoa(e.Y),
				strconv.Itoa(e.W),
				strconv.Itoa(e.H),
				e.Message,
				e.Translation,
				"",
			})
		}
	}

	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText formats results as a "message -> translation" listing per file.
func formatText(results []FileResult) string {
	var output strings.Builder
	for i, res := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", res.File)
		if res.Error != "" {
			fmt.Fprintf(&output, "error: %s\n", res.Error)
			continue
		}
		for _, e := range res.Entries {
			fmt.Fprintf(&output, "%s -> %s\n", e.Message, e.Translation)
		}
	}
	return output.String()
}
