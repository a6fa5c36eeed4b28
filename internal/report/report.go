// Package report renders run results and sentiment rankings to Excel
// workbooks for manual review.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/riching/stock-scraper/internal/crawler"
)

// WriteRunReport writes the crawl run summary to an xlsx file.
func WriteRunReport(path string, result *crawler.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Run"
	f.SetSheetName("Sheet1", sheet)

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Generated", time.Now().Format("2006-01-02 15:04:05")},
		{"Stocks", result.Codes},
		{"Duration", result.Duration.Round(time.Second).String()},
		{"Upstream calls", result.Stats.Calls},
		{"Saved", result.Stats.Saved},
		{"Skipped", result.Stats.Skipped},
		{"Failed", result.Stats.Failed},
		{"Matched", result.Stats.Matched},
		{"Mismatched", result.Stats.Mismatched},
		{"Coverage", result.Coverage},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// WriteHighScorers writes stocks whose sentiment score meets the threshold,
// highest first.
func WriteHighScorers(path string, scores map[string]float64, threshold float64) error {
	type entry struct {
		code  string
		score float64
	}
	var entries []entry
	for code, score := range scores {
		if score >= threshold {
			entries = append(entries, entry{code, score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].code < entries[j].code
	})

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Scores"
	f.SetSheetName("Sheet1", sheet)

	header := []interface{}{"Code", "Overall Score"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range entries {
		row := []interface{}{e.code, e.score}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write score row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}
