// Package report renders tournament data into spreadsheets for organizers.
package report

import (
	"fmt"
	"io"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/xuri/excelize/v2"
)

const StandingsSheet = "Standings"

var standingsHeaders = []string{"Rank", "Team", "Played", "Wins", "Losses", "Points", "Win %", "Status"}

// WriteStandings writes an xlsx workbook with one row per team in standings order.
func WriteStandings(w io.Writer, t *bracket.Tournament, standings []bracket.Standing) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StandingsSheet); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: t.Name, Creator: "ClanHub"}); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(StandingsSheet, "A1", &standingsHeaders); err != nil {
		return err
	}
	if err := f.SetCellStyle(StandingsSheet, "A1", "H1", header); err != nil {
		return err
	}

	for i, s := range standings {
		status := "Active"
		switch {
		case t.WinnerTeamID != nil && *t.WinnerTeamID == s.TeamID:
			status = "Champion"
		case s.Eliminated:
			status = "Eliminated"
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{s.Rank, s.TeamName, s.Played, s.Wins, s.Losses, s.Points, fmt.Sprintf("%.1f%%", s.WinPercent*100), status}
		if err := f.SetSheetRow(StandingsSheet, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(StandingsSheet, "A", "A", 8)
	f.SetColWidth(StandingsSheet, "B", "B", 24)
	f.SetColWidth(StandingsSheet, "C", "H", 12)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write standings workbook: %w", err)
	}
	return nil
}
