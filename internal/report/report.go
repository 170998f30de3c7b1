// Package report renders reservation listings as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"reservo/backend/internal/domain"
)

const (
	reservationsSheet = "Reservations"
	summarySheet      = "Summary"
)

var reservationColumns = []string{
	"ID", "Date", "Start", "End", "Service", "Staff", "Client", "Email", "Phone", "Status", "Price", "Notes",
}

var summaryColumns = []string{"Service", "Confirmed", "Cancelled", "Booked minutes", "Revenue"}

// ServiceTotal aggregates the reservations of one service. Only confirmed
// reservations count towards minutes and revenue.
type ServiceTotal struct {
	ServiceID    string
	Name         string
	Confirmed    int
	Cancelled    int
	Minutes      int
	RevenueCents int64
}

// Totals groups reservations by service, ordered by service name. Services
// with no reservations are omitted.
func Totals(reservations []domain.Reservation, services []domain.Service) []ServiceTotal {
	byID := indexServices(services)
	acc := make(map[string]*ServiceTotal)
	for _, r := range reservations {
		t, ok := acc[r.ServiceID]
		if !ok {
			t = &ServiceTotal{ServiceID: r.ServiceID, Name: serviceName(byID, r.ServiceID)}
			acc[r.ServiceID] = t
		}
		if !r.Active() {
			t.Cancelled++
			continue
		}
		t.Confirmed++
		t.Minutes += int(r.End - r.Start)
		t.RevenueCents += byID[r.ServiceID].PriceCents
	}

	out := make([]ServiceTotal, 0, len(acc))
	for _, t := range acc {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

// WriteXLSX writes a workbook with one row per reservation and a per-service
// summary sheet.
func WriteXLSX(w io.Writer, reservations []domain.Reservation, services []domain.Service) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reservationsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", summarySheet, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	byID := indexServices(services)
	rows := make([][]any, 0, len(reservations))
	for _, r := range reservations {
		price := ""
		if r.Active() {
			price = formatCents(byID[r.ServiceID].PriceCents)
		}
		rows = append(rows, []any{
			r.ID.String(),
			r.Date.String(),
			r.Start.String(),
			r.End.String(),
			serviceName(byID, r.ServiceID),
			r.StaffID,
			r.ClientName,
			r.ClientEmail,
			r.ClientPhone,
			string(r.Status),
			price,
			r.Notes,
		})
	}
	if err := writeTable(f, reservationsSheet, bold, reservationColumns, rows); err != nil {
		return err
	}

	totals := Totals(reservations, services)
	rows = rows[:0]
	for _, t := range totals {
		rows = append(rows, []any{t.Name, t.Confirmed, t.Cancelled, t.Minutes, formatCents(t.RevenueCents)})
	}
	if err := writeTable(f, summarySheet, bold, summaryColumns, rows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headerStyle int, columns []string, rows [][]any) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func indexServices(services []domain.Service) map[string]domain.Service {
	out := make(map[string]domain.Service, len(services))
	for _, s := range services {
		out[s.ID] = s
	}
	return out
}

// serviceName falls back to the id for services deleted since booking.
func serviceName(byID map[string]domain.Service, id string) string {
	if s, ok := byID[id]; ok && s.Name != "" {
		return s.Name
	}
	return id
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
