// Package ingest reads forecast and location upload files into typed rows.
package ingest

import (
	"io"

	"github.com/shopspring/decimal"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

var (
	forecastHeader = headerCell("item id", "itemid", "item_id")
	locationHeader = headerCell("location id", "locationid", "location_id")
)

// Parser reads CSV, TXT, XLS and XLSX files
type Parser struct{}

// NewParser creates a Parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseForecasts maps rows to forecasts. Without a header the columns are
// item id, current forecast and period start date.
func (p *Parser) ParseForecasts(name string, r io.Reader) ([]domain.ForecastRow, error) {
	t, err := readTable(name, r, forecastHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ForecastRow, 0, len(t.rows))
	for i, row := range t.rows {
		rows = append(rows, domain.ForecastRow{
			Row:             i + 1,
			ForecastID:      t.value(row, 0, "ForecastId", "Forecast ID", "ItemId", "Item ID"),
			CurrentForecast: forecastValue(t.value(row, 1, "CurrentForecast", "Current Forecast", "Forecast")),
			PeriodStartDate: t.value(row, 2,
				"ProjectionStartDate", "PeriodStartDate", "StartDate", "PeriodStart"),
		})
	}
	return rows, nil
}

// forecastValue reads a forecast cell; anything unparseable counts as 0
func forecastValue(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseLocations maps rows to store locations. Without a header the first
// seven columns are the location fields followed by the address fields.
func (p *Parser) ParseLocations(name string, r io.Reader) ([]domain.LocationRow, error) {
	t, err := readTable(name, r, locationHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.LocationRow, 0, len(t.rows))
	for i, row := range t.rows {
		rows = append(rows, domain.LocationRow{
			Row:          i + 1,
			LocationID:   t.value(row, 0, "LocationId"),
			LocationName: t.value(row, 1, "LocationName"),
			Description:  t.value(row, 2, "Description"),
			LocationType: t.value(row, 3, "LocationType"),
			PrimaryDC:    t.value(row, 4, "PrimaryDC"),
			Region:       t.value(row, 5, "Region"),
			District:     t.value(row, 6, "District"),
			Address: domain.LocationAddress{
				FirstName:  t.value(row, 7, "FirstName", "Address.FirstName"),
				LastName:   t.value(row, 8, "LastName", "Address.LastName"),
				Address1:   t.value(row, 9, "Address1", "Address.Address1"),
				City:       t.value(row, 10, "City", "Address.City"),
				State:      t.value(row, 11, "State", "Address.State"),
				PostalCode: t.value(row, 12, "PostalCode", "Zip", "Address.PostalCode"),
				Country:    t.value(row, 13, "Country", "Address.Country"),
				Phone:      t.value(row, 14, "Phone", "Address.Phone"),
				Email:      t.value(row, 15, "Email", "Address.Email"),
			},
		})
	}
	return rows, nil
}
