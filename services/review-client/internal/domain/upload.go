package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxReportedErrors caps the row errors kept in an UploadSummary
const MaxReportedErrors = 10

// UploadKind names what a file carries
type UploadKind string

const (
	UploadForecast  UploadKind = "forecast"
	UploadLocations UploadKind = "locations"
)

// IsValid checks if the upload kind is known
func (k UploadKind) IsValid() bool {
	return k == UploadForecast || k == UploadLocations
}

// ForecastRow is one forecast record read from an upload file
type ForecastRow struct {
	Row             int
	ForecastID      string
	CurrentForecast decimal.Decimal
	// PeriodStartDate is YYYY-MM-DD; empty means today
	PeriodStartDate string
}

// LocationAddress is the postal block of a location record
type LocationAddress struct {
	FirstName  string `json:"FirstName"`
	LastName   string `json:"LastName"`
	Address1   string `json:"Address1"`
	City       string `json:"City"`
	State      string `json:"State"`
	PostalCode string `json:"PostalCode"`
	Country    string `json:"Country"`
	Phone      string `json:"Phone"`
	Email      string `json:"Email"`
}

// LocationRow is one store location record read from an upload file
type LocationRow struct {
	Row          int             `json:"-"`
	LocationID   string          `json:"LocationId"`
	LocationName string          `json:"LocationName"`
	Description  string          `json:"Description"`
	LocationType string          `json:"LocationType"`
	PrimaryDC    string          `json:"PrimaryDC"`
	Region       string          `json:"Region"`
	District     string          `json:"District"`
	Address      LocationAddress `json:"Address"`
}

// UploadSummary counts the outcome of an upload. Only the first
// MaxReportedErrors messages are kept.
type UploadSummary struct {
	Kind       UploadKind `json:"kind"`
	Total      int        `json:"total"`
	Success    int        `json:"success"`
	Failed     int        `json:"failed"`
	Errors     []string   `json:"errors,omitempty"`
	ErrorCount int        `json:"errorCount"`
}

// RecordSuccess counts a row that uploaded
func (s *UploadSummary) RecordSuccess() {
	s.Success++
}

// RecordFailure counts a failed row and keeps its message if there is room
func (s *UploadSummary) RecordFailure(row int, err error) {
	s.Failed++
	s.ErrorCount++
	if len(s.Errors) < MaxReportedErrors {
		s.Errors = append(s.Errors, fmt.Sprintf("Row %d: %v", row, err))
	}
}

// AllFailed reports an upload where nothing succeeded
func (s *UploadSummary) AllFailed() bool {
	return s.Failed > 0 && s.Success == 0
}
