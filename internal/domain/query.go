package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// QueryStatus enumerates lifecycle states for queries.
type QueryStatus string

const (
	QueryStatusOpen   QueryStatus = "Open"
	QueryStatusClosed QueryStatus = "Closed"
)

// ParseStatusFilter maps "All" (or empty) to nil and Open/Closed to a status.
func ParseStatusFilter(raw string) (*QueryStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return nil, nil
	case "open":
		s := QueryStatusOpen
		return &s, nil
	case "closed":
		s := QueryStatusClosed
		return &s, nil
	default:
		return nil, apperrors.NewValidationError("unknown status filter", map[string]any{"status": raw})
	}
}

// BaselineQueryNumber is the numeric suffix handed out when the store is empty.
const BaselineQueryNumber = 5201

const queryIDPrefix = "Q"

// FormatQueryID renders the human readable identifier, e.g. Q5201.
func FormatQueryID(n int) string {
	return queryIDPrefix + strconv.Itoa(n)
}

// ParseQueryID extracts the numeric suffix from an identifier of the form Q<digits>.
func ParseQueryID(id string) (int, error) {
	digits, ok := strings.CutPrefix(id, queryIDPrefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("query id %q lacks %q prefix", id, queryIDPrefix)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("query id %q has non-numeric suffix", id)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("query id %q: %w", id, err)
	}
	return n, nil
}

// Query is a client-submitted support request.
type Query struct {
	ID            string
	ClientEmail   string
	ClientMobile  string
	Heading       string
	Description   string
	Status        QueryStatus
	DateRaised    time.Time
	DateClosed    *time.Time
	ScreenshotRef *string
}

// HasScreenshot reports whether an attachment was stored with the query.
func (q *Query) HasScreenshot() bool {
	return q.ScreenshotRef != nil && *q.ScreenshotRef != ""
}

// ValidateSubmission rejects submissions with blank required fields.
func ValidateSubmission(email, mobile, heading, description string) error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"email", email},
		{"mobile", mobile},
		{"heading", heading},
		{"description", description},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("please fill all required fields", map[string]any{"missing": missing})
	}
	return nil
}
