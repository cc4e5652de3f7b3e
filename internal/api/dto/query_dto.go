package dto

// Values of the screenshot_uploaded column.
const (
	ScreenshotYes = "Yes"
	ScreenshotNo  = "No"
)

// ClientQueryRow is one entry of a client's query history.
type ClientQueryRow struct {
	QueryID            string  `json:"query_id"`
	ClientEmail        string  `json:"client_email"`
	ClientMobile       string  `json:"client_mobile"`
	Heading            string  `json:"query_heading"`
	Description        string  `json:"query_description"`
	Status             string  `json:"status"`
	DateRaised         string  `json:"date_raised"`
	DateClosed         *string `json:"date_closed"`
	ScreenshotPath     *string `json:"screenshot_path"`
	ScreenshotUploaded string  `json:"screenshot_uploaded"`
}

// SupportQueryRow is one row of the support table. Attachment paths and
// closing dates are not shown to support.
type SupportQueryRow struct {
	QueryID            string `json:"query_id"`
	ClientEmail        string `json:"client_email"`
	ClientMobile       string `json:"client_mobile"`
	Heading            string `json:"query_heading"`
	Description        string `json:"query_description"`
	Status             string `json:"status"`
	DateRaised         string `json:"date_raised"`
	ScreenshotUploaded string `json:"screenshot_uploaded"`
}

// NextIDResponse previews the identifier the next submission receives.
type NextIDResponse struct {
	QueryID string `json:"query_id"`
}

// SubmitQueryResponse acknowledges a stored query.
type SubmitQueryResponse struct {
	QueryID            string `json:"query_id"`
	Status             string `json:"status"`
	DateRaised         string `json:"date_raised"`
	ScreenshotUploaded string `json:"screenshot_uploaded"`
}

// CloseQueryResponse acknowledges a closed query.
type CloseQueryResponse struct {
	QueryID    string `json:"query_id"`
	Status     string `json:"status"`
	DateClosed string `json:"date_closed"`
}
