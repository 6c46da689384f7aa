package timeframe

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DefaultLookbackDays is used when no "from" date is supplied.
const DefaultLookbackDays = 30

// ParserParams are the raw query values describing a window.
type ParserParams struct {
	FromDate string
	ToDate   string
	Tz       string
}

type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse turns inclusive calendar dates into a half-open window in the client timezone.
// "to" is inclusive: to=2024-01-31 covers the whole of the 31st.
func (p *Parser) Parse(params ParserParams) (Range, error) {
	tz := params.Tz
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Range{}, fmt.Errorf("error loading timezone: %w", err)
	}

	now := p.timeProvider.Now(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	from := today.AddDate(0, 0, -DefaultLookbackDays)
	if params.FromDate != "" {
		from, err = time.ParseInLocation(dateLayout, params.FromDate, loc)
		if err != nil {
			return Range{}, fmt.Errorf("invalid 'from' date: %w", err)
		}
	}

	to := today.AddDate(0, 0, 1)
	if params.ToDate != "" {
		end, err := time.ParseInLocation(dateLayout, params.ToDate, loc)
		if err != nil {
			return Range{}, fmt.Errorf("invalid 'to' date: %w", err)
		}
		to = end.AddDate(0, 0, 1)
	}

	return NewRange(from, to)
}
