// Package journeys projects the path a visitor took up to a conversion.
package journeys

import (
	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/sessions"
)

// Journey is the ordered list of visits leading to a conversion.
// IsPartial marks a direct conversion with no prior navigation. IsSynthetic
// marks a journey rebuilt from the conversion alone because the session had
// no page view at or before it.
type Journey struct {
	ConversionID string           `json:"conversion_id"`
	Visits       []sessions.Visit `json:"visits"`
	IsPartial    bool             `json:"is_partial"`
	IsSynthetic  bool             `json:"is_synthetic"`
}

// Build keeps the session's visits entered at or before the conversion. The
// session may be nil when none could be reconstructed.
func Build(conv conversions.Conversion, session *sessions.Session) Journey {
	j := Journey{ConversionID: conv.ConversionID}

	if session != nil {
		for _, v := range session.Visits {
			if v.EntryTime.After(conv.CreatedAt) {
				continue
			}
			v.IsConversionPage = false
			j.Visits = append(j.Visits, v)
		}
	}

	if len(j.Visits) == 0 {
		j.Visits = []sessions.Visit{synthetic(conv)}
		j.IsSynthetic = true
		j.IsPartial = true
		return j
	}

	last := &j.Visits[len(j.Visits)-1]
	if goals.NormalizePath(last.PageURL) == goals.NormalizePath(conv.PageURL) {
		last.IsConversionPage = true
	}
	j.IsPartial = len(j.Visits) == 1
	return j
}

func synthetic(conv conversions.Conversion) sessions.Visit {
	return sessions.Visit{
		VisitID:          sessions.VisitID(conv.SessionID, 1),
		SessionID:        conv.SessionID,
		PageURL:          conv.PageURL,
		SequenceNumber:   1,
		EntryTime:        conv.CreatedAt,
		IsEntry:          true,
		IsConversionPage: true,
	}
}
