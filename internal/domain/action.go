package domain

import (
	"strings"
	"time"
)

// ActionKind is the user intent carried by a PendingAction.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
)

func (k ActionKind) Valid() bool {
	return k == ActionAdd || k == ActionRemove
}

// Day is a weekday of the anime-sama planning. Values are the French names
// the companion server expects.
type Day string

const (
	Monday    Day = "lundi"
	Tuesday   Day = "mardi"
	Wednesday Day = "mercredi"
	Thursday  Day = "jeudi"
	Friday    Day = "vendredi"
	Saturday  Day = "samedi"
	Sunday    Day = "dimanche"
)

// Days lists the planning days in week order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayAliases = map[string]Day{
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
	"sun": Sunday, "sunday": Sunday,
}

// ParseDay accepts French or English weekday names and three letter
// abbreviations. The empty string parses to no day.
func ParseDay(s string) (*Day, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, true
	}
	for _, d := range Days {
		if s == string(d) {
			return &d, true
		}
	}
	if d, ok := dayAliases[s]; ok {
		return &d, true
	}
	return nil, false
}

// DetectDay finds the first French weekday name contained in text, the way
// planning headings are written ("Lundi 13 octobre").
func DetectDay(text string) *Day {
	text = strings.ToLower(text)
	for _, d := range Days {
		if strings.Contains(text, string(d)) {
			return &d
		}
	}
	return nil
}

// Location describes where the server files an added anime.
func Location(day *Day) string {
	if day == nil {
		return "single_download"
	}
	return "auto_download (" + string(*day) + ")"
}

// PendingAction is a user intent not yet confirmed by the server.
type PendingAction struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"action"`
	Key       AnimeKey   `json:"animeUrl"`
	Day       *Day       `json:"day"`
	CreatedAt time.Time  `json:"createdAt"`
}
