package models

import "time"

// Status represents the lifecycle state of a trailer download process.
type Status string

const (
	StatusPending            Status = "pending"
	StatusProcessing         Status = "processing"
	StatusFindingTrailerPage Status = "finding_trailer_page"
	StatusTryingToDownload   Status = "trying_to_download"
	StatusFoundTrailer       Status = "found_trailer"
	StatusSaving             Status = "saving"
	StatusDone               Status = "done"
	StatusNoTrailers         Status = "no_trailers"
	StatusError              Status = "error"
	StatusCancelled          Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order. Exposed through the
// /all-status endpoint so callers can interpret process records.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusFindingTrailerPage,
	StatusTryingToDownload,
	StatusFoundTrailer,
	StatusSaving,
	StatusDone,
	StatusNoTrailers,
	StatusError,
	StatusCancelled,
}

var terminalStatuses = map[Status]struct{}{
	StatusDone:       {},
	StatusNoTrailers: {},
	StatusError:      {},
	StatusCancelled:  {},
}

// IsTerminal reports whether a process in this status is completed.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Process is one user request to locate and download trailers.
// Exactly one of Name+Year or TrailerPage is set at creation time;
// TrailerPage is filled in later once a service discovers the page.
type Process struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	StatusDetails   string    `json:"statusDetails"`
	IsCompleted     bool      `json:"isCompleted"`
	ServiceName     string    `json:"serviceName"`
	Services        string    `json:"services"` // resolved adapter names, "|"-joined
	Name            *string   `json:"name"`
	Year            *int      `json:"year"`
	Lang            string    `json:"lang"`
	FullAudioTracks bool      `json:"fullAudioTracks"`
	TrailerPage     *string   `json:"trailerPage"`
	CallbackURL     *string   `json:"callbackUrl"`
	CallbackError   *string   `json:"callbackError"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Trailer is one downloaded and remuxed video belonging to a process.
type Trailer struct {
	ID           string    `json:"id"`
	ProcessID    string    `json:"processId"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Subtitle is one caption track belonging to a trailer.
type Subtitle struct {
	ID        string    `json:"id"`
	TrailerID string    `json:"trailerId"`
	Language  string    `json:"language"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TrailerDetail bundles a trailer with its subtitles for API responses.
type TrailerDetail struct {
	Trailer
	Subtitles []Subtitle `json:"subtitles"`
}

// ProcessDetail is the full process representation returned by the API and
// posted to callback URLs.
type ProcessDetail struct {
	Process
	Trailers []TrailerDetail `json:"trailers"`
}
