package dto

// LocationPayload is a client location reading. Error carries the client's
// description when no reading could be taken.
type LocationPayload struct {
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	AccuracyMeters *float64 `json:"accuracy_m"`
	Error          string   `json:"error,omitempty"`
}

// TimeclockActionRequest wraps the location that accompanies a timeclock action.
type TimeclockActionRequest struct {
	Location *LocationPayload `json:"location"`
}
