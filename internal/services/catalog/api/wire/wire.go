// Package wire defines the JSON shapes exchanged by the catalog API and its
// clients.
package wire

// Record is the JSON form of one meteorite fall.
type Record struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Year     int      `json:"year"`
	Mass     float64  `json:"mass"`
	RecLat   *float64 `json:"reclat,omitempty"`
	RecLong  *float64 `json:"reclong,omitempty"`
	RecClass *string  `json:"recclass,omitempty"`
}

// PartitionSummary is the JSON form of one year's maximum mass.
type PartitionSummary struct {
	Key int     `json:"key"`
	Max float64 `json:"max"`
}

// YearSummary is the row shape of the legacy /years route.
type YearSummary struct {
	Year int     `json:"year"`
	Max  float64 `json:"max"`
}

// ErrorBody is the payload of every non-2xx API response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Status string `json:"status"`
}
