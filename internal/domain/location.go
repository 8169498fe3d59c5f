package domain

// Location is an airport or site. Reference data owned outside this service.
type Location struct {
	SK        int64    `json:"location_sk"`
	Code      string   `json:"icao_iata"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	StationID string   `json:"met_station_id,omitempty"`
	Region    string   `json:"region"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Organization is a current organizational unit; alerts are keyed by it.
type Organization struct {
	SK     int64  `json:"org_sk"`
	Name   string `json:"org_name"`
	Region string `json:"region"`
}
