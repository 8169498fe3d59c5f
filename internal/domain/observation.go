package domain

// Data source tags written to the data_source column.
const (
	SourceMETFrost     = "MET_FROST"
	SourceNOAACalc     = "NOAA_CALC"
	SourceGooglePollen = "GOOGLE_POLLEN"
	SourceFHISysvak    = "FHI_SYSVAK"
	SourceSSB          = "SSB"
	SourceGoogleTrends = "GOOGLE_TRENDS"
)

// WeatherDay is one location's aggregated weather for one local calendar day.
// Nil measurement fields were never observed that day. The met_warning_*
// columns belong to the warning feed and are never written from here.
type WeatherDay struct {
	LocationSK    int64    `json:"location_sk"`
	DateKey       int      `json:"date_sk"`
	TempAvg       *float64 `json:"temp_c_avg,omitempty"`
	TempMin       *float64 `json:"temp_c_min,omitempty"`
	TempMax       *float64 `json:"temp_c_max,omitempty"`
	PrecipSum     *float64 `json:"precip_mm_sum,omitempty"`
	WindMax       *float64 `json:"wind_mps_max,omitempty"`
	WindAvg       *float64 `json:"wind_mps_avg,omitempty"`
	GustMax       *float64 `json:"gust_mps_max,omitempty"`
	PressureAvg   *float64 `json:"pressure_hpa_avg,omitempty"`
	WindDirection *float64 `json:"wind_direction_deg,omitempty"`
	Humidity      *float64 `json:"humidity_pct,omitempty"`
	CloudCover    *float64 `json:"cloud_cover_pct,omitempty"`
	SnowDepth     *float64 `json:"snow_depth_cm,omitempty"`
	Visibility    *float64 `json:"visibility_m,omitempty"`
	ColdShock     bool     `json:"cold_shock_flag"`
	FrontPassage  bool     `json:"front_passage_flag"`
	DataSource    string   `json:"data_source"`
}

func (WeatherDay) Table() string         { return "fact_weather_day" }
func (WeatherDay) ConflictKey() []string { return []string{"location_sk", "date_sk"} }

func (w WeatherDay) Columns() []Column {
	return []Column{
		{"location_sk", w.LocationSK},
		{"date_sk", w.DateKey},
		{"temp_c_avg", w.TempAvg},
		{"temp_c_min", w.TempMin},
		{"temp_c_max", w.TempMax},
		{"precip_mm_sum", w.PrecipSum},
		{"wind_mps_max", w.WindMax},
		{"wind_mps_avg", w.WindAvg},
		{"gust_mps_max", w.GustMax},
		{"pressure_hpa_avg", w.PressureAvg},
		{"wind_direction_deg", w.WindDirection},
		{"humidity_pct", w.Humidity},
		{"cloud_cover_pct", w.CloudCover},
		{"snow_depth_cm", w.SnowDepth},
		{"visibility_m", w.Visibility},
		{"cold_shock_flag", w.ColdShock},
		{"front_passage_flag", w.FrontPassage},
		{"data_source", w.DataSource},
	}
}

// DaylightDay is the computed daylight for one location and date.
type DaylightDay struct {
	LocationSK      int64   `json:"location_sk"`
	DateKey         int     `json:"date_sk"`
	Sunrise         *string `json:"sunrise_time"`
	Sunset          *string `json:"sunset_time"`
	DaylightMinutes int     `json:"daylight_minutes"`
	DeltaMinutes    *int    `json:"daylight_delta_minutes"`
	PolarNight      bool    `json:"polar_night_flag"`
	MidnightSun     bool    `json:"midnight_sun_flag"`
	DataSource      string  `json:"data_source"`
}

func (DaylightDay) Table() string         { return "fact_daylight_day" }
func (DaylightDay) ConflictKey() []string { return []string{"location_sk", "date_sk"} }

func (d DaylightDay) Columns() []Column {
	return []Column{
		{"location_sk", d.LocationSK},
		{"date_sk", d.DateKey},
		{"sunrise_time", d.Sunrise},
		{"sunset_time", d.Sunset},
		{"daylight_minutes", d.DaylightMinutes},
		{"daylight_delta_minutes", d.DeltaMinutes},
		{"polar_night_flag", d.PolarNight},
		{"midnight_sun_flag", d.MidnightSun},
		{"data_source", d.DataSource},
	}
}

// PollenDay is one region's forecast level for one pollen type and day.
// Level is on the internal 0-4 scale; UPI keeps the provider's 0-5 value.
type PollenDay struct {
	Region           string  `json:"region"`
	DateKey          int     `json:"date_sk"`
	PollenType       string  `json:"pollen_type"`
	Level            int     `json:"pollen_level"`
	UPI              float64 `json:"upi_value"`
	PlantDescription *string `json:"plant_description,omitempty"`
	DataSource       string  `json:"data_source"`
}

func (PollenDay) Table() string { return "fact_pollen_day" }
func (PollenDay) ConflictKey() []string {
	return []string{"region", "date_sk", "pollen_type"}
}

func (p PollenDay) Columns() []Column {
	return []Column{
		{"region", p.Region},
		{"date_sk", p.DateKey},
		{"pollen_type", p.PollenType},
		{"pollen_level", p.Level},
		{"upi_value", p.UPI},
		{"plant_description", p.PlantDescription},
		{"data_source", p.DataSource},
	}
}

// VaccinationWeek is the weekly influenza vaccination count for a region.
// It shares fact_health_signal_week with the precomputed health signal
// columns, which it never writes.
type VaccinationWeek struct {
	Region                string  `json:"region"`
	ISOYear               int     `json:"iso_year"`
	ISOWeek               int     `json:"iso_week"`
	InfluenzaVaccinations float64 `json:"influenza_vaccinations"`
	DataSource            string  `json:"data_source"`
}

func (VaccinationWeek) Table() string { return "fact_health_signal_week" }
func (VaccinationWeek) ConflictKey() []string {
	return []string{"region", "iso_year", "iso_week"}
}

func (v VaccinationWeek) Columns() []Column {
	return []Column{
		{"region", v.Region},
		{"iso_year", v.ISOYear},
		{"iso_week", v.ISOWeek},
		{"influenza_vaccinations", v.InfluenzaVaccinations},
		{"data_source", v.DataSource},
	}
}

// MacroMonth is one macroeconomic indicator value for a month (DateKey is YYYYMM).
type MacroMonth struct {
	DateKey    int     `json:"date_sk"`
	Indicator  string  `json:"indicator_name"`
	Value      float64 `json:"indicator_value"`
	Region     string  `json:"region"`
	DataSource string  `json:"data_source"`
}

func (MacroMonth) Table() string { return "fact_macro_month" }
func (MacroMonth) ConflictKey() []string {
	return []string{"date_sk", "indicator_name", "region"}
}

func (m MacroMonth) Columns() []Column {
	return []Column{
		{"date_sk", m.DateKey},
		{"indicator_name", m.Indicator},
		{"indicator_value", m.Value},
		{"region", m.Region},
		{"data_source", m.DataSource},
	}
}

// TrendWeek is one search term's weekly relative interest in a region,
// scored against the mean of the returned series.
type TrendWeek struct {
	Region      string   `json:"region"`
	ISOYear     int      `json:"iso_year"`
	ISOWeek     int      `json:"iso_week"`
	SearchTerm  string   `json:"search_term"`
	Index       int      `json:"trend_index"`
	ZScore      float64  `json:"trend_z_score"`
	PctChange2w float64  `json:"trend_pct_change_2w"`
	AlertLevel  Severity `json:"trend_alert_level"`
	DataSource  string   `json:"data_source"`
}

func (TrendWeek) Table() string { return "fact_trends_region_week" }
func (TrendWeek) ConflictKey() []string {
	return []string{"region", "iso_year", "iso_week", "search_term"}
}

func (t TrendWeek) Columns() []Column {
	return []Column{
		{"region", t.Region},
		{"iso_year", t.ISOYear},
		{"iso_week", t.ISOWeek},
		{"search_term", t.SearchTerm},
		{"trend_index", t.Index},
		{"trend_z_score", t.ZScore},
		{"trend_pct_change_2w", t.PctChange2w},
		{"trend_alert_level", t.AlertLevel},
		{"data_source", t.DataSource},
	}
}
