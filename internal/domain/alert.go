package domain

import "encoding/json"

// AlertTypeCombined is the only alert type the correlator writes.
const AlertTypeCombined = "combined"

// Alert is the combined weekly risk alert for one organization.
// Severity is never SeverityNone for a stored alert.
type Alert struct {
	OrgSK         int64    `json:"org_sk"`
	ISOYear       int      `json:"iso_year"`
	ISOWeek       int      `json:"iso_week"`
	AlertType     string   `json:"alert_type"`
	Level         Severity `json:"alert_level"`
	WeatherFlag   bool     `json:"weather_alert_flag"`
	HealthFlag    bool     `json:"health_alert_flag"`
	TrendsFlag    bool     `json:"trends_alert_flag"`
	AffectedBases []string `json:"affected_bases"`
	Message       string   `json:"message"`
}

func (Alert) Table() string { return "alert_risk_week" }
func (Alert) ConflictKey() []string {
	return []string{"org_sk", "iso_year", "iso_week", "alert_type"}
}

// Columns stores affected_bases as a JSON array so both drivers accept it.
func (a Alert) Columns() []Column {
	bases := a.AffectedBases
	if bases == nil {
		bases = []string{}
	}
	encoded, _ := json.Marshal(bases) //nolint:errcheck // []string always marshals
	return []Column{
		{"org_sk", a.OrgSK},
		{"iso_year", a.ISOYear},
		{"iso_week", a.ISOWeek},
		{"alert_type", a.AlertType},
		{"alert_level", a.Level},
		{"weather_alert_flag", a.WeatherFlag},
		{"health_alert_flag", a.HealthFlag},
		{"trends_alert_flag", a.TrendsFlag},
		{"affected_bases", string(encoded)},
		{"message", a.Message},
	}
}

// WeatherSignal is the subset of a weather day the correlator reads.
type WeatherSignal struct {
	LocationSK      int64
	DateKey         int
	ColdShock       bool
	FrontPassage    bool
	MetWarningLevel int
}

// HealthSignal is the precomputed weekly health signal for a region.
type HealthSignal struct {
	Level          Severity
	InfluenzaCases *int64
	IllnessZScore  *float64
}

// TrendSignal is one search term whose stored alert level is set.
type TrendSignal struct {
	SearchTerm string
	Level      Severity
	ZScore     float64
}
