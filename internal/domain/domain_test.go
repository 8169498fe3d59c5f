package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValues_FollowsConflictKeyOrder(t *testing.T) {
	rec := domain.TrendWeek{Region: "Oslo", ISOYear: 2025, ISOWeek: 10, SearchTerm: "hoste"}
	assert.Equal(t, []any{"Oslo", 2025, 10, "hoste"}, domain.KeyValues(rec))
}

func TestRecords_ConflictKeysAreColumns(t *testing.T) {
	recs := []domain.Record{
		domain.WeatherDay{}, domain.DaylightDay{}, domain.PollenDay{},
		domain.VaccinationWeek{}, domain.MacroMonth{}, domain.TrendWeek{}, domain.Alert{},
	}
	for _, r := range recs {
		t.Run(r.Table(), func(t *testing.T) {
			names := map[string]bool{}
			for _, c := range r.Columns() {
				assert.False(t, names[c.Name], "duplicate column %s", c.Name)
				names[c.Name] = true
			}
			for _, k := range r.ConflictKey() {
				assert.True(t, names[k], "key column %s missing", k)
			}
		})
	}
}

func TestSeverity_ParseAndOrder(t *testing.T) {
	for in, want := range map[string]domain.Severity{
		"": domain.SeverityNone, "green": domain.SeverityNone, "none": domain.SeverityNone,
		"yellow": domain.SeverityYellow, "RED": domain.SeverityRed,
	} {
		got, err := domain.ParseSeverity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := domain.ParseSeverity("purple")
	require.Error(t, err)

	assert.Equal(t, domain.SeverityRed, domain.SeverityYellow.Max(domain.SeverityRed))
	assert.Equal(t, domain.SeverityYellow, domain.SeverityYellow.Max(domain.SeverityNone))
}

func TestSeverity_ValueAndScan(t *testing.T) {
	v, err := domain.SeverityNone.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = domain.SeverityRed.Value()
	require.NoError(t, err)
	assert.Equal(t, "red", v)

	var s domain.Severity
	require.NoError(t, s.Scan([]byte("yellow")))
	assert.Equal(t, domain.SeverityYellow, s)
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, domain.SeverityNone, s)
	require.Error(t, s.Scan(42))
}

func TestSeverity_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A domain.Severity `json:"a"`
		B domain.Severity `json:"b"`
	}{domain.SeverityNone, domain.SeverityRed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":"red"}`, string(b))
}

func TestIngestReport_FlattensDetails(t *testing.T) {
	r := domain.IngestReport{Status: domain.StatusPartialSuccess, RecordsInserted: 3, DurationMS: 12, RunID: "r1"}
	r.Set("locations_processed", 2)
	r.FailedTargets = []string{"ENBO"}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"partial_success","records_inserted":3,"duration_ms":12,
		"run_id":"r1","locations_processed":2,"failed_targets":["ENBO"]}`, string(b))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, domain.StatusSuccess, domain.StatusFor(0))
	assert.Equal(t, domain.StatusPartialSuccess, domain.StatusFor(1))
}

func TestAlert_AffectedBasesAsJSON(t *testing.T) {
	a := domain.Alert{OrgSK: 1, AlertType: domain.AlertTypeCombined, Level: domain.SeverityYellow}
	var bases any
	for _, c := range a.Columns() {
		if c.Name == "affected_bases" {
			bases = c.Value
		}
	}
	assert.Equal(t, "[]", bases)

	a.AffectedBases = []string{"ENBO", "ENEV"}
	for _, c := range a.Columns() {
		if c.Name == "affected_bases" {
			bases = c.Value
		}
	}
	assert.Equal(t, `["ENBO","ENEV"]`, bases)
}
