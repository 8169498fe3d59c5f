// Package domain models the fact records produced by the ingestion jobs and
// the derived alert records produced by the correlator.
//
// # Fact Tables
//
// Every record type names its table and its natural key. The store upserts on
// that key, so re-ingesting an overlapping date range corrects existing rows
// instead of appending duplicates:
//
//	fact_weather_day          (location_sk, date_sk)
//	fact_daylight_day         (location_sk, date_sk)
//	fact_pollen_day           (region, date_sk, pollen_type)
//	fact_health_signal_week   (region, iso_year, iso_week)
//	fact_macro_month          (date_sk, indicator_name, region)
//	fact_trends_region_week   (region, iso_year, iso_week, search_term)
//	alert_risk_week           (org_sk, iso_year, iso_week, alert_type)
//
// Only the columns a record carries are written. Columns owned by other
// producers (for example the precomputed health_alert_level on
// fact_health_signal_week) survive a vaccination upsert untouched.
//
// # Surrogate Keys
//
// date_sk is YYYYMMDD for daily facts and YYYYMM for monthly facts; both sort
// in chronological order. Weekly facts use ISO-8601 (iso_year, iso_week).
//
// # Severity
//
// Alert severities are ordered none < yellow < red. A none severity is stored
// as NULL; only yellow and red are ever written to an alert level column.
package domain
