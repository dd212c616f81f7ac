package models

// DefaultOutputFile is the table name used when no output path is configured.
const DefaultOutputFile = "CSV_Bills.csv"

// File permissions
const (
	PermissionDirectory  = 0750
	PermissionReportFile = 0600
)
