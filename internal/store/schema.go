package store

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/skuhub/internal/merge"
	"github.com/leapstack-labs/skuhub/pkg/adapter"
)

// masterColumnTypes maps content columns to a logical type.
var masterColumnTypes = map[string]string{
	"sku":                  "text not null",
	"weight":               "float",
	"volume":               "float",
	"package_count":        "int",
	"vendor":               "text",
	"final_location":       "text",
	"flow_code":            "int",
	"flow_desc":            "text",
	"first_seen":           "timestamp",
	"last_seen":            "timestamp",
	"stock_qty":            "float",
	"sqm":                  "float",
	"current_location":     "text",
	"current_status":       "text",
	"invoice_match_status": "text",
	"weight_error":         "float",
	"volume_error":         "float",
	"source_file":          "text",
	"sheet":                "text",
	"row_id":               "int",
	"sources":              "text",
}

func columnType(d *adapter.Dialect, logical string) string {
	notNull := strings.HasSuffix(logical, " not null")
	base := strings.TrimSuffix(logical, " not null")
	var t string
	switch base {
	case "text":
		t = d.TextType
	case "float":
		t = d.FloatType
	case "int":
		t = "INTEGER"
	case "timestamp":
		t = d.TimestampType
	case "json":
		t = d.JSONType
	case "date":
		t = "DATE"
	case "money":
		t = "DECIMAL(18,2)"
	case "area":
		t = "DECIMAL(18,4)"
	default:
		t = base
	}
	if notNull {
		t += " NOT NULL"
	}
	return t
}

func createTable(d *adapter.Dialect, name string, cols [][2]string, suffix string) string {
	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, c[0]+" "+columnType(d, c[1]))
	}
	if suffix != "" {
		defs = append(defs, suffix)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", name, strings.Join(defs, ",\n    "))
}

func masterColumns() [][2]string {
	cols := [][2]string{
		{merge.ColHash, "text not null"},
		{merge.ColRunID, "text not null"},
		{merge.ColMergedAt, "timestamp not null"},
	}
	for _, c := range merge.Columns {
		cols = append(cols, [2]string{c, masterColumnTypes[c]})
	}
	return cols
}

func schemaStatements(d *adapter.Dialect) []string {
	return []string{
		createTable(d, TableMaster, masterColumns(), "PRIMARY KEY (row_hash)"),
		createTable(d, TableExceptions, [][2]string{
			{"run_id", "text not null"},
			{"sku", "text not null"},
			{"reason", "text not null"},
			{"weight_error", "float"},
			{"volume_error", "float"},
			{"alternatives", "json"},
			{"details", "text"},
			{"created_at", "timestamp not null"},
		}, ""),
		createTable(d, TableOutliers, [][2]string{
			{"run_id", "text not null"},
			{"sku", "text not null"},
			{"metric", "text not null"},
			{"value", "float not null"},
			{"score", "float not null"},
			{"vendor", "text"},
			{"location", "text"},
		}, ""),
		createTable(d, TableOccupancy, [][2]string{
			{"date", "date not null"},
			{"warehouse", "text not null"},
			{"packages", "int not null"},
			{"area", "area not null"},
			{"daily_charge", "money not null"},
			{"cumulative_charge", "money not null"},
		}, "PRIMARY KEY (date, warehouse)"),
		createTable(d, TableVisits, [][2]string{
			{"sku", "text not null"},
			{"location", "text not null"},
			{"visited_at", "timestamp not null"},
			{"run_id", "text not null"},
		}, ""),
		"CREATE INDEX IF NOT EXISTS idx_sku_master_sku ON " + TableMaster + " (sku)",
		"CREATE INDEX IF NOT EXISTS idx_sku_exceptions_run ON " + TableExceptions + " (run_id)",
		"CREATE INDEX IF NOT EXISTS idx_sku_visits_sku ON " + TableVisits + " (sku)",
	}
}
