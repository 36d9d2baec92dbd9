// Package core defines the shared language of the skuhub system.
//
// This package contains:
//   - Domain entities (SKURecord, Visit, OccupancyRecord, Exception, Run)
//   - Service contracts (Adapter, RunStore)
//   - Error categories shared by every pipeline stage
//   - Date parsing and flow-state naming used at the ingestion boundary
//
// The Golden Rule: pkg/core imports ONLY stdlib and shopspring/decimal.
// All other packages depend on core, not the reverse.
package core
