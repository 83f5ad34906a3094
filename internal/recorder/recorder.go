package recorder

import "TakaneWatch/internal/model"

// Recorder persists scan history for later analysis.
type Recorder interface {
	RecordScan(rep *model.ScanReport) error
	RecordHighEvent(scanID string, res *model.ScanResult) error
	Close() error
}
