package recorder

import "TakaneWatch/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *model.ScanReport) error                { return nil }
func (n *NoopRecorder) RecordHighEvent(_ string, _ *model.ScanResult) error { return nil }
func (n *NoopRecorder) Close() error                                        { return nil }
