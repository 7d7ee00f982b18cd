package memdb

import "github.com/allenheltondev/dirt-man/internal/store"

// Tables bundles one in-memory instance of every table so a process can wire
// its workers from a single value instead of nine separate constructors.
// Every cmd binary in this repo runs against its own Tables today, which
// means the feeds below only see writes made in that same process; a real
// deployment points every worker at a shared external store behind the same
// interfaces instead.
type Tables struct {
	Readings   *ReadingStore
	Aggregates *AggregateStore
	Events     *EventStore
	Profiles   *ProfileStore
	Statuses   *StatusStore
	Insights   *InsightStore
	Requests   *RequestStore
	Rollups    *RollupStore
	Processed  *ProcessedStore
}

// NewTables constructs one fresh, empty instance of every table.
func NewTables() *Tables {
	return &Tables{
		Readings:   NewReadingStore(),
		Aggregates: NewAggregateStore(),
		Events:     NewEventStore(),
		Profiles:   NewProfileStore(),
		Statuses:   NewStatusStore(),
		Insights:   NewInsightStore(),
		Requests:   NewRequestStore(),
		Rollups:    NewRollupStore(),
		Processed:  NewProcessedStore(),
	}
}

var (
	_ store.ReadingStore         = (*ReadingStore)(nil)
	_ store.AggregateStore       = (*AggregateStore)(nil)
	_ store.EventStore           = (*EventStore)(nil)
	_ store.DeviceProfileStore   = (*ProfileStore)(nil)
	_ store.DeviceStatusStore    = (*StatusStore)(nil)
	_ store.InsightStore         = (*InsightStore)(nil)
	_ store.InsightRequestStore  = (*RequestStore)(nil)
	_ store.RollupStore          = (*RollupStore)(nil)
	_ store.ProcessedReadingStore = (*ProcessedStore)(nil)
)
