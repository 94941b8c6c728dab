package attendance

import "context"

// Repository は勤怠エントリ・休憩・位置情報イベントの永続化の抽象です。
type Repository interface {
	CreateEntry(ctx context.Context, entry *Entry) (*Entry, error)
	UpdateEntry(ctx context.Context, entry *Entry) (*Entry, error)
	FindEntryByID(ctx context.Context, id string) (*Entry, error)
	FindOpenEntryByWorker(ctx context.Context, workerID string) (*Entry, error)

	CreateBreak(ctx context.Context, brk *BreakInterval) (*BreakInterval, error)
	UpdateBreak(ctx context.Context, brk *BreakInterval) (*BreakInterval, error)
	FindBreakByID(ctx context.Context, id string) (*BreakInterval, error)
	FindOpenBreakByEntry(ctx context.Context, entryID string) (*BreakInterval, error)
	ListBreaksByEntry(ctx context.Context, entryID string) ([]*BreakInterval, error)

	AppendGeoEvent(ctx context.Context, event *GeoEvent) (*GeoEvent, error)
	ListGeoEventsByEntry(ctx context.Context, entryID string) ([]*GeoEvent, error)
}
