package points

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/common/types"
)

// PageSize is the number of history entries per page.
const PageSize = 5

// SortOrder selects how history entries are listed.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortOldest     SortOrder = "oldest"
	SortPointsHigh SortOrder = "points-high"
	SortPointsLow  SortOrder = "points-low"
)

// ParseSortOrder validates a sort order name.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case SortNewest, SortOldest, SortPointsHigh, SortPointsLow:
		return o, nil
	case "":
		return SortNewest, nil
	default:
		return "", errors.Errorf("unknown sort order %q", s)
	}
}

// Page is one page of a sorted history.
type Page struct {
	Entries    []types.HistoryEntry
	Page       int
	TotalPages int
	Total      int
}

// SortEntries returns a sorted copy of entries.
func SortEntries(entries []types.HistoryEntry, order SortOrder) []types.HistoryEntry {
	out := make([]types.HistoryEntry, len(entries))
	copy(out, entries)

	chronological := func(a, b types.HistoryEntry) bool {
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch order {
		case SortOldest:
			return chronological(a, b)
		case SortPointsHigh:
			if c := comparePoints(a, b); c != 0 {
				return c > 0
			}
			return chronological(b, a)
		case SortPointsLow:
			if c := comparePoints(a, b); c != 0 {
				return c < 0
			}
			return chronological(b, a)
		default:
			return chronological(b, a)
		}
	})
	return out
}

func comparePoints(a, b types.HistoryEntry) int {
	switch {
	case a.Points == nil && b.Points == nil:
		return 0
	case a.Points == nil:
		return -1
	case b.Points == nil:
		return 1
	default:
		return a.Points.Cmp(b.Points)
	}
}

// Paginate slices sorted entries into 1-based pages. Out of range pages are clamped.
func Paginate(entries []types.HistoryEntry, page int) Page {
	total := len(entries)
	totalPages := (total + PageSize - 1) / PageSize
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	p := Page{Page: page, TotalPages: totalPages, Total: total}
	start := (page - 1) * PageSize
	if start >= total {
		return p
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	p.Entries = entries[start:end]
	return p
}

// HistoryStore persists synced history entries per user.
type HistoryStore interface {
	// LastSyncedBlock returns the highest block already synced for user.
	LastSyncedBlock(ctx context.Context, user common.Address) (uint64, bool, error)

	// Save stores entries and advances the sync cursor of user to syncedTo.
	// Entries already stored are ignored.
	Save(ctx context.Context, user common.Address, entries []types.HistoryEntry, syncedTo uint64) error

	// List returns every stored entry of user.
	List(ctx context.Context, user common.Address) ([]types.HistoryEntry, error)
}

// MemoryHistoryStore is a HistoryStore kept in process memory.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	cursors map[common.Address]uint64
	entries map[common.Address]map[string]types.HistoryEntry
}

// NewMemoryHistoryStore creates an empty store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		cursors: make(map[common.Address]uint64),
		entries: make(map[common.Address]map[string]types.HistoryEntry),
	}
}

func (s *MemoryHistoryStore) LastSyncedBlock(_ context.Context, user common.Address) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.cursors[user]
	return b, ok, nil
}

func (s *MemoryHistoryStore) Save(_ context.Context, user common.Address, entries []types.HistoryEntry, syncedTo uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.entries[user]
	if !ok {
		byID = make(map[string]types.HistoryEntry)
		s.entries[user] = byID
	}
	for _, e := range entries {
		if _, exists := byID[e.ID()]; !exists {
			byID[e.ID()] = e
		}
	}
	if cur, ok := s.cursors[user]; !ok || syncedTo > cur {
		s.cursors[user] = syncedTo
	}
	return nil
}

func (s *MemoryHistoryStore) List(_ context.Context, user common.Address) ([]types.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.HistoryEntry, 0, len(s.entries[user]))
	for _, e := range s.entries[user] {
		out = append(out, e)
	}
	return out, nil
}

// HistorySource is the chain side of the history sync.
type HistorySource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
	FilterPointsAwarded(ctx context.Context, user common.Address, from, to uint64) ([]types.PointsAwardedEvent, error)
}

// History syncs PointsAwarded logs of a user into a HistoryStore.
type History struct {
	source     HistorySource
	store      HistoryStore
	startBlock uint64
	logger     *logrus.Logger
}

// NewHistory creates a history syncer. startBlock is where the first sync
// begins, usually the contract deployment block.
func NewHistory(source HistorySource, store HistoryStore, startBlock uint64, logger *logrus.Logger) *History {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &History{source: source, store: store, startBlock: startBlock, logger: logger}
}

// Sync fetches the award events of user since the last synced block.
//
// Returns:
// - int: the number of events fetched.
// - error: an error if the chain or the store fails; the cursor is not advanced then.
func (h *History) Sync(ctx context.Context, user common.Address) (int, error) {
	from := h.startBlock
	last, ok, err := h.store.LastSyncedBlock(ctx, user)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read sync cursor")
	}
	if ok && last+1 > from {
		from = last + 1
	}

	head, err := h.source.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get block number")
	}
	if from > head {
		return 0, nil
	}

	events, err := h.source.FilterPointsAwarded(ctx, user, from, head)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to fetch awards from %d to %d", from, head)
	}

	entries := make([]types.HistoryEntry, 0, len(events))
	for _, ev := range events {
		ts, err := h.source.BlockTime(ctx, ev.BlockNumber)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to get time of block %d", ev.BlockNumber)
		}
		entries = append(entries, types.HistoryEntry{
			TxHash:      ev.TxHash,
			LogIndex:    ev.LogIndex,
			User:        ev.User,
			Action:      ev.Action,
			Points:      ev.Points,
			BlockNumber: ev.BlockNumber,
			Timestamp:   ts,
		})
	}

	if err := h.store.Save(ctx, user, entries, head); err != nil {
		return 0, errors.Wrap(err, "failed to save history")
	}

	h.logger.WithFields(logrus.Fields{
		"address": user.Hex(),
		"from":    from,
		"to":      head,
		"events":  len(entries),
	}).Info("Points history synced")
	return len(entries), nil
}

// List returns one page of the stored history of user.
func (h *History) List(ctx context.Context, user common.Address, order SortOrder, page int) (Page, error) {
	entries, err := h.store.List(ctx, user)
	if err != nil {
		return Page{}, errors.Wrap(err, "failed to list history")
	}
	return Paginate(SortEntries(entries, order), page), nil
}
