package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	rows []TimelineRow
}

func (r *memRepo) matches(row TimelineRow, filters TimelineFilters) bool {
	if !filters.From.IsZero() && row.At.Before(filters.From) {
		return false
	}
	if !filters.To.IsZero() && row.At.After(filters.To) {
		return false
	}
	if filters.Actor != "" && row.Actor != filters.Actor {
		return false
	}
	if filters.Entity != "" && row.Entity != filters.Entity {
		return false
	}
	if filters.Action != "" && row.Action != filters.Action {
		return false
	}
	return true
}

func (r *memRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	all, err := r.TimelineAll(ctx, filters)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	var out []TimelineRow
	for _, row := range r.rows {
		if r.matches(row, filters) {
			out = append(out, row)
		}
	}
	return out, nil
}

func seedRows(n int) []TimelineRow {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			Actor:    "U1",
			Action:   "update",
			Entity:   "groups",
			EntityID: fmt.Sprintf("G%d", i),
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&memRepo{rows: seedRows(25)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	svc := NewService(&memRepo{rows: seedRows(80)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelineFilters(t *testing.T) {
	rows := seedRows(3)
	rows[1].Actor = "U2"
	svc := NewService(&memRepo{rows: rows})

	result, err := svc.Timeline(context.Background(), TimelineFilters{Actor: "U2"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "U2", result.Rows[0].Actor)
}

func TestWriteCSV(t *testing.T) {
	rows := seedRows(2)
	rows[0].Meta = map[string]any{"field": "name"}

	data, err := WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "at,actor,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], `"{""field"":""name""}"`)
	require.Contains(t, lines[2], "G1")
}
