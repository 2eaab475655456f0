package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overviewCatalogue() Catalogue {
	return Catalogue{
		{ID: 1, Name: "A", Column: 1, CreatedAt: millis(t0), Lessons: []*Lesson{
			{ID: 11, Title: "a1", VideoURL: "https://youtu.be/aaaaaaaaaaa", Watched: true},
			{ID: 12, Title: "a2", VideoURL: "https://example.com/a2.mp4", Locked: true},
		}},
		{ID: 2, Name: "B", Column: 0, CreatedAt: millis(t0), ReleaseDelayDays: 2, Lessons: []*Lesson{
			{ID: 21, Title: "b1", VideoURL: "https://vimeo.com/42"},
		}},
		{ID: 3, Name: "C", Column: 1, CreatedAt: millis(t0), Lessons: []*Lesson{}},
	}
}

func TestBuildOverview(t *testing.T) {
	ov := BuildOverview(overviewCatalogue(), OverviewFilter{}, t0)

	require.Len(t, ov.Modules, 3)
	a := ov.Modules[0]
	assert.False(t, a.EffectiveLocked)
	assert.Equal(t, 1, a.Watched)
	assert.Equal(t, 2, a.Total)
	assert.Equal(t, 50, a.Percent)
	assert.Equal(t, millis(t0), a.ReleaseAt)
	assert.Equal(t, "https://img.youtube.com/vi/aaaaaaaaaaa/hqdefault.jpg", a.Lessons[0].Thumbnail)
	assert.Empty(t, a.Lessons[1].Thumbnail)
	assert.True(t, a.Lessons[1].EffectiveLocked)
	assert.False(t, a.Lessons[0].EffectiveLocked)

	b := ov.Modules[1]
	assert.True(t, b.EffectiveLocked)
	assert.False(t, b.Locked)
	assert.Equal(t, millis(t0.Add(2*day)), b.ReleaseAt)
	assert.True(t, b.Lessons[0].EffectiveLocked)
	assert.Equal(t, "https://vumbnail.com/42.jpg", b.Lessons[0].Thumbnail)

	assert.Equal(t, []ColumnGroup{
		{Column: 1, Modules: []int64{1, 3}},
		{Column: 0, Modules: []int64{2}},
	}, ov.Columns)

	assert.Equal(t, 3, ov.Progress.Total)
	assert.Equal(t, 1, ov.Progress.Watched)
	assert.Equal(t, 33, ov.Progress.Percent)
}

func TestBuildOverview_Filters(t *testing.T) {
	c := overviewCatalogue()
	unlocked, column := false, 1

	ov := BuildOverview(c, OverviewFilter{Locked: &unlocked}, t0)
	assert.Len(t, ov.Modules, 2)

	ov = BuildOverview(c, OverviewFilter{Column: &column}, t0)
	require.Len(t, ov.Modules, 2)
	assert.Equal(t, int64(3), ov.Modules[1].ID)

	column = 0
	ov = BuildOverview(c, OverviewFilter{Locked: &unlocked, Column: &column}, t0)
	assert.Empty(t, ov.Modules)
	assert.Empty(t, ov.Columns)
	assert.Equal(t, 3, ov.Progress.Total, "progress ignores filters")

	ov = BuildOverview(c, OverviewFilter{Locked: &unlocked, Column: &column}, t0.Add(2*day))
	assert.Len(t, ov.Modules, 1)
}

func TestBuildOverview_Empty(t *testing.T) {
	ov := BuildOverview(nil, OverviewFilter{}, t0)
	assert.NotNil(t, ov.Modules)
	assert.NotNil(t, ov.Columns)
	assert.Equal(t, 0, ov.Progress.Percent)
}
