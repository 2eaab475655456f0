package catalogue

import (
	"time"

	"github.com/pot-code/trilha/internal/video"
)

// OverviewFilter narrows the modules of an Overview, nil fields match everything
type OverviewFilter struct {
	Locked *bool
	Column *int
}

// LessonView lesson as presented to a student
type LessonView struct {
	ID              int64  `json:"id"`
	Title           string `json:"titulo"`
	VideoURL        string `json:"videoUrl"`
	Thumbnail       string `json:"miniatura,omitempty"`
	Watched         bool   `json:"assistida"`
	Locked          bool   `json:"bloqueado"`
	EffectiveLocked bool   `json:"bloqueadoEfetivo"`
}

// ModuleView module as presented to a student
type ModuleView struct {
	ID               int64        `json:"id"`
	Name             string       `json:"nome"`
	Cover            string       `json:"capa"`
	Column           int          `json:"coluna"`
	Locked           bool         `json:"bloqueado"`
	EffectiveLocked  bool         `json:"bloqueadoEfetivo"`
	ReleaseDelayDays int          `json:"diasLiberacao"`
	CreatedAt        int64        `json:"criadoEm"`
	ReleaseAt        int64        `json:"liberaEm"` // unix milliseconds
	Watched          int          `json:"assistidas"`
	Total            int          `json:"total"`
	Percent          int          `json:"percentual"`
	Lessons          []LessonView `json:"aulas"`
}

// ColumnGroup ids of the modules displayed in one column
type ColumnGroup struct {
	Column  int     `json:"coluna"`
	Modules []int64 `json:"modulos"`
}

// Overview read model of the whole catalogue at a point in time
type Overview struct {
	Modules  []ModuleView  `json:"modulos"`
	Columns  []ColumnGroup `json:"colunas"`
	Progress Summary       `json:"progresso"`
}

// BuildOverview project c at now. Progress always covers the whole catalogue,
// the filter only narrows Modules and Columns.
func BuildOverview(c Catalogue, filter OverviewFilter, now time.Time) *Overview {
	ov := &Overview{
		Modules:  []ModuleView{},
		Columns:  []ColumnGroup{},
		Progress: Summarize(c),
	}
	columns := make(map[int]int)
	for _, m := range FilterByLockState(c, filter.Locked, now) {
		if filter.Column != nil && m.Column != *filter.Column {
			continue
		}
		ov.Modules = append(ov.Modules, moduleView(m, now))

		idx, ok := columns[m.Column]
		if !ok {
			idx = len(ov.Columns)
			columns[m.Column] = idx
			ov.Columns = append(ov.Columns, ColumnGroup{Column: m.Column})
		}
		ov.Columns[idx].Modules = append(ov.Columns[idx].Modules, m.ID)
	}
	return ov
}

func moduleView(m *Module, now time.Time) ModuleView {
	watched, total, percent := ModuleProgress(m)
	mv := ModuleView{
		ID:               m.ID,
		Name:             m.Name,
		Cover:            m.Cover,
		Column:           m.Column,
		Locked:           m.Locked,
		EffectiveLocked:  IsModuleLocked(m, now),
		ReleaseDelayDays: m.ReleaseDelayDays,
		CreatedAt:        m.CreatedAt,
		ReleaseAt:        ModuleReleaseAt(m).UnixMilli(),
		Watched:          watched,
		Total:            total,
		Percent:          percent,
		Lessons:          make([]LessonView, 0, len(m.Lessons)),
	}
	for _, l := range m.Lessons {
		mv.Lessons = append(mv.Lessons, LessonView{
			ID:              l.ID,
			Title:           l.Title,
			VideoURL:        l.VideoURL,
			Thumbnail:       video.Thumbnail(l.VideoURL),
			Watched:         l.Watched,
			Locked:          l.Locked,
			EffectiveLocked: IsLessonLocked(m, l, now),
		})
	}
	return mv
}
