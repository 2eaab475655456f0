package catalogue

import (
	"context"
	"time"
)

// Lesson a single video unit of a module
type Lesson struct {
	ID       int64  `json:"id"`
	Title    string `json:"titulo"`
	VideoURL string `json:"videoUrl"`
	Watched  bool   `json:"assistida"`
	Locked   bool   `json:"bloqueado"`
}

// Module a named, ordered group of lessons sharing one unlock policy
type Module struct {
	ID               int64     `json:"id"`
	Name             string    `json:"nome"`
	Cover            string    `json:"capa"`
	Locked           bool      `json:"bloqueado"`
	Column           int       `json:"coluna"`
	ReleaseDelayDays int       `json:"diasLiberacao"`
	CreatedAt        int64     `json:"criadoEm"` // unix milliseconds
	Lessons          []*Lesson `json:"aulas"`
}

// Catalogue every module in display order, persisted as a JSON array
type Catalogue []*Module

// Clock tells the current time
type Clock func() time.Time

// LessonInput lesson fields supplied by an administrator.
//
// ID is only read by EditModule, where it names the existing lesson to keep.
type LessonInput struct {
	ID       int64  `json:"id"`
	Title    string `json:"titulo" validate:"required"`
	VideoURL string `json:"videoUrl" validate:"required"`
}

// ModuleInput module fields supplied by an administrator
type ModuleInput struct {
	Name             string         `json:"nome" validate:"required"`
	Cover            string         `json:"capa"`
	Column           int            `json:"coluna"`
	ReleaseDelayDays int            `json:"diasLiberacao" validate:"max=1000000"` // same bound as MaxReleaseDelayDays
	Lessons          []*LessonInput `json:"aulas" validate:"dive,required"`
}

// CatalogueStore durable home of the catalogue
type CatalogueStore interface {
	Load(ctx context.Context) (Catalogue, error)
	Save(ctx context.Context, c Catalogue) error
}

// CatalogueUseCase the only way to change the catalogue
type CatalogueUseCase interface {
	AddModule(ctx context.Context, input *ModuleInput) (*Module, error)
	AddLesson(ctx context.Context, moduleID int64, input *LessonInput) (*Lesson, error)
	MarkLessonWatched(ctx context.Context, moduleID, lessonID int64) error
	EditModule(ctx context.Context, moduleID int64, input *ModuleInput) (*Module, error)
	SetModuleLocked(ctx context.Context, moduleID int64, locked bool) error
	SetLessonLocked(ctx context.Context, moduleID, lessonID int64, locked bool) error
	DeleteModule(ctx context.Context, moduleID int64) error
	DeleteLesson(ctx context.Context, moduleID, lessonID int64) error
	Catalogue(ctx context.Context) (Catalogue, error)
	Overview(ctx context.Context, filter OverviewFilter) (*Overview, error)
}

// Clone deep copy
func (l *Lesson) Clone() *Lesson {
	cp := *l
	return &cp
}

// Clone deep copy
func (m *Module) Clone() *Module {
	cp := *m
	cp.Lessons = make([]*Lesson, len(m.Lessons))
	for i, l := range m.Lessons {
		cp.Lessons[i] = l.Clone()
	}
	return &cp
}

// Lesson find a lesson by id, nil if absent
func (m *Module) Lesson(id int64) *Lesson {
	for _, l := range m.Lessons {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Clone deep copy, never nil
func (c Catalogue) Clone() Catalogue {
	cp := make(Catalogue, len(c))
	for i, m := range c {
		cp[i] = m.Clone()
	}
	return cp
}

// Module find a module by id, nil if absent
func (c Catalogue) Module(id int64) *Module {
	if i := c.moduleIndex(id); i >= 0 {
		return c[i]
	}
	return nil
}

func (c Catalogue) moduleIndex(id int64) int {
	for i, m := range c {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ids every module and lesson id in use
func (c Catalogue) ids() map[int64]bool {
	used := make(map[int64]bool)
	for _, m := range c {
		used[m.ID] = true
		for _, l := range m.Lessons {
			used[l.ID] = true
		}
	}
	return used
}

// normalize drop null entries and give every module a non-nil lesson list
func (c Catalogue) normalize() Catalogue {
	out := make(Catalogue, 0, len(c))
	for _, m := range c {
		if m == nil {
			continue
		}
		lessons := make([]*Lesson, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			if l != nil {
				lessons = append(lessons, l)
			}
		}
		m.Lessons = lessons
		out = append(out, m)
	}
	return out
}
