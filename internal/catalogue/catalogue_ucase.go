package catalogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pot-code/trilha/internal/infrastructure/idgen"
	"github.com/pot-code/trilha/internal/infrastructure/logging"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// CatalogueUseCaseImpl serializes every read-modify-write of the catalogue.
//
// Mutations work on a copy, the copy is saved and only then replaces the
// in-memory catalogue, so a failed save leaves nothing half applied.
type CatalogueUseCaseImpl struct {
	store     CatalogueStore
	ids       idgen.Generator
	validator validate.Validator
	clock     Clock
	logger    *zap.Logger

	mu     sync.Mutex
	cached Catalogue
	loaded bool
}

var _ CatalogueUseCase = &CatalogueUseCaseImpl{}

// NewCatalogueUseCase the catalogue is loaded from store on first use, a nil clock means time.Now
func NewCatalogueUseCase(
	store CatalogueStore,
	ids idgen.Generator,
	validator validate.Validator,
	clock Clock,
	logger *zap.Logger,
) *CatalogueUseCaseImpl {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogueUseCaseImpl{
		store:     store,
		ids:       ids,
		validator: validator,
		clock:     clock,
		logger:    logger,
	}
}

// current must be called with mu held
func (cu *CatalogueUseCaseImpl) current(ctx context.Context) (Catalogue, error) {
	if !cu.loaded {
		c, err := cu.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		cu.cached = c
		cu.loaded = true
	}
	return cu.cached, nil
}

// mutate run fn on a copy of the catalogue and commit the copy when fn reports a change
func (cu *CatalogueUseCaseImpl) mutate(ctx context.Context, fn func(c *Catalogue) (bool, error)) error {
	cu.mu.Lock()
	defer cu.mu.Unlock()

	c, err := cu.current(ctx)
	if err != nil {
		return err
	}
	next := c.Clone()
	changed, err := fn(&next)
	if err != nil || !changed {
		return err
	}
	if err := cu.store.Save(ctx, next); err != nil {
		return err
	}
	cu.cached = next
	return nil
}

func (cu *CatalogueUseCaseImpl) log(ctx context.Context) *zap.Logger {
	return logging.ContextLoggerOr(ctx, cu.logger)
}

// idAllocator hand out ids unused by the catalogue it was created from
type idAllocator struct {
	gen  idgen.Generator
	used map[int64]bool
}

func (cu *CatalogueUseCaseImpl) allocator(c Catalogue) *idAllocator {
	return &idAllocator{gen: cu.ids, used: c.ids()}
}

func (a *idAllocator) next() (int64, error) {
	for {
		id, err := a.gen.Generate()
		if err != nil {
			return 0, fmt.Errorf("generate id: %w", err)
		}
		if !a.used[id] {
			a.used[id] = true
			return id, nil
		}
	}
}

func (cu *CatalogueUseCaseImpl) checkModuleInput(input *ModuleInput) error {
	if input == nil {
		return newValidationError([]*validate.FieldError{validate.NewFieldError("body", "module is required")})
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Cover = strings.TrimSpace(input.Cover)
	if input.ReleaseDelayDays < 0 {
		input.ReleaseDelayDays = 0
	}
	for _, l := range input.Lessons {
		trimLesson(l)
	}
	if errs := cu.validator.Struct(input); len(errs) > 0 {
		return newValidationError(errs)
	}
	return nil
}

func (cu *CatalogueUseCaseImpl) checkLessonInput(input *LessonInput) error {
	if input == nil {
		return newValidationError([]*validate.FieldError{validate.NewFieldError("body", "lesson is required")})
	}
	trimLesson(input)
	if errs := cu.validator.Struct(input); len(errs) > 0 {
		return newValidationError(errs)
	}
	return nil
}

func trimLesson(l *LessonInput) {
	if l == nil {
		return
	}
	l.Title = strings.TrimSpace(l.Title)
	l.VideoURL = strings.TrimSpace(l.VideoURL)
}

// AddModule append a module built from input, every lesson starts unwatched and unlocked
func (cu *CatalogueUseCaseImpl) AddModule(ctx context.Context, input *ModuleInput) (*Module, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.AddModule", "service")
	defer apmSpan.End()

	if err := cu.checkModuleInput(input); err != nil {
		return nil, err
	}

	var created *Module
	err := cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		ids := cu.allocator(*c)
		moduleID, err := ids.next()
		if err != nil {
			return false, err
		}
		m := &Module{
			ID:               moduleID,
			Name:             input.Name,
			Cover:            input.Cover,
			Column:           input.Column,
			ReleaseDelayDays: input.ReleaseDelayDays,
			CreatedAt:        cu.clock().UnixMilli(),
			Lessons:          make([]*Lesson, 0, len(input.Lessons)),
		}
		for _, li := range input.Lessons {
			lessonID, err := ids.next()
			if err != nil {
				return false, err
			}
			m.Lessons = append(m.Lessons, &Lesson{ID: lessonID, Title: li.Title, VideoURL: li.VideoURL})
		}
		*c = append(*c, m)
		created = m.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	cu.log(ctx).Info("module added",
		zap.Int64("catalogue.module.id", created.ID),
		zap.Int("catalogue.module.lessons", len(created.Lessons)))
	return created, nil
}

// AddLesson append an unwatched, unlocked lesson to the module
func (cu *CatalogueUseCaseImpl) AddLesson(ctx context.Context, moduleID int64, input *LessonInput) (*Lesson, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.AddLesson", "service")
	defer apmSpan.End()

	if err := cu.checkLessonInput(input); err != nil {
		return nil, err
	}

	var created *Lesson
	err := cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		m := c.Module(moduleID)
		if m == nil {
			return false, ErrModuleNotFound
		}
		id, err := cu.allocator(*c).next()
		if err != nil {
			return false, err
		}
		l := &Lesson{ID: id, Title: input.Title, VideoURL: input.VideoURL}
		m.Lessons = append(m.Lessons, l)
		created = l.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	cu.log(ctx).Info("lesson added",
		zap.Int64("catalogue.module.id", moduleID),
		zap.Int64("catalogue.lesson.id", created.ID))
	return created, nil
}

// MarkLessonWatched set the watched flag, marking twice changes nothing
func (cu *CatalogueUseCaseImpl) MarkLessonWatched(ctx context.Context, moduleID, lessonID int64) error {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.MarkLessonWatched", "service")
	defer apmSpan.End()

	return cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		l, err := findLesson(*c, moduleID, lessonID)
		if err != nil {
			return false, err
		}
		if l.Watched {
			return false, nil
		}
		l.Watched = true
		return true, nil
	})
}

// EditModule replace name, cover, column, delay and lessons of a module.
//
// An incoming lesson whose id names a lesson of this module keeps that
// lesson's id, watched and lock flags. Other incoming lessons are new, and
// lessons left out of input are dropped.
func (cu *CatalogueUseCaseImpl) EditModule(ctx context.Context, moduleID int64, input *ModuleInput) (*Module, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.EditModule", "service")
	defer apmSpan.End()

	if err := cu.checkModuleInput(input); err != nil {
		return nil, err
	}

	var edited *Module
	var kept, dropped int
	err := cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		m := c.Module(moduleID)
		if m == nil {
			return false, ErrModuleNotFound
		}
		previous := make(map[int64]*Lesson, len(m.Lessons))
		for _, l := range m.Lessons {
			previous[l.ID] = l
		}

		ids := cu.allocator(*c)
		lessons := make([]*Lesson, 0, len(input.Lessons))
		for _, li := range input.Lessons {
			if old, ok := previous[li.ID]; ok && li.ID != 0 {
				delete(previous, li.ID)
				lessons = append(lessons, &Lesson{
					ID:       old.ID,
					Title:    li.Title,
					VideoURL: li.VideoURL,
					Watched:  old.Watched,
					Locked:   old.Locked,
				})
				kept++
				continue
			}
			id, err := ids.next()
			if err != nil {
				return false, err
			}
			lessons = append(lessons, &Lesson{ID: id, Title: li.Title, VideoURL: li.VideoURL})
		}
		dropped = len(previous)

		m.Name = input.Name
		m.Cover = input.Cover
		m.Column = input.Column
		m.ReleaseDelayDays = input.ReleaseDelayDays
		m.Lessons = lessons
		edited = m.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	cu.log(ctx).Info("module edited",
		zap.Int64("catalogue.module.id", moduleID),
		zap.Int("catalogue.lessons.kept", kept),
		zap.Int("catalogue.lessons.dropped", dropped))
	return edited, nil
}

// SetModuleLocked set the explicit lock of a module
func (cu *CatalogueUseCaseImpl) SetModuleLocked(ctx context.Context, moduleID int64, locked bool) error {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.SetModuleLocked", "service")
	defer apmSpan.End()

	return cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		m := c.Module(moduleID)
		if m == nil {
			return false, ErrModuleNotFound
		}
		if m.Locked == locked {
			return false, nil
		}
		m.Locked = locked
		return true, nil
	})
}

// SetLessonLocked set the explicit lock of a lesson
func (cu *CatalogueUseCaseImpl) SetLessonLocked(ctx context.Context, moduleID, lessonID int64, locked bool) error {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.SetLessonLocked", "service")
	defer apmSpan.End()

	return cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		l, err := findLesson(*c, moduleID, lessonID)
		if err != nil {
			return false, err
		}
		if l.Locked == locked {
			return false, nil
		}
		l.Locked = locked
		return true, nil
	})
}

// DeleteModule remove a module with all its lessons
func (cu *CatalogueUseCaseImpl) DeleteModule(ctx context.Context, moduleID int64) error {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.DeleteModule", "service")
	defer apmSpan.End()

	err := cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		idx := c.moduleIndex(moduleID)
		if idx < 0 {
			return false, ErrModuleNotFound
		}
		*c = append((*c)[:idx], (*c)[idx+1:]...)
		return true, nil
	})
	if err == nil {
		cu.log(ctx).Info("module deleted", zap.Int64("catalogue.module.id", moduleID))
	}
	return err
}

// DeleteLesson remove one lesson of a module
func (cu *CatalogueUseCaseImpl) DeleteLesson(ctx context.Context, moduleID, lessonID int64) error {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.DeleteLesson", "service")
	defer apmSpan.End()

	return cu.mutate(ctx, func(c *Catalogue) (bool, error) {
		m := c.Module(moduleID)
		if m == nil {
			return false, ErrModuleNotFound
		}
		for i, l := range m.Lessons {
			if l.ID == lessonID {
				m.Lessons = append(m.Lessons[:i], m.Lessons[i+1:]...)
				return true, nil
			}
		}
		return false, ErrLessonNotFound
	})
}

// Catalogue a deep copy of the current catalogue
func (cu *CatalogueUseCaseImpl) Catalogue(ctx context.Context) (Catalogue, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.Catalogue", "service")
	defer apmSpan.End()

	cu.mu.Lock()
	defer cu.mu.Unlock()
	c, err := cu.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Overview project the current catalogue at the clock's now
func (cu *CatalogueUseCaseImpl) Overview(ctx context.Context, filter OverviewFilter) (*Overview, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CatalogueUseCaseImpl.Overview", "service")
	defer apmSpan.End()

	cu.mu.Lock()
	defer cu.mu.Unlock()
	c, err := cu.current(ctx)
	if err != nil {
		return nil, err
	}
	return BuildOverview(c, filter, cu.clock()), nil
}

func findLesson(c Catalogue, moduleID, lessonID int64) (*Lesson, error) {
	m := c.Module(moduleID)
	if m == nil {
		return nil, ErrModuleNotFound
	}
	l := m.Lesson(lessonID)
	if l == nil {
		return nil, ErrLessonNotFound
	}
	return l, nil
}
