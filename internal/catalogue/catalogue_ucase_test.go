package catalogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/trilha/internal/infrastructure/driver"
	"github.com/pot-code/trilha/internal/infrastructure/idgen"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore in-memory CatalogueStore counting calls
type recordingStore struct {
	mu      sync.Mutex
	data    Catalogue
	loads   int
	saves   int
	saveErr error
}

func (s *recordingStore) Load(ctx context.Context) (Catalogue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.data.Clone(), nil
}

func (s *recordingStore) Save(ctx context.Context, c Catalogue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data = c.Clone()
	return nil
}

// sequenceIDs hand out the given ids in order, then keeps counting
type sequenceIDs struct {
	mu   sync.Mutex
	ids  []int64
	next int64
}

func (g *sequenceIDs) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id, nil
	}
	g.next++
	return g.next, nil
}

func newTestUseCase(t *testing.T, initial Catalogue) (*CatalogueUseCaseImpl, *recordingStore, *time.Time) {
	t.Helper()
	store := &recordingStore{data: initial}
	ids, err := idgen.NewTimeRandomGenerator(3)
	require.NoError(t, err)
	now := t0
	uc := NewCatalogueUseCase(store, ids, validate.NewValidator(validate.LocaleEN), func() time.Time { return now }, nil)
	return uc, store, &now
}

func twoLessonModule(watchedFirst bool) Catalogue {
	return Catalogue{{
		ID: 10, Name: "Fundamentos", CreatedAt: millis(t0),
		Lessons: []*Lesson{
			{ID: 11, Title: "Aula 1", VideoURL: "https://youtu.be/aaaaaaaaaaa", Watched: watchedFirst, Locked: true},
			{ID: 12, Title: "Aula 2", VideoURL: "https://youtu.be/bbbbbbbbbbb", Watched: true},
		},
	}}
}

func TestAddModule(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, Catalogue{})

	m, err := uc.AddModule(ctx, &ModuleInput{
		Name:             "  Intro  ",
		Cover:            "https://img/capa.png",
		Column:           1,
		ReleaseDelayDays: -2,
		Lessons: []*LessonInput{
			{ID: 999, Title: "Primeira", VideoURL: "https://youtu.be/aaaaaaaaaaa"},
			{Title: "Segunda", VideoURL: "https://vimeo.com/1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro", m.Name)
	assert.Equal(t, 1, m.Column)
	assert.Equal(t, 0, m.ReleaseDelayDays)
	assert.Equal(t, millis(t0), m.CreatedAt)
	require.Len(t, m.Lessons, 2)
	assert.NotEqual(t, int64(999), m.Lessons[0].ID)
	assert.NotEqual(t, m.ID, m.Lessons[0].ID)
	assert.NotEqual(t, m.Lessons[0].ID, m.Lessons[1].ID)
	for _, l := range m.Lessons {
		assert.False(t, l.Watched)
		assert.False(t, l.Locked)
	}

	assert.Equal(t, 1, store.saves)
	require.Len(t, store.data, 1)
	assert.Equal(t, m, store.data[0])
}

func TestAddModule_AppendsInOrder(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, DefaultCatalogue())

	_, err := uc.AddModule(ctx, &ModuleInput{Name: "Terceiro"})
	require.NoError(t, err)
	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.Equal(t, "Boas-vindas", c[0].Name)
	assert.Equal(t, "Terceiro", c[2].Name)
	assert.NotNil(t, c[2].Lessons)
}

func TestAddModule_Rejected(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, Catalogue{})

	inputs := []*ModuleInput{
		nil,
		{Name: "   "},
		{Name: "ok", Lessons: []*LessonInput{{Title: "sem video", VideoURL: " "}}},
		{Name: "ok", Lessons: []*LessonInput{nil}},
	}
	for _, in := range inputs {
		_, err := uc.AddModule(ctx, in)
		require.ErrorIs(t, err, ErrRejected)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.NotEmpty(t, ve.Fields)
	}
	assert.Zero(t, store.saves)

	_, err := uc.AddModule(ctx, &ModuleInput{Name: "ok", Lessons: []*LessonInput{{Title: "a", VideoURL: ""}}})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "aulas[0].videoUrl", ve.Fields[0].Domain)
}

func TestAddLesson(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, twoLessonModule(false))

	l, err := uc.AddLesson(ctx, 10, &LessonInput{Title: " Aula 3 ", VideoURL: "https://vimeo.com/3"})
	require.NoError(t, err)
	assert.Equal(t, "Aula 3", l.Title)
	assert.False(t, l.Watched)
	assert.False(t, l.Locked)
	require.Len(t, store.data[0].Lessons, 3)
	assert.Equal(t, l.ID, store.data[0].Lessons[2].ID)

	_, err = uc.AddLesson(ctx, 404, &LessonInput{Title: "x", VideoURL: "y"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
	_, err = uc.AddLesson(ctx, 10, &LessonInput{Title: "", VideoURL: "y"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, store.saves)
}

func TestMarkLessonWatched_Idempotent(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, twoLessonModule(false))

	before, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, WatchedLessons(before))

	require.NoError(t, uc.MarkLessonWatched(ctx, 10, 11))
	require.NoError(t, uc.MarkLessonWatched(ctx, 10, 11))

	after, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, WatchedLessons(after))
	assert.Equal(t, 1, store.saves, "re-marking must not save")

	assert.ErrorIs(t, uc.MarkLessonWatched(ctx, 10, 99), ErrLessonNotFound)
	assert.ErrorIs(t, uc.MarkLessonWatched(ctx, 99, 11), ErrModuleNotFound)
}

func TestMarkLessonWatched_PercentNeverDecreases(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, DefaultCatalogue())

	last := -1
	seed := DefaultCatalogue()
	for _, m := range seed {
		for _, l := range m.Lessons {
			for i := 0; i < 2; i++ {
				require.NoError(t, uc.MarkLessonWatched(ctx, m.ID, l.ID))
				ov, err := uc.Overview(ctx, OverviewFilter{})
				require.NoError(t, err)
				assert.GreaterOrEqual(t, ov.Progress.Percent, last)
				last = ov.Progress.Percent
			}
		}
	}
	assert.Equal(t, 100, last)
}

func TestEditModule_KeepsProgressByID(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, twoLessonModule(true))

	m, err := uc.EditModule(ctx, 10, &ModuleInput{
		Name:    "Fundamentos v2",
		Column:  3,
		Lessons: []*LessonInput{{ID: 11, Title: "Aula 1 revisada", VideoURL: "https://youtu.be/ccccccccccc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fundamentos v2", m.Name)
	assert.Equal(t, 3, m.Column)
	assert.Equal(t, millis(t0), m.CreatedAt)
	require.Len(t, m.Lessons, 1)
	assert.Equal(t, &Lesson{ID: 11, Title: "Aula 1 revisada", VideoURL: "https://youtu.be/ccccccccccc", Watched: true, Locked: true}, m.Lessons[0])

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.Nil(t, c.Module(10).Lesson(12))
	assert.Equal(t, 1, WatchedLessons(c))
}

func TestEditModule_ReorderKeepsEachLessonsState(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, twoLessonModule(false))

	m, err := uc.EditModule(ctx, 10, &ModuleInput{
		Name: "Fundamentos",
		Lessons: []*LessonInput{
			{ID: 12, Title: "Aula 2", VideoURL: "https://youtu.be/bbbbbbbbbbb"},
			{Title: "Nova", VideoURL: "https://vimeo.com/9"},
			{ID: 11, Title: "Aula 1", VideoURL: "https://youtu.be/aaaaaaaaaaa"},
			{ID: 11, Title: "Duplicada", VideoURL: "https://vimeo.com/10"},
			{ID: 555, Title: "Id desconhecido", VideoURL: "https://vimeo.com/11"},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Lessons, 5)

	assert.Equal(t, int64(12), m.Lessons[0].ID)
	assert.True(t, m.Lessons[0].Watched)
	assert.False(t, m.Lessons[0].Locked)

	assert.Equal(t, int64(11), m.Lessons[2].ID)
	assert.False(t, m.Lessons[2].Watched)
	assert.True(t, m.Lessons[2].Locked)

	for _, i := range []int{1, 3, 4} {
		l := m.Lessons[i]
		assert.NotContains(t, []int64{10, 11, 12, 555}, l.ID)
		assert.False(t, l.Watched)
		assert.False(t, l.Locked)
	}
}

func TestEditModule_PreservesLockAndRejects(t *testing.T) {
	ctx := context.Background()
	initial := twoLessonModule(false)
	initial[0].Locked = true
	uc, store, _ := newTestUseCase(t, initial)

	m, err := uc.EditModule(ctx, 10, &ModuleInput{Name: "x", ReleaseDelayDays: 5})
	require.NoError(t, err)
	assert.True(t, m.Locked)
	assert.Equal(t, 5, m.ReleaseDelayDays)
	assert.Empty(t, m.Lessons)

	_, err = uc.EditModule(ctx, 10, &ModuleInput{Name: ""})
	assert.ErrorIs(t, err, ErrRejected)
	_, err = uc.EditModule(ctx, 77, &ModuleInput{Name: "x"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Equal(t, 1, store.saves)
}

func TestSetLocks(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, twoLessonModule(false))

	require.NoError(t, uc.SetModuleLocked(ctx, 10, true))
	require.NoError(t, uc.SetLessonLocked(ctx, 10, 12, true))
	require.NoError(t, uc.SetLessonLocked(ctx, 10, 11, false))

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.True(t, c[0].Locked)
	assert.False(t, c[0].Lesson(11).Locked)
	assert.True(t, c[0].Lesson(12).Locked)
	assert.Equal(t, 3, store.saves)

	require.NoError(t, uc.SetModuleLocked(ctx, 10, true))
	assert.Equal(t, 3, store.saves, "unchanged flag is not saved")

	assert.ErrorIs(t, uc.SetModuleLocked(ctx, 1, true), ErrModuleNotFound)
	assert.ErrorIs(t, uc.SetLessonLocked(ctx, 10, 1, true), ErrLessonNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, DefaultCatalogue())
	seed := DefaultCatalogue()

	require.NoError(t, uc.DeleteLesson(ctx, seed[0].ID, seed[0].Lessons[0].ID))
	assert.ErrorIs(t, uc.DeleteLesson(ctx, seed[0].ID, seed[0].Lessons[0].ID), ErrLessonNotFound)
	require.NoError(t, uc.DeleteModule(ctx, seed[1].ID))
	assert.ErrorIs(t, uc.DeleteModule(ctx, seed[1].ID), ErrModuleNotFound)

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, 1, TotalLessons(c))
}

func TestMutation_SaveFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, twoLessonModule(false))
	boom := errors.New("disk full")
	store.saveErr = boom

	assert.ErrorIs(t, uc.MarkLessonWatched(ctx, 10, 11), boom)
	_, err := uc.AddModule(ctx, &ModuleInput{Name: "novo"})
	assert.ErrorIs(t, err, boom)

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.Equal(t, twoLessonModule(false), c)
}

func TestCatalogue_LoadsOnceAndReturnsCopies(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, twoLessonModule(false))

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	c[0].Name = "mutated"
	c[0].Lessons[0].Watched = true

	again, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.Equal(t, twoLessonModule(false), again)
	assert.Equal(t, 1, store.loads)
}

func TestIDs_SkipCollisions(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{data: twoLessonModule(false)}
	ids := &sequenceIDs{ids: []int64{10, 11, 12, 500, 12, 501}}
	uc := NewCatalogueUseCase(store, ids, validate.NewValidator(validate.LocaleEN), func() time.Time { return t0 }, nil)

	m, err := uc.AddModule(ctx, &ModuleInput{Name: "n", Lessons: []*LessonInput{{Title: "a", VideoURL: "b"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(500), m.ID)
	assert.Equal(t, int64(501), m.Lessons[0].ID)
}

func TestOverview_ThroughUseCase(t *testing.T) {
	ctx := context.Background()
	uc, _, now := newTestUseCase(t, Catalogue{})

	_, err := uc.AddModule(ctx, &ModuleInput{Name: "Agora", Lessons: []*LessonInput{{Title: "a", VideoURL: "https://youtu.be/aaaaaaaaaaa"}}})
	require.NoError(t, err)
	_, err = uc.AddModule(ctx, &ModuleInput{Name: "Em 3 dias", ReleaseDelayDays: 3})
	require.NoError(t, err)

	locked := true
	ov, err := uc.Overview(ctx, OverviewFilter{Locked: &locked})
	require.NoError(t, err)
	require.Len(t, ov.Modules, 1)
	assert.Equal(t, "Em 3 dias", ov.Modules[0].Name)
	assert.Equal(t, 1, ov.Progress.Total)

	*now = t0.Add(2 * day)
	ov, err = uc.Overview(ctx, OverviewFilter{Locked: &locked})
	require.NoError(t, err)
	assert.Len(t, ov.Modules, 1)

	*now = t0.Add(3 * day)
	ov, err = uc.Overview(ctx, OverviewFilter{Locked: &locked})
	require.NoError(t, err)
	assert.Empty(t, ov.Modules)
}

func TestUseCase_WithKVStore(t *testing.T) {
	ctx := context.Background()
	kv := driver.NewMemoryKV()
	ids, err := idgen.NewTimeRandomGenerator(3)
	require.NoError(t, err)
	newUC := func() *CatalogueUseCaseImpl {
		return NewCatalogueUseCase(NewKVStore(kv, testKey, DefaultCatalogue(), nil), ids,
			validate.NewValidator(validate.LocaleEN), time.Now, nil)
	}

	first := newUC()
	seed := DefaultCatalogue()
	require.NoError(t, first.MarkLessonWatched(ctx, seed[0].ID, seed[0].Lessons[1].ID))
	_, err = first.AddModule(ctx, &ModuleInput{Name: "Extra"})
	require.NoError(t, err)

	restarted := newUC()
	c, err := restarted.Catalogue(ctx)
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.True(t, c[0].Lessons[1].Watched)
	assert.Equal(t, "Extra", c[2].Name)
}

func TestUseCase_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newTestUseCase(t, Catalogue{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.AddModule(ctx, &ModuleInput{Name: "m", Lessons: []*LessonInput{{Title: "a", VideoURL: "b"}}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := uc.Catalogue(ctx)
	require.NoError(t, err)
	assert.Len(t, c, 20)
	assert.Len(t, c.ids(), 40)
	assert.Equal(t, 20, store.saves)
}

func TestAddModule_LongReleaseDelay(t *testing.T) {
	ctx := context.Background()
	uc, store, now := newTestUseCase(t, Catalogue{})

	m, err := uc.AddModule(ctx, &ModuleInput{Name: "Daqui a séculos", ReleaseDelayDays: 200000})
	require.NoError(t, err)
	assert.True(t, IsModuleLocked(m, *now))
	assert.True(t, IsModuleLocked(m, now.AddDate(500, 0, 0)))

	ov, err := uc.Overview(ctx, OverviewFilter{})
	require.NoError(t, err)
	require.Len(t, ov.Modules, 1)
	assert.Equal(t, now.AddDate(0, 0, 200000).UnixMilli(), ov.Modules[0].ReleaseAt)

	_, err = uc.AddModule(ctx, &ModuleInput{Name: "Nunca", ReleaseDelayDays: MaxReleaseDelayDays + 1})
	require.ErrorIs(t, err, ErrRejected)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "diasLiberacao", ve.Fields[0].Domain)

	_, err = uc.EditModule(ctx, m.ID, &ModuleInput{Name: "x", ReleaseDelayDays: MaxReleaseDelayDays + 1})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, store.saves)
}
