package catalogue

// Stage gamified milestone reached at Threshold percent
type Stage struct {
	Name      string `json:"nome"`
	Threshold int    `json:"limite"`
}

// Stages ordered by ascending threshold
var Stages = []Stage{
	{"Início", 0},
	{"Explorador", 20},
	{"Aprendiz", 40},
	{"Dedicado", 60},
	{"Especialista", 80},
	{"Mestre", 100},
}

// Summary aggregate progress of a catalogue
type Summary struct {
	Total                  int    `json:"total"`
	Watched                int    `json:"assistidas"`
	Percent                int    `json:"percentual"`
	Stage                  Stage  `json:"estagio"`
	NextStage              *Stage `json:"proximoEstagio,omitempty"`
	LessonsUntilNextStage  int    `json:"aulasAteProximoEstagio"`
	LessonsUntilCompletion int    `json:"aulasAteConclusao"`
}

// Percent round(100*watched/total) clamped to [0,100], 0 when total is 0
func Percent(watched, total int) int {
	if total <= 0 || watched <= 0 {
		return 0
	}
	if watched >= total {
		return 100
	}
	// round half up without floats
	return (200*watched + total) / (2 * total)
}

// TotalLessons every lesson, locked ones included
func TotalLessons(c Catalogue) int {
	n := 0
	for _, m := range c {
		n += len(m.Lessons)
	}
	return n
}

// WatchedLessons number of watched lessons across the catalogue
func WatchedLessons(c Catalogue) int {
	n := 0
	for _, m := range c {
		for _, l := range m.Lessons {
			if l.Watched {
				n++
			}
		}
	}
	return n
}

// ProgressPercent overall watched percent, 0 for an empty catalogue
func ProgressPercent(c Catalogue) int {
	return Percent(WatchedLessons(c), TotalLessons(c))
}

func stageIndex(percent int) int {
	idx := 0
	for i, s := range Stages {
		if percent >= s.Threshold {
			idx = i
		}
	}
	return idx
}

// StageFor the stage with the highest threshold not above percent
func StageFor(percent int) Stage {
	return Stages[stageIndex(percent)]
}

// NextStage the stage after StageFor(percent), false at the final stage
func NextStage(percent int) (Stage, bool) {
	idx := stageIndex(percent) + 1
	if idx >= len(Stages) {
		return Stage{}, false
	}
	return Stages[idx], true
}

// LessonsUntilNextStage lessons still to watch before the next stage is reached
func LessonsUntilNextStage(percent, total, watched int) int {
	next, ok := NextStage(percent)
	if !ok || total <= 0 {
		return 0
	}
	// ceil(threshold/100 * total)
	need := (next.Threshold*total + 99) / 100
	if need <= watched {
		return 0
	}
	return need - watched
}

// LessonsUntilCompletion lessons left unwatched, never negative
func LessonsUntilCompletion(total, watched int) int {
	if watched >= total {
		return 0
	}
	return total - watched
}

// ModuleProgress watched and total lessons of m and the derived percent
func ModuleProgress(m *Module) (watched, total, percent int) {
	total = len(m.Lessons)
	for _, l := range m.Lessons {
		if l.Watched {
			watched++
		}
	}
	return watched, total, Percent(watched, total)
}

// Summarize the progress block shown beside the catalogue
func Summarize(c Catalogue) Summary {
	total, watched := TotalLessons(c), WatchedLessons(c)
	percent := Percent(watched, total)
	s := Summary{
		Total:                  total,
		Watched:                watched,
		Percent:                percent,
		Stage:                  StageFor(percent),
		LessonsUntilNextStage:  LessonsUntilNextStage(percent, total, watched),
		LessonsUntilCompletion: LessonsUntilCompletion(total, watched),
	}
	if next, ok := NextStage(percent); ok {
		s.NextStage = &next
	}
	return s
}
