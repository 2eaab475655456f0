package catalogue

// DefaultCatalogue the catalogue served before anything was saved
func DefaultCatalogue() Catalogue {
	return Catalogue{
		{
			ID:     1700000000000001,
			Name:   "Boas-vindas",
			Cover:  "https://img.youtube.com/vi/jNQXAC9IVRw/hqdefault.jpg",
			Column: 0,
			Lessons: []*Lesson{
				{ID: 1700000000000002, Title: "Apresentação do curso", VideoURL: "https://www.youtube.com/watch?v=jNQXAC9IVRw"},
				{ID: 1700000000000003, Title: "Como usar a plataforma", VideoURL: "https://www.youtube.com/watch?v=aqz-KE-bpKQ"},
			},
		},
		{
			ID:     1700000000000004,
			Name:   "Primeiros passos",
			Cover:  "https://vumbnail.com/76979871.jpg",
			Column: 1,
			Lessons: []*Lesson{
				{ID: 1700000000000005, Title: "Configurando o ambiente", VideoURL: "https://vimeo.com/76979871"},
			},
		},
	}
}
