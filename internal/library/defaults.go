package library

// DefaultCategories is the starter content of an empty library.
func DefaultCategories() []Category {
	return []Category{
		{
			ID:    "t1",
			Icon:  "⚖️",
			Name:  "Labor Law",
			Color: "#d4af37",
			Articles: []Article{
				{
					ID:          "t1-i1",
					Name:        "Chapter One",
					Content:     "<h2>Legal text</h2><p>This is the first article. You can edit or delete it.</p>",
					Attachments: []AttachmentRef{},
					Sections:    []Section{},
				},
			},
		},
	}
}

// EnsureDefaults seeds the default categories when the tree is empty and
// reports whether it did.
func (d *Document) EnsureDefaults() bool {
	if len(d.Categories) > 0 {
		return false
	}
	d.Categories = DefaultCategories()
	return true
}
