package cms

// RichText wraps plain text into a single-paragraph rich text document.
func RichText(text string) map[string]any {
	return map[string]any{
		"nodeType": "document",
		"data":     map[string]any{},
		"content": []any{
			map[string]any{
				"nodeType": "paragraph",
				"data":     map[string]any{},
				"content": []any{
					map[string]any{
						"nodeType": "text",
						"value":    text,
						"marks":    []any{},
						"data":     map[string]any{},
					},
				},
			},
		},
	}
}

// EntryLink references another entry, e.g. the author.
func EntryLink(id string) map[string]any {
	return map[string]any{
		"sys": map[string]any{
			"type":     "Link",
			"linkType": "Entry",
			"id":       id,
		},
	}
}
