package render

import "encoding/json"

// Document is the normalized resume content handed to renderers. Fields the
// stored JSON does not carry stay zero and are skipped during rendering.
type Document struct {
	Title      string       `json:"-"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	Location   string       `json:"location"`
	Summary    string       `json:"summary"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     []string     `json:"skills"`
}

// Experience is a single work history entry.
type Experience struct {
	Company    string   `json:"company"`
	Role       string   `json:"role"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Highlights []string `json:"highlights"`
}

// Education is a single education entry.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// ParseDocument decodes stored resume content into a Document. Unknown keys
// are ignored so schema drift in stored resumes does not break exports.
func ParseDocument(title string, content json.RawMessage) (Document, error) {
	doc := Document{Title: title}
	if len(content) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return Document{}, err
	}
	doc.Title = title
	return doc, nil
}
