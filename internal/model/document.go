package model

// Document is a processed source document: binary parsing (PDF/DOCX/PPTX,
// OCR) happens upstream, the pipeline only ever sees extracted plain text.
type Document struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Text     string    `json:"extracted_text"`
	Sections []Section `json:"sections,omitempty"`
}

// Section is an optional structural subdivision of a document.
type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}
