package model

// Document is the plain text pulled out of an uploaded file.
type Document struct {
	SourceFile string   `json:"source_file"`
	Format     string   `json:"format"` // pdf, docx, txt
	Text       string   `json:"text"`
	Pages      []string `json:"pages"`
}

// Document format constants
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatTXT  = "txt"
)

// ChatMessage is one message of a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)
