package storage

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DefaultConversationTitle = "New Conversation"
)

type User struct {
	ID           int64
	OpenID       string
	Name         *string
	Email        *string
	LoginMethod  *string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSignedIn time.Time
}

type Conversation struct {
	ID         int64
	UserID     int64
	Title      string
	Model      string
	IsFavorite int
	Tags       *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	Metadata       *string
	CreatedAt      time.Time
}

type File struct {
	ID             int64
	UserID         int64
	ConversationID *int64
	Filename       string
	FileKey        string
	URL            string
	MimeType       *string
	Size           *int64
	ExtractedText  *string
	CreatedAt      time.Time
}

type CodeProject struct {
	ID          int64
	UserID      int64
	Name        string
	Description *string
	Language    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CodeFile struct {
	ID        int64
	ProjectID int64
	Filename  string
	Content   string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
