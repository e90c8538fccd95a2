package models

// AnnouncementStatusPublished is the only status the public board lists
const AnnouncementStatusPublished = "PUBLISHED"

// Announcement is a published notice from the public announcement board
type Announcement struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Status      string `json:"status"`
	Pinned      bool   `json:"pinned,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// AnnouncementPage is one page of the announcement list
type AnnouncementPage struct {
	Content       []Announcement `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}
