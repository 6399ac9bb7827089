package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Skill is an indexed skill bundle.
type Skill struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Category      string    `json:"category" db:"category"`
	GithubPath    string    `json:"githubPath" db:"github_path"`
	UploadedBy    string    `json:"uploadedBy" db:"uploaded_by"`
	UploadedAt    time.Time `json:"uploadedAt" db:"uploaded_at"`
	DownloadCount int       `json:"downloadCount" db:"download_count"`
	TotalRating   int       `json:"totalRating" db:"total_rating"`
	RatingCount   int       `json:"ratingCount" db:"rating_count"`
	AverageRating float64   `json:"averageRating" db:"average_rating"`
	IsGlobal      bool      `json:"isGlobal" db:"is_global"`
	ParentSkillID *string   `json:"parentSkillId" db:"parent_skill_id"`
	Version       string    `json:"version" db:"version"`
}

// Agent is an indexed agent definition.
type Agent struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	GithubPath    string     `json:"githubPath" db:"github_path"`
	Color         *string    `json:"color,omitempty" db:"color"`
	Model         *string    `json:"model,omitempty" db:"model"`
	Tools         StringList `json:"tools,omitempty" db:"tools"`
	UploadedBy    string     `json:"uploadedBy" db:"uploaded_by"`
	UploadedAt    time.Time  `json:"uploadedAt" db:"uploaded_at"`
	DownloadCount int        `json:"downloadCount" db:"download_count"`
}

// Rule is an indexed rule file.
type Rule struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	GithubPath    string     `json:"githubPath" db:"github_path"`
	Paths         StringList `json:"paths,omitempty" db:"paths"`
	UploadedBy    string     `json:"uploadedBy" db:"uploaded_by"`
	UploadedAt    time.Time  `json:"uploadedAt" db:"uploaded_at"`
	DownloadCount int        `json:"downloadCount" db:"download_count"`
}

// Client owns projects.
type Client struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Project belongs to a client and may hold project-scoped skills.
type Project struct {
	ID          string    `json:"id" db:"id"`
	ClientID    string    `json:"clientId" db:"client_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ProjectWithClient is a project joined with its client's name.
type ProjectWithClient struct {
	Project
	ClientName string `json:"clientName" db:"client_name"`
}

// ProjectSkill is a skill as seen from one project.
type ProjectSkill struct {
	Skill
	IsCustomized bool `json:"isCustomized" db:"is_customized"`
}

// FileEntry describes one file held by the file store.
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	DownloadURL string `json:"downloadUrl"`
	Size        int64  `json:"size"`
}

// SkillDownload is the payload returned when a skill is downloaded.
type SkillDownload struct {
	Skill      Skill       `json:"skill"`
	GithubPath string      `json:"githubPath"`
	Files      []FileEntry `json:"files"`
}

// StringList is a list of strings stored as a JSON array column.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// Value implements driver.Valuer. Empty lists are stored as NULL.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
