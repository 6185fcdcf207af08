package post

import "github.com/mx-space/mdx-core/internal/pkg/frontmatter"

// UpsertDTO is the request body for writing a document. Without sha the
// document must not exist yet.
type UpsertDTO struct {
	Path    string           `json:"path"    binding:"required"`
	Content string           `json:"content"`
	Meta    frontmatter.Meta `json:"meta"`
	SHA     string           `json:"sha"`
	NewPath string           `json:"newPath"`
	Message string           `json:"message"`
}

type ArchiveDTO struct {
	Path    string `json:"path"    binding:"required"`
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

type MoveDTO struct {
	From    string `json:"from"    binding:"required"`
	To      string `json:"to"      binding:"required"`
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

type DeleteQuery struct {
	Path    string `form:"path"    binding:"required"`
	SHA     string `form:"sha"`
	Message string `form:"message"`
}

// ListQuery filters a listing to one category.
type ListQuery struct {
	Category string `form:"category"`
}
