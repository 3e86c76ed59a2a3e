package kbc

import (
	"path/filepath"
)

// FileDefinition describes an artifact exported to out/files.
type FileDefinition struct {
	Name        string
	FullPath    string
	Tags        []string
	IsPermanent bool
}

type fileManifest struct {
	Tags        []string `json:"tags"`
	IsPermanent bool     `json:"is_permanent"`
	IsPublic    bool     `json:"is_public"`
}

// CreateOutFileDefinition only computes the target path; the caller writes the file.
func (e *Environment) CreateOutFileDefinition(name string, tags []string, isPermanent bool) FileDefinition {
	if tags == nil {
		tags = []string{}
	}
	return FileDefinition{
		Name:        name,
		FullPath:    filepath.Join(e.FilesOutPath(), name),
		Tags:        tags,
		IsPermanent: isPermanent,
	}
}

// WriteManifest writes <file>.manifest next to the file.
func (e *Environment) WriteManifest(def FileDefinition) error {
	return writeJSON(def.FullPath+".manifest", fileManifest{
		Tags:        def.Tags,
		IsPermanent: def.IsPermanent,
	})
}
