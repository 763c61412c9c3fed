package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"snf_underwriting/pkg/core/docs"
	"snf_underwriting/pkg/core/pipeline"
)

// readFiles loads each path into an upload descriptor.
func readFiles(paths []string) ([]docs.File, error) {
	files := make([]docs.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, docs.File{
			Name:     filepath.Base(p),
			MimeType: mime.TypeByExtension(filepath.Ext(p)),
			Data:     data,
			Size:     int64(len(data)),
		})
	}
	return files, nil
}

// parseFacility reads "name=file1,file2".
func parseFacility(arg string) (pipeline.FacilityUpload, error) {
	name, list, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(list) == "" {
		return pipeline.FacilityUpload{}, fmt.Errorf("invalid --facility %q, want name=file1,file2", arg)
	}
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	files, err := readFiles(paths)
	if err != nil {
		return pipeline.FacilityUpload{}, err
	}
	return pipeline.FacilityUpload{Name: name, Files: files}, nil
}
