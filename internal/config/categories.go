package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"izin-bot/internal/model"
)

// CategoriesFile is the on-disk layout of the leave category list.
type CategoriesFile struct {
	Categories []model.LeaveCategory `yaml:"categories"`
}

// DefaultCategories are used when no categories file is configured.
func DefaultCategories() []model.LeaveCategory {
	return []model.LeaveCategory{
		{Name: "jojo", Label: "izin jojo", Duration: 5 * time.Minute},
		{Name: "ee", Label: "izin ee", Duration: 10 * time.Minute},
		{Name: "sebat", Label: "izin sebat", Duration: 10 * time.Minute, Capacity: 3},
	}
}

// LoadCategories reads the categories file at path, or returns the
// defaults when path is empty. Unknown keys are rejected.
func LoadCategories(path string) ([]model.LeaveCategory, error) {
	if path == "" {
		return DefaultCategories(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return ParseCategories(data)
}

// ParseCategories decodes a single strict YAML document.
func ParseCategories(data []byte) ([]model.LeaveCategory, error) {
	var file CategoriesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("categories file is empty")
		}
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("categories file contains multiple documents or trailing content")
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("categories file defines no categories")
	}
	return file.Categories, nil
}
