// Package config provides configuration loading for studyrag.
package config

import (
	"fmt"

	"github.com/cognolabs/studyrag/internal/chunker"
	"github.com/cognolabs/studyrag/internal/embeddings"
	"github.com/cognolabs/studyrag/internal/llm"
	"github.com/cognolabs/studyrag/internal/logging"
	"github.com/cognolabs/studyrag/internal/vectorindex"
)

// Config is the root configuration.
type Config struct {
	Store       StoreConfig        `koanf:"store"`
	VectorIndex vectorindex.Config `koanf:"vectorindex"`
	Embeddings  embeddings.Config  `koanf:"embeddings"`
	LLM         llm.Config         `koanf:"llm"`
	Chunker     chunker.Config     `koanf:"chunker"`
	Logging     logging.Config     `koanf:"logging"`
}

// StoreConfig configures the relational store.
type StoreConfig struct {
	// DataDir is the directory holding the SQLite database.
	// Default: ~/.config/studyrag/data.
	DataDir string `koanf:"data_dir"`
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := c.VectorIndex.Validate(); err != nil {
		return fmt.Errorf("vectorindex: %w", err)
	}
	if err := c.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
