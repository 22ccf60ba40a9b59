package config

import (
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// Database files created in the .chatrelay/ directory when a sqlite backed
// provider is selected without a path.
const (
	DefaultDBFile     = "chatrelay.db"
	DefaultVectorFile = "vectors.db"
)

// SQLitePath returns the message database path. The sqlite provider
// defaults to .chatrelay/chatrelay.db; other providers return the
// configured value unchanged.
func (c *Config) SQLitePath(configDir string) (string, error) {
	if c.Storage.Provider != "sqlite" || c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath, nil
	}

	path, err := dotdir.NewManager().File(configDir, DefaultDBFile)
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}
	return path, nil
}

// VectorTarget returns the vector store target. sqlite-vec defaults to
// .chatrelay/vectors.db and pgvector falls back to the storage DSN.
func (c *Config) VectorTarget(configDir string) (string, error) {
	if c.VectorStore.Target != "" {
		return c.VectorStore.Target, nil
	}

	switch c.VectorStore.Provider {
	case "sqlite-vec", "sqlitevec":
		path, err := dotdir.NewManager().File(configDir, DefaultVectorFile)
		if err != nil {
			return "", fmt.Errorf("resolving vector database path: %w", err)
		}
		return path, nil
	case "pgvector":
		return c.Storage.PostgresDSN, nil
	}
	return "", nil
}
