package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/go-huggingface/hub"
)

// Files fetched for a tokenizer repository. The first is required.
var (
	TokenizerFiles         = []string{"tokenizer.json"}
	TokenizerOptionalFiles = []string{"tokenizer_config.json", "special_tokens_map.json", "sentencepiece.bpe.model"}
	AdapterFiles           = []string{AdapterConfigFile}
)

// Hub fetches artifacts from the Hugging Face hub into a local cache.
type Hub struct {
	CacheDir string
	Token    string
}

// DefaultCacheDir mirrors the huggingface_hub default location.
func DefaultCacheDir() string {
	if v := os.Getenv("HF_HUB_CACHE"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "huggingface", "hub")
	}
	return filepath.Join(home, ".cache", "huggingface", "hub")
}

// Repo returns a hub handle for repoID using the configured cache and token.
func (h Hub) Repo(repoID string) *hub.Repo {
	dir := h.CacheDir
	if dir == "" {
		dir = DefaultCacheDir()
	}
	repo := hub.New(repoID).WithCacheDir(dir)
	if h.Token != "" {
		repo = repo.WithAuth(h.Token)
	}
	return repo
}

// Fetch downloads the required files (all must succeed) and any optional
// files that exist, returning the snapshot directory holding them.
func (h Hub) Fetch(repoID string, required, optional []string) (string, error) {
	if repoID == "" {
		return "", fmt.Errorf("empty repository id")
	}
	repo := h.Repo(repoID)
	var dir string
	for _, name := range required {
		p, err := repo.DownloadFile(name)
		if err != nil {
			return "", fmt.Errorf("download %s from %s: %w", name, repoID, err)
		}
		dir = filepath.Dir(p)
	}
	for _, name := range optional {
		if p, err := repo.DownloadFile(name); err == nil && dir == "" {
			dir = filepath.Dir(p)
		}
	}
	if dir == "" {
		return "", fmt.Errorf("nothing downloaded from %s", repoID)
	}
	return dir, nil
}

// FetchTokenizer downloads the tokenizer files of repoID.
func (h Hub) FetchTokenizer(repoID string) (string, error) {
	return h.Fetch(repoID, TokenizerFiles, TokenizerOptionalFiles)
}

// FetchAdapter downloads a PEFT adapter repository (config plus weights).
func (h Hub) FetchAdapter(repoID string) (string, error) {
	dir, err := h.Fetch(repoID, AdapterFiles, nil)
	if err != nil {
		return "", err
	}
	repo := h.Repo(repoID)
	for _, name := range adapterWeightFiles {
		if _, err := repo.DownloadFile(name); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no adapter weights in %s", repoID)
}
