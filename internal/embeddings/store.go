package embeddings

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"attendance/internal/logger"
)

// Snapshot is one immutable generation of the known-embeddings matrix.
// Vectors is row-major N×Dim; Names runs parallel to the rows. Snapshots are
// never mutated after publication, so readers can hold one across a reload.
type Snapshot struct {
	Vectors []float32
	Names   []string
	Dim     int
}

// Count returns the number of known embeddings.
func (s *Snapshot) Count() int {
	return len(s.Names)
}

// Row returns the i-th embedding vector as a sub-slice of the matrix.
func (s *Snapshot) Row(i int) []float32 {
	return s.Vectors[i*s.Dim : (i+1)*s.Dim]
}

// Encoder produces one embedding for the first face found in an image file.
type Encoder interface {
	EncodeImageFile(path string) ([]float32, error)
}

// Store owns the known-embeddings matrix. The live snapshot is swapped
// atomically on reload; partial or failed reloads never touch it.
type Store struct {
	current         atomic.Pointer[Snapshot]
	reloadRequested atomic.Bool
	datasetDir      string
	logger          *logger.Logger
}

func NewStore(datasetDir string, logger *logger.Logger) *Store {
	s := &Store{
		datasetDir: datasetDir,
		logger:     logger,
	}
	s.current.Store(&Snapshot{})
	return s
}

// Current returns the live snapshot. Wait-free; safe during a reload.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// RequestReload marks the dataset dirty. The next ReloadIfRequested call
// performs the actual reload; repeated requests collapse into one.
func (s *Store) RequestReload() {
	s.reloadRequested.Store(true)
}

// ReloadIfRequested reloads the dataset if a reload was requested since the
// last call. Returns true when a reload ran successfully.
func (s *Store) ReloadIfRequested(enc Encoder) bool {
	if !s.reloadRequested.CompareAndSwap(true, false) {
		return false
	}
	s.logger.Info("Reloading face database from %s", s.datasetDir)
	if err := s.Reload(enc); err != nil {
		s.logger.Error("Face database reload failed: %v", err)
		return false
	}
	s.logger.Info("Face database reloaded: %d embeddings", s.Current().Count())
	return true
}

// Reload walks one sub-directory per identity, embeds every readable face
// image, and swaps the assembled matrix in atomically. The live snapshot is
// untouched unless the entire walk produced a usable matrix.
func (s *Store) Reload(enc Encoder) error {
	entries, err := os.ReadDir(s.datasetDir)
	if err != nil {
		return fmt.Errorf("failed to read dataset directory %s: %w", s.datasetDir, err)
	}

	var vectors []float32
	var names []string
	dim := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		identity := entry.Name()
		personDir := filepath.Join(s.datasetDir, identity)

		images, err := os.ReadDir(personDir)
		if err != nil {
			s.logger.Warning("Could not read %s: %v", personDir, err)
			continue
		}

		loaded := 0
		for _, img := range images {
			if img.IsDir() || !isImageFile(img.Name()) {
				continue
			}
			path := filepath.Join(personDir, img.Name())

			emb, err := enc.EncodeImageFile(path)
			if err != nil {
				s.logger.Warning("Skipping %s: %v", path, err)
				continue
			}
			if dim == 0 {
				dim = len(emb)
			}
			if len(emb) != dim {
				s.logger.Warning("Skipping %s: embedding size mismatch (%d vs %d)", path, len(emb), dim)
				continue
			}

			Normalize(emb)
			vectors = append(vectors, emb...)
			names = append(names, identity)
			loaded++
		}

		if loaded > 0 {
			s.logger.Info("Loaded %d face(s) for %s", loaded, identity)
		} else {
			s.logger.Warning("No usable face images for %s", identity)
		}
	}

	if len(names) == 0 {
		return fmt.Errorf("no faces found in dataset directory %s", s.datasetDir)
	}

	s.current.Store(&Snapshot{Vectors: vectors, Names: names, Dim: dim})
	return nil
}

// Normalize scales v to unit L2 length in place. Zero vectors are left as-is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
