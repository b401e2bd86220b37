package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"

	"go.uber.org/zap"
)

// JSONCurveStore keeps the curve collection in a single JSON document.
type JSONCurveStore struct {
	path    string
	backend port.HardwareBackend
	logger  *zap.Logger
}

func NewJSONCurveStore(path string, backend port.HardwareBackend, logger *zap.Logger) *JSONCurveStore {
	return &JSONCurveStore{
		path:    path,
		backend: backend,
		logger:  logger.With(zap.String("store", path)),
	}
}

func (s *JSONCurveStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty collection.
func (s *JSONCurveStore) Load(ctx context.Context) ([]*domain.Curve, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no stored curves")
		return []*domain.Curve{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", s.path, domain.ErrIOFailure, err)
	}

	curves, err := UnmarshalCurves(data, s.backend.Root())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	s.logger.Debug("curves loaded", zap.Int("count", len(curves)))
	return curves, nil
}

// Store writes the document to a temporary file next to the target and
// renames it over the target.
func (s *JSONCurveStore) Store(ctx context.Context, curves []*domain.Curve) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}

	data, err := MarshalCurves(curves)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w: %w", dir, domain.ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", domain.ErrIOFailure, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w: %w", tmpName, domain.ErrIOFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w: %w", tmpName, domain.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", tmpName, domain.ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename %s: %w: %w", tmpName, domain.ErrIOFailure, err)
	}
	committed = true

	s.logger.Debug("curves stored", zap.Int("count", len(curves)))
	return nil
}

// MarshalCurves encodes curves in collection order, breakpoints sorted by key.
func MarshalCurves(curves []*domain.Curve) ([]byte, error) {
	specs := make([]domain.CurveSpec, 0, len(curves))
	for _, c := range curves {
		specs = append(specs, c.Spec())
	}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode curves: %w: %w", domain.ErrIOFailure, err)
	}
	return data, nil
}

// UnmarshalCurves decodes a document and resolves its ids against root.
// Any unknown id fails the whole document.
func UnmarshalCurves(data []byte, root *domain.HardwareItem) ([]*domain.Curve, error) {
	var specs []domain.CurveSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedData, err)
	}

	curves := make([]*domain.Curve, 0, len(specs))
	for i, spec := range specs {
		curve, err := domain.ResolveCurve(root, spec)
		if err != nil {
			return nil, fmt.Errorf("curve %d: %w", i, err)
		}
		curves = append(curves, curve)
	}
	return curves, nil
}

var _ port.CurveStorage = (*JSONCurveStore)(nil)
