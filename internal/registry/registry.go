package registry

import "github.com/starford/fractal/internal/models"

// Registry is the asset registry. Assets are never deleted; registering a
// source that is already known updates it in place and keeps its id.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Registry interface {
	Upsert(a models.Asset) (models.Asset, error)
	Get(id string) (models.Asset, error)
	GetBySource(source string) (models.Asset, error)
	FindByChecksum(sum string) (models.Asset, error)
	List(f Filter) ([]models.Asset, int, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Filter narrows List. Zero values mean "no restriction"; Limit <= 0 means
// no limit.
type Filter struct {
	Kind   models.Kind
	Query  string
	Limit  int
	Offset int
}

// Verify *DB satisfies Registry at compile time.
var _ Registry = (*DB)(nil)
