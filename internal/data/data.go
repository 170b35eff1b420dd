package data

import (
	"fmt"

	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/conf"
	"github.com/devricklin/feishu-request-relay/internal/infra/feishu"
	"github.com/devricklin/feishu-request-relay/internal/infra/openai"
	"github.com/devricklin/feishu-request-relay/internal/logging"
)

// Repositories contains all repositories
type Repositories struct {
	Message repo.MessageRepo
	Link    repo.LinkRepo
	Filter  repo.FilterRepo // nil when no filter is configured
}

// NewRepositories creates all repositories
func NewRepositories(cfg *conf.Config, feishuClient *feishu.Client, log logging.Logger) (*Repositories, error) {
	linkRepo, err := OpenLinkStore(&cfg.Store)
	if err != nil {
		return nil, err
	}

	var filter repo.FilterRepo
	if cfg.Filter.APIKey != "" {
		filter = NewFilterRepo(openai.NewClient(cfg.Filter.APIKey, cfg.Filter.Model, cfg.Filter.BaseURL))
	}

	return &Repositories{
		Message: NewFeishuRepo(feishuClient, log),
		Link:    linkRepo,
		Filter:  filter,
	}, nil
}

// OpenLinkStore opens the configured Link Store backend
func OpenLinkStore(cfg *conf.StoreConfig) (repo.LinkRepo, error) {
	switch cfg.Driver {
	case conf.DriverSQLite:
		return NewLinkRepo(DialectSQLite, cfg.DBPath)
	case conf.DriverPostgres:
		return NewLinkRepo(DialectPostgres, cfg.DSN)
	}
	return nil, fmt.Errorf("unsupported link store driver %q", cfg.Driver)
}

// Close releases repository resources
func (r *Repositories) Close() error {
	return r.Link.Close()
}
