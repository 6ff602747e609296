package handler

import (
	"time"

	"github.com/travelblog/internal/ingest"
	"github.com/travelblog/internal/media"
	"github.com/travelblog/internal/service"
	"github.com/travelblog/internal/store"
)

// IngestStatus exposes the outcome of the last ingestion run.
type IngestStatus interface {
	LastRun() (ingest.RunStats, bool)
}

// Integrations describes which external collaborators are configured.
type Integrations struct {
	StoreDriver string
	MediaDriver string
	CMS         bool
	NewsAPI     bool
	Mail        bool
	ClientURL   string
	Port        string
}

// Dependencies 汇总处理器共享的进程级资源。
type Dependencies struct {
	Store        store.Store
	Notifier     service.Notifier
	Mailer       service.SubmissionMailer
	Background   service.BackgroundRunner
	Media        *media.Store
	Ingest       IngestStatus
	Integrations Integrations
	Development  bool
}

// API 聚合 HTTP 处理器所需的服务。
type API struct {
	store        store.Store
	posts        *service.PostService
	submissions  *service.SubmissionService
	newsletter   *service.NewsletterService
	media        *media.Store
	ingest       IngestStatus
	integrations Integrations
	development  bool
	now          func() time.Time
}

// NewAPI 根据依赖构建处理器集合。
func NewAPI(deps Dependencies) *API {
	return &API{
		store:        deps.Store,
		posts:        service.NewPostService(deps.Store.Posts()),
		submissions:  service.NewSubmissionService(deps.Store.Submissions(), deps.Notifier, deps.Mailer, deps.Background),
		newsletter:   service.NewNewsletterService(deps.Store.Subscribers(), deps.Notifier),
		media:        deps.Media,
		ingest:       deps.Ingest,
		integrations: deps.Integrations,
		development:  deps.Development,
		now:          time.Now,
	}
}
