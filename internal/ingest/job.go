package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/travelblog/internal/cms"
	"github.com/travelblog/internal/newsapi"
)

const (
	DefaultSchedule         = "0 */6 * * *"
	DefaultCategory         = "Tourism"
	DefaultMinContentLength = 50
)

// NewsSource 提供待采集的文章。
type NewsSource interface {
	Everything(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// EntryPublisher 创建并发布 CMS 条目。
type EntryPublisher interface {
	Environment(ctx context.Context) (cms.Environment, error)
	CreateEntryWithID(ctx context.Context, contentType, id string, fields cms.Fields) (cms.Entry, error)
	PublishEntry(ctx context.Context, id string, version int) (cms.Entry, error)
}

// Options 配置采集任务，零值使用上面的默认值。
type Options struct {
	Schedule         string
	Query            newsapi.Query
	ContentType      string
	AuthorEntryID    string
	Locale           string
	Category         string
	MinContentLength int
}

// RunStats 单次采集的统计结果
type RunStats struct {
	Fetched    int           `json:"fetched"`
	Created    int           `json:"created"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
	Error      string        `json:"error,omitempty"`
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Job 按 cron 计划将新闻文章同步到 CMS。
type Job struct {
	news NewsSource
	cms  EntryPublisher
	opts Options
	now  func() time.Time

	scheduler *cron.Cron
	cancel    context.CancelFunc
	running   atomic.Bool
	wg        sync.WaitGroup

	mu   sync.Mutex
	last *RunStats
}

func NewJob(news NewsSource, publisher EntryPublisher, opts Options) *Job {
	if strings.TrimSpace(opts.Schedule) == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.ContentType == "" {
		opts.ContentType = "theConclaveBlog"
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = DefaultMinContentLength
	}
	return &Job{news: news, cms: publisher, opts: opts, now: time.Now}
}

// Start 以 UTC 时区注册定时任务，并立即执行一次。
func (j *Job) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(j.opts.Schedule, func() { j.trigger(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid ingest schedule %q: %w", j.opts.Schedule, err)
	}
	j.scheduler = scheduler
	j.cancel = cancel
	scheduler.Start()
	log.Printf("[INGEST] scheduled with %q (UTC)", j.opts.Schedule)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.trigger(runCtx)
	}()
	return nil
}

// Stop 取消正在执行的采集并等待其返回。
func (j *Job) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	if j.scheduler != nil {
		<-j.scheduler.Stop().Done()
	}
	j.wg.Wait()
}

// LastRun 返回最近一次完成的采集统计。
func (j *Job) LastRun() (RunStats, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return RunStats{}, false
	}
	return *j.last, true
}

func (j *Job) trigger(ctx context.Context) {
	if !j.running.CompareAndSwap(false, true) {
		log.Printf("[INGEST] previous run still in progress, skipping")
		return
	}
	defer j.running.Store(false)
	if ctx.Err() != nil {
		return
	}
	_, _ = j.Run(ctx)
}

// Run 执行一次采集。只有凭证校验或新闻拉取失败才返回错误，
// 单篇文章的失败计入统计。
func (j *Job) Run(ctx context.Context) (RunStats, error) {
	stats := RunStats{StartedAt: j.now().UTC()}
	log.Printf("[INGEST] starting ingestion job at %s", stats.StartedAt.Format(time.RFC3339))

	if _, err := j.cms.Environment(ctx); err != nil {
		log.Printf("[INGEST] CRITICAL failed to retrieve CMS environment: %v", err)
		return j.finish(stats, fmt.Errorf("cms environment: %w", err))
	}

	articles, err := j.news.Everything(ctx, j.opts.Query)
	if err != nil {
		log.Printf("[INGEST] CRITICAL ingestion job failed: %v", err)
		return j.finish(stats, fmt.Errorf("fetch articles: %w", err))
	}
	stats.Fetched = len(articles)
	if len(articles) == 0 {
		log.Printf("[INGEST] no new articles found")
	}

	for _, article := range articles {
		if ctx.Err() != nil {
			return j.finish(stats, ctx.Err())
		}
		switch j.ingest(ctx, article) {
		case outcomeCreated:
			stats.Created++
		case outcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	log.Printf("[INGEST] job finished: fetched=%d created=%d skipped=%d failed=%d",
		stats.Fetched, stats.Created, stats.Skipped, stats.Failed)
	return j.finish(stats, nil)
}

func (j *Job) finish(stats RunStats, err error) (RunStats, error) {
	stats.Duration = j.now().UTC().Sub(stats.StartedAt)
	stats.DurationMS = stats.Duration.Milliseconds()
	if err != nil {
		stats.Error = err.Error()
	}
	j.mu.Lock()
	j.last = &stats
	j.mu.Unlock()
	return stats, err
}

func (j *Job) ingest(ctx context.Context, article newsapi.Article) outcome {
	title := strings.TrimSpace(article.Title)
	description := CleanText(article.Description)
	body := CleanText(article.Content)
	if title == "" || description == "" || len([]rune(body)) < j.opts.MinContentLength {
		return outcomeSkipped
	}

	slug := Slugify(title)
	id := EntryID(slug, article.URL)

	fields := cms.Fields{}
	fields.Set("title", j.opts.Locale, truncate(title, maxTitleLength))
	fields.Set("slug", j.opts.Locale, slug)
	fields.Set("content", j.opts.Locale, cms.RichText(body))
	fields.Set("category", j.opts.Locale, j.opts.Category)
	fields.Set("publishedDate", j.opts.Locale, article.Published(j.now()).UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if j.opts.AuthorEntryID != "" {
		fields.Set("author", j.opts.Locale, cms.EntryLink(j.opts.AuthorEntryID))
	}

	entry, err := j.cms.CreateEntryWithID(ctx, j.opts.ContentType, id, fields)
	if err != nil {
		if errors.Is(err, cms.ErrEntryExists) {
			log.Printf("[INGEST] entry %s already exists, skipping %q", id, title)
			return outcomeSkipped
		}
		log.Printf("[INGEST] error creating entry %q: %v", title, err)
		return outcomeFailed
	}

	if _, err := j.cms.PublishEntry(ctx, id, entry.Sys.Version); err != nil {
		log.Printf("[INGEST] error publishing entry %s: %v", id, err)
		return outcomeFailed
	}
	log.Printf("[INGEST] created and published: %s", title)
	return outcomeCreated
}
