package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/cms"
	"github.com/travelblog/internal/config"
	"github.com/travelblog/internal/handler"
	"github.com/travelblog/internal/ingest"
	"github.com/travelblog/internal/mail"
	"github.com/travelblog/internal/media"
	"github.com/travelblog/internal/newsapi"
	"github.com/travelblog/internal/realtime"
	"github.com/travelblog/internal/router"
	"github.com/travelblog/internal/store"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化存储
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer st.Close()

	images, err := media.NewStore(cfg.Media)
	if err != nil {
		log.Fatalf("failed to initialize media storage: %v", err)
	}

	hub := realtime.NewHub(cfg.ClientURL)

	var sender mail.Sender = mail.LogSender{}
	if mail.Configured(cfg.Mail) {
		smtp, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			log.Fatalf("failed to initialize mail sender: %v", err)
		}
		sender = smtp
	} else {
		log.Printf("[MAIL] SMTP is not configured, emails will only be logged")
	}
	dispatcher := mail.NewDispatcher(sender, cfg.Mail, cfg.SiteURL)

	news := newsapi.NewClient(cfg.Ingest.NewsAPIURL, cfg.Ingest.NewsAPIKey, cfg.Ingest.Timeout, cfg.Ingest.RetryCount)
	contentful := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.SpaceID, cfg.CMS.Environment, cfg.CMS.ManagementKey, cfg.Ingest.Timeout, cfg.Ingest.RetryCount)

	var job *ingest.Job
	var ingestStatus handler.IngestStatus
	if cfg.Ingest.Enabled {
		job = ingest.NewJob(news, contentful, ingest.Options{
			Schedule: cfg.Ingest.Schedule,
			Query: newsapi.Query{
				Q:        cfg.Ingest.Query,
				Language: cfg.Ingest.Language,
				PageSize: cfg.Ingest.PageSize,
			},
			ContentType:   cfg.CMS.ContentType,
			AuthorEntryID: cfg.CMS.AuthorEntryID,
			Locale:        cfg.CMS.Locale,
		})
		ingestStatus = job
	}

	api := handler.NewAPI(handler.Dependencies{
		Store:    st,
		Notifier: hub,
		Mailer:   dispatcher,
		Media:    images,
		Ingest:   ingestStatus,
		Integrations: handler.Integrations{
			StoreDriver: st.Driver(),
			MediaDriver: cfg.Media.Driver,
			CMS:         contentful.Configured(),
			NewsAPI:     news.Configured(),
			Mail:        mail.Configured(cfg.Mail),
			ClientURL:   cfg.ClientURL,
			Port:        cfg.Port,
		},
		Development: cfg.IsDevelopment(),
	})

	opts := router.Options{ClientURL: cfg.ClientURL}
	if cfg.Media.Driver == "" || cfg.Media.Driver == "local" {
		opts.UploadDir = cfg.Media.UploadDir
		opts.UploadURLPath = cfg.Media.UploadURLPath
	}
	r := router.SetupRouter(api, hub, opts)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (store=%s)", cfg.ListenAddr, st.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run server: %v", err)
		}
	}()

	if job != nil {
		if err := job.Start(ctx); err != nil {
			log.Printf("[INGEST] not started: %v", err)
			job = nil
		}
	} else {
		log.Printf("[INGEST] disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	cancel()
	if job != nil {
		job.Stop()
	}
	hub.Close()
	log.Println("shutdown complete")
}
