package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"campusattend/internal/config"
	"campusattend/internal/notify"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

// Worker consumes queued notification jobs and delivers them by email.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusattend:notifications")
	}

	var mailer notify.Mailer
	if cfg.MailBackend == "sendgrid" && cfg.SendGridKey != "" {
		mailer = notify.NewSendGridMailer(cfg.SendGridKey, cfg.AppName, cfg.MailFrom)
		log.Println("using sendgrid mailer")
	} else {
		mailer = notify.NewConsoleMailer(log.Default())
		log.Println("using console mailer")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notification jobs...")
	for msg := range messages {
		if msg.Type != "notify" {
			continue
		}

		var job notify.Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Printf("dropping malformed job: %v", err)
			continue
		}

		if err := notify.SendJob(ctx, mailer, job); err != nil {
			log.Printf("sending %s notification to %s failed: %v", job.Kind, job.Email, err)
			continue
		}
		log.Printf("%s notification sent to %s", job.Kind, job.Email)
	}

	log.Println("worker stopped")
}
