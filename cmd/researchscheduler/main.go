package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"github.com/mattn/go-isatty"

	"research-scheduler/internal/bot"
	"research-scheduler/internal/cli"
	"research-scheduler/internal/config"
	"research-scheduler/internal/repository"
	"research-scheduler/internal/service"
	"research-scheduler/internal/store"
)

const jobTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var shared store.KV
	if cfg.SharedStoreURL != "" {
		pg, pool, err := store.OpenPostgres(ctx, cfg.SharedStoreURL)
		if err != nil {
			log.Printf("[warn] %v", err)
		} else {
			defer pool.Close()
			shared = pg
		}
	}
	kv := store.Select(ctx, shared, store.NewSQLiteKV(db))
	docs := store.NewAdapter(kv,
		store.WithPrefix(cfg.StorePrefix),
		store.WithKeyName(store.KeyActivities, cfg.ActivitiesKey),
		store.WithKeyName(store.KeyEmailSettings, cfg.SettingsKey),
		store.WithTimeout(cfg.StoreTimeout),
	)

	clk := clock.New()
	users := repository.NewUserRepository(db)
	activities := repository.NewActivityRepository(docs, clk, cfg.DefaultActor)
	settings := repository.NewSettingsRepository(docs)
	log.Printf("[info] loaded %d activities", activities.Load(ctx))
	settings.Load(ctx)

	reminders := service.NewReminderService(activities)
	email := service.LogSender{}

	app := &cli.App{
		Activities: activities,
		Settings:   settings,
		Reminders:  reminders,
		Notifier:   service.NewNotifier(reminders, settings, email, nil, clk, cfg.Location),
		Clock:      clk,
		Location:   cfg.Location,
		Color:      colorOutput(),
	}

	app.Serve = func(ctx context.Context) error {
		if err := cfg.RequireToken(); err != nil {
			return err
		}

		telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
			Users:      users,
			Activities: activities,
			Settings:   settings,
			Clock:      clk,
			Location:   cfg.Location,
		})
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}

		notifier := service.NewNotifier(reminders, settings, email, telegramBot.PushSender(), clk, cfg.Location)
		scheduler := service.NewSchedulerService(cfg.Location, jobTimeout)
		if err := scheduleJobs(scheduler, cfg, notifier, activities, settings); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()

		log.Println("[info] research scheduler bot started")
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot stopped with error: %w", err)
		}
		log.Println("[info] shutdown complete")
		return nil
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

func scheduleJobs(s *service.SchedulerService, cfg config.Config, notifier *service.Notifier, activities *repository.ActivityRepository, settings *repository.SettingsRepository) error {
	if _, err := s.ScheduleDaily("reminders", cfg.ReminderTime, func(ctx context.Context) error {
		n, err := notifier.SendReminders(ctx)
		log.Printf("[info] reminders sent: %d", n)
		return err
	}); err != nil {
		return err
	}

	if _, err := s.ScheduleDaily("digest", cfg.DigestTime, func(ctx context.Context) error {
		sent, err := notifier.RunDigestIfDue(ctx)
		if sent {
			log.Println("[info] weekly digest sent")
		}
		return err
	}); err != nil {
		return err
	}

	_, err := s.ScheduleInterval("refresh", cfg.RefreshInterval, func(ctx context.Context) error {
		if !activities.Refresh(ctx) {
			return errors.New("activities not refreshed, keeping last known list")
		}
		settings.Refresh(ctx)
		return nil
	})
	return err
}

func colorOutput() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
