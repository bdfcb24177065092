package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/trane/internal/database"
	"github.com/example/trane/internal/library"
	"github.com/example/trane/internal/maintenance"
	"github.com/example/trane/internal/scheduler"
	"github.com/example/trane/pkg/models"
)

func main() {
	// Load the .env file if present; explicit environment wins.
	_ = godotenv.Load()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Infow("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	dbPath := os.Getenv("TRANE_DB")
	if dbPath == "" {
		dbPath = "data/trane.db"
	}
	db, err := database.Connect(dbPath)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	libraryRoot := os.Getenv("COURSE_LIBRARY")
	if libraryRoot == "" {
		logger.Fatal("COURSE_LIBRARY environment variable is not set")
	}
	lib, err := library.LoadFromDir(libraryRoot, logger)
	if err != nil {
		logger.Fatalw("failed to load course library", "error", err)
	}

	opts := scheduler.DefaultOptions()
	if value := os.Getenv("BATCH_SIZE"); value != "" {
		if size, err := strconv.Atoi(value); err == nil && size > 0 {
			opts.BatchSize = size
		}
	}
	var seed int64 = time.Now().UnixNano()
	if value := os.Getenv("RNG_SEED"); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			seed = parsed
		}
	}

	trials := database.NewTrialRepository(db)
	rewards := database.NewRewardRepository(db)
	blacklist := database.NewBlacklistRepository(db)
	reviewList := database.NewReviewListRepository(db)
	sched, err := scheduler.New(lib.Graph(), lib, opts, trials, rewards, blacklist,
		reviewList, seed, logger)
	if err != nil {
		logger.Fatalw("failed to create scheduler", "error", err)
	}

	jobs := maintenance.New(rewards, sched, logger)
	jobs.Start()
	defer jobs.Stop()

	logger.Infow("practice session started",
		"courses", len(lib.CourseIDs()), "exercises", lib.NumExercises())
	fmt.Println("Score each exercise from 1 to 5. Commands: s(kip), b(lacklist), q(uit).")

	if err := practiceLoop(ctx, sched, blacklist); err != nil && !errors.Is(err, models.ErrCancelled) {
		logger.Fatalw("practice loop failed", "error", err)
	}
	fmt.Println("Session ended.")
}

// practiceLoop serves batches over stdin until the context is cancelled or
// the student quits.
func practiceLoop(ctx context.Context, sched *scheduler.Scheduler, blacklist *database.BlacklistRepository) error {
	reader := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			return nil
		}
		batch, err := sched.GetExerciseBatch(ctx, nil)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			fmt.Println("No exercises available.")
			return nil
		}

		for _, item := range batch {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Printf("\n%s\n", item.Manifest.Name)
			if item.Manifest.Description != "" {
				fmt.Println(item.Manifest.Description)
			}
			fmt.Print("score> ")

			if !reader.Scan() {
				return nil
			}
			input := strings.TrimSpace(strings.ToLower(reader.Text()))
			switch input {
			case "q", "quit":
				return nil
			case "s", "skip", "":
				continue
			case "b", "blacklist":
				if err := blacklist.Add(ctx, item.ExerciseID); err != nil {
					fmt.Printf("failed to blacklist: %v\n", err)
					continue
				}
				sched.InvalidateCachedScore(item.ExerciseID)
				continue
			}

			score, err := strconv.Atoi(input)
			if err != nil || !models.MasteryScore(score).Valid() {
				fmt.Println("Enter a score from 1 to 5, s to skip, or q to quit.")
				continue
			}
			if err := sched.RecordTrial(ctx, item.ExerciseID, models.MasteryScore(score), time.Now().Unix()); err != nil {
				return err
			}
		}
	}
}
