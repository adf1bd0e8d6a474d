package main

import (
	"context"
	"flag"
	"os"
	"runtime"

	"github.com/fununcle/perfectcircle/internal/drawsim"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

func main() {
	var (
		baseURL     = flag.String("url", drawsim.DefaultBaseURL, "Base URL of the service")
		players     = flag.Int("players", drawsim.DefaultPlayers, "Number of synthetic players")
		attempts    = flag.Int("attempts", drawsim.DefaultAttemptsPerPlayer, "Attempts per player")
		points      = flag.Int("points", drawsim.DefaultPoints, "Samples per stroke")
		duplicates  = flag.Int("duplicates", 0, "Attempts re-sent to exercise idempotency")
		topN        = flag.Int("top", drawsim.DefaultTopN, "Leaderboard entries to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*2, "Concurrent HTTP workers")
		retries     = flag.Int("retries", drawsim.DefaultRetries, "Retries on 429 backpressure")
		timeout     = flag.Duration("timeout", drawsim.DefaultTimeout, "HTTP request timeout")
		wait        = flag.Duration("wait", drawsim.DefaultWait, "Time allowed for the queue to drain")
		seed        = flag.Uint64("seed", 0, "Stroke generator seed, 0 = clock")
		checkScores = flag.Bool("check-scores", true, "Compare stored bests with local scoring")
		logFile     = flag.String("log", "", "Also write the log to this file")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		drawsim.ShowHelp()
		return
	}

	closer, err := drawsim.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	config := &drawsim.Config{
		BaseURL:           *baseURL,
		Players:           *players,
		AttemptsPerPlayer: *attempts,
		Points:            *points,
		Duplicates:        *duplicates,
		TopN:              *topN,
		Workers:           *workers,
		Retries:           *retries,
		Timeout:           *timeout,
		Wait:              *wait,
		Seed:              *seed,
		CheckScores:       *checkScores,
		Verbose:           *verbose,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Deadline())
	defer cancel()

	if _, err := drawsim.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
