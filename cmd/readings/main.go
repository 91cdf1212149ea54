// Command readings logs in to the Combined Energy service, prints the
// installation's communication status and then continuously polls for new
// reading windows, printing a per-device summary of each.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/time/rate"

	"github.com/timsavage/combined-energy-api/pkg/combinedenergy"
	"github.com/timsavage/combined-energy-api/pkg/log"
)

func main() {
	mobileOrEmail := lflag.RequiredString("mobile-or-email", "Mobile number or email address used to log in")
	password := lflag.RequiredString("password", "Account password")
	installation := lflag.RequiredString("installation-id", "Numeric id of the installation to monitor")
	increment := lflag.Duration("increment", 5*time.Second, "Sample increment size within each reading window")
	lookback := lflag.Duration("initial-lookback", 30*time.Second, "How far back the first reading window reaches")
	pollEvery := lflag.Duration("poll-every", 10*time.Second, "Minimum delay between readings polls")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = log.With(ctx, logger)

	installationID, err := strconv.Atoi(*installation)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid installation id", slog.String("value", *installation))
		os.Exit(1)
	}

	api := combinedenergy.New(*mobileOrEmail, *password, installationID)
	defer api.Close()

	status, err := api.CommunicationStatus(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch communication status", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("connected=%t since=%s\n", status.Connected, status.Since.Format(time.RFC3339))

	iterator := combinedenergy.NewReadingsIterator(api, int(increment.Seconds()),
		combinedenergy.WithInitialDelta(*lookback))

	// The iterator carries no pacing of its own; polling faster than the
	// service produces samples just wastes calls.
	limiter := rate.NewLimiter(rate.Every(*pollEvery), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			// context canceled, shut down quietly
			return
		}

		readings, err := iterator.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Ctx(ctx).ErrorContext(ctx, "poll failed", slog.Any("error", err))
			os.Exit(1)
		}

		fmt.Printf("%s - %s: %d\n",
			readings.RangeStart.Format(time.RFC3339),
			readings.RangeEnd.Format(time.RFC3339),
			readings.RangeCount)
		for _, device := range readings.Devices {
			fmt.Printf("  %s-%s %v\n", device.DeviceType(), deviceID(device), device)
		}
	}
}

func deviceID(device combinedenergy.DeviceReadings) string {
	if id, ok := device.ID(); ok {
		return strconv.Itoa(id)
	}
	return "?"
}
