package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Port),
		Handler:      app.routes(),
		ErrorLog:     log.New(app.logger, "", 0),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	shutdownError := make(chan error)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	if app.payments != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.sweepPendingBookings(sweepCtx)
		}()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.PrintInfo("shutting down server", map[string]string{
			"signal": s.String(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		stopSweep()

		app.logger.PrintInfo("completing background tasks", map[string]string{
			"addr": srv.Addr,
		})

		app.wg.Wait()
		shutdownError <- nil
	}()

	app.logger.PrintInfo("starting server", map[string]string{
		"addr": srv.Addr,
		"env":  app.config.Env,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.PrintInfo("stopped server", map[string]string{
		"addr": srv.Addr,
	})

	return nil
}

// sweepPendingBookings cancels online-payment bookings that were never paid.
func (app *application) sweepPendingBookings(ctx context.Context) {
	ticker := time.NewTicker(app.config.Payment.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.models.Bookings.ExpirePending(app.config.Payment.PendingTTL)
			if err != nil {
				app.logger.PrintError(err, map[string]string{"task": "expire_pending"})
				continue
			}
			if n > 0 {
				app.metrics.pendingExpired.Add(float64(n))
				app.logger.PrintInfo("expired pending bookings", map[string]string{
					"count": strconv.FormatInt(n, 10),
				})
			}
		}
	}
}
