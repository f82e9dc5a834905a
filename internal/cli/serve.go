package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/pixelcount/internal/logging"
	"github.com/runnerr0/pixelcount/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.Host != "" {
		rt.cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		rt.cfg.Server.Port = c.Port
	}
	if err := rt.cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.serve(ctx, rt)
}

func (c *ServeCommand) serve(ctx context.Context, rt *runtime) error {
	configureGin(rt.cfg.Server.GinMode, rt.logger)

	srv := server.New(rt.svc, server.Options{
		Addr:            rt.cfg.Addr(),
		ReadTimeout:     rt.cfg.ReadTimeout(),
		ShutdownTimeout: rt.cfg.ShutdownTimeout(),
		AccessLog:       rt.cfg.Logging.AccessLog,
		Logger:          rt.logger,
	})

	rt.logger.Infof("pixelcount %s using database %s", c.version, rt.dbPath)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// configureGin sets the gin mode and routes gin's own debug and error
// output through logger.
func configureGin(mode string, logger *logging.Logger) {
	gin.SetMode(mode)
	gin.DefaultWriter = logger.Writer()
	gin.DefaultErrorWriter = logger.Writer()
}
