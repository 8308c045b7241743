// Package app embrulha o servidor HTTP com desligamento gracioso.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/config"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	cfg    config.Config
	log    *zap.Logger
	server *http.Server
}

func New(cfg config.Config, log *zap.Logger, router *gin.Engine) *App {
	return &App{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serve até ctx ser cancelado e então desliga graciosamente, dando tempo
// para os webhooks em voo terminarem antes de derrubar as conexões.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("servidor HTTP escutando", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("sinal recebido, desligando servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("servidor encerrado")
	return nil
}
