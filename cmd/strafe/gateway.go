package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/strafehq/strafe/pkg/config"
	"github.com/strafehq/strafe/pkg/gateway"
	"github.com/strafehq/strafe/pkg/transport/redis"
)

func gatewayCommand(configs []string) error {
	conf, err := config.Process(configs)
	if err != nil {
		return fmt.Errorf("failed to load strafe configuration: %w", err)
	}

	ctx := context.Background()

	service := redis.NewService(conf.Redis)
	defer service.Close()
	if err := service.Ping(ctx); err != nil {
		return fmt.Errorf("could not reach redis at %s: %w", conf.Redis.Address, err)
	}

	g := gateway.NewGateway(ctx, service)
	if err := g.Start(); err != nil {
		return err
	}
	defer g.Close()

	errc := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/ws", g)

		address := fmt.Sprintf("%s:%d", conf.Gateway.Host, conf.Gateway.Port)
		log.Info().Str("address", address).Msg("gateway listening")
		errc <- http.ListenAndServe(address, mux)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	select {
	case err := <-errc:
		return err
	case <-sigs:
		log.Info().Msg("shutting down")
	}

	return nil
}
