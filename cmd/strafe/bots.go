package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/strafehq/strafe/pkg/bot"
	"github.com/strafehq/strafe/pkg/config"
	"github.com/strafehq/strafe/pkg/transport"
	"github.com/strafehq/strafe/pkg/transport/memory"
	"github.com/strafehq/strafe/pkg/transport/redis"
)

func botsCommand(configs []string) error {
	conf, err := config.Process(configs)
	if err != nil {
		return fmt.Errorf("failed to load strafe configuration: %w", err)
	}

	count := conf.Bots.Count
	if CLI.Bots.Count > 0 {
		count = CLI.Bots.Count
	}

	ctx := context.Background()

	var t transport.Transport
	if CLI.Bots.Memory {
		t = memory.NewBroker()
		log.Info().Msg("using in-process transport")
	} else {
		service := redis.NewService(conf.Redis)
		defer service.Close()
		if err := service.Ping(ctx); err != nil {
			return fmt.Errorf("could not reach redis at %s: %w", conf.Redis.Address, err)
		}
		t = service
	}

	swarm, err := bot.Run(ctx, t, conf.Game.Settings(), count)
	if err != nil {
		return err
	}

	log.Info().Int("count", swarm.NumClients()).Msg("bots running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs

	log.Info().Msg("shutting down")
	swarm.Close()
	return nil
}
