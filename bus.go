package main

import (
	"context"
	"fmt"

	"cart-monitor-service/config"
	"cart-monitor-service/kafka"
	awspkg "cart-monitor-service/pkg/aws"
	"cart-monitor-service/services"

	"go.uber.org/zap"
)

// newBusFactory returns the constructor of the configured bus client. It runs
// on the first publish, not at startup.
func newBusFactory(cfg *config.Config, log *zap.Logger) services.BusFactory {
	return func(ctx context.Context) (services.MessageBus, error) {
		log.Info("Initializing message bus", zap.String("backend", cfg.BusBackend))

		switch cfg.BusBackend {
		case config.BusKafka:
			brokers := cfg.Brokers()
			if len(brokers) == 0 {
				return nil, fmt.Errorf("KAFKA_BROKERS is empty")
			}
			return kafka.NewProducer(brokers), nil
		case config.BusSNS, config.BusSQS:
			awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSEndpoint)
			if err != nil {
				return nil, err
			}
			if cfg.BusBackend == config.BusSQS {
				return awspkg.NewSQSProducer(awsCfg), nil
			}
			return awspkg.NewSNSClient(awsCfg), nil
		default:
			return nil, fmt.Errorf("unsupported bus backend %q", cfg.BusBackend)
		}
	}
}
