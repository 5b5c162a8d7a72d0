package main

import (
	listingsrepo "carrental/internal/listings/repository"
	partiesrepo "carrental/internal/parties/repository"
	"carrental/internal/reviews/events"
	"carrental/internal/reviews/handler"
	"carrental/internal/reviews/repository"
	"carrental/internal/reviews/service"
	"carrental/internal/reviews/validator"
	"carrental/pkg/app"
	"carrental/pkg/config"
	"carrental/pkg/kafka"
	kafka_config "carrental/pkg/kafka/config"
	kafka_middleware "carrental/pkg/kafka/middleware"
)

const ServiceName = "reviews"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.Log.Info("Starting Reviews service")
	serverApp := app.NewApplication(cfg)
	reviewService := initServices(cfg, initPublisher(cfg, kafkaCfg, serverApp))

	serverApp.SetApp(handler.NewReviewHandler(reviewService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.ReviewService {
	reviewService := service.NewReviewService(
		repository.NewMongoReviewRepository(cfg),
		repository.NewMongoBookingReader(cfg),
		listingsrepo.NewMongoVehicleRepository(cfg),
		partiesrepo.NewMongoPartyRepository(cfg),
		validator.NewReviewValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Review service initialized", "database", cfg.MongoDatabaseName)
	return reviewService
}

func initPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, serverApp *app.Application) events.Publisher {
	if !kafkaCfg.Enabled {
		return events.NewNoopPublisher()
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.ReviewEventsTopic, kafkaCfg.ReviewDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	producer.Use(metrics.ProducerMiddleware())
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	serverApp.WithMetrics(metrics)
	serverApp.AddCloser("review-events-producer", producer)
	return events.NewKafkaPublisher(producer)
}
