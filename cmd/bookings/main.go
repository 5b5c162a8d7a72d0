package main

import (
	"carrental/internal/bookings/events"
	"carrental/internal/bookings/handler"
	"carrental/internal/bookings/repository"
	"carrental/internal/bookings/service"
	"carrental/internal/bookings/validator"
	listingsrepo "carrental/internal/listings/repository"
	"carrental/pkg/app"
	"carrental/pkg/config"
	"carrental/pkg/kafka"
	kafka_config "carrental/pkg/kafka/config"
	kafka_middleware "carrental/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)
	metrics := kafka_middleware.NewMetrics()
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	publisher := initPublisher(cfg, kafkaCfg, serverApp, metrics)
	bookingService := initServices(cfg, bookingValidator, publisher)
	if kafkaCfg.Enabled {
		initSettlementConsumer(cfg, kafkaCfg, serverApp, metrics, bookingService, bookingValidator)
		serverApp.WithMetrics(metrics)
	}

	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, bookingValidator *validator.BookingValidator, publisher events.Publisher) service.BookingService {
	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewVehicleLockRepository(cfg),
		listingsrepo.NewMongoVehicleRepository(cfg),
		bookingValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}

// initPublisher falls back to a no-op publisher when Kafka is disabled.
func initPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, serverApp *app.Application, metrics *kafka_middleware.Metrics) events.Publisher {
	if !kafkaCfg.Enabled {
		return events.NewNoopPublisher()
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.BookingEventsTopic, kafkaCfg.BookingDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	producer.Use(metrics.ProducerMiddleware())
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	serverApp.AddCloser("booking-events-producer", producer)
	return events.NewKafkaPublisher(producer)
}

func initSettlementConsumer(
	cfg *config.Config,
	kafkaCfg *kafka_config.Config,
	serverApp *app.Application,
	metrics *kafka_middleware.Metrics,
	bookingService service.BookingService,
	bookingValidator *validator.BookingValidator,
) {
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.BookingSettlementTopic,
		kafkaCfg.SettlementGroupID,
		kafkaCfg.BookingDLQTopic,
		events.NewSettlementHandler(bookingService, bookingValidator, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create settlement consumer", "error", err)
	}
	consumer.Use(metrics.ConsumerMiddleware())
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	serverApp.AddWorker("settlement-consumer", consumer.Start)
	serverApp.AddCloser("settlement-consumer", consumer)
}
