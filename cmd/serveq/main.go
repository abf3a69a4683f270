package main

import (
	flowhandler "serveq/internal/flow/handler"
	flowservice "serveq/internal/flow/service"
	notifyhandler "serveq/internal/notify/handler"
	notifyrepository "serveq/internal/notify/repository"
	notifyservice "serveq/internal/notify/service"
	otprepository "serveq/internal/otp/repository"
	otpservice "serveq/internal/otp/service"
	otpvalidator "serveq/internal/otp/validator"
	queuehandler "serveq/internal/queue/handler"
	queueservice "serveq/internal/queue/service"
	slotsrepository "serveq/internal/slots/repository"
	slotsservice "serveq/internal/slots/service"
	slotsvalidator "serveq/internal/slots/validator"
	"serveq/pkg/app"
	"serveq/pkg/config"
	"serveq/pkg/kafka"
	kafkaconfig "serveq/pkg/kafka/config"
	kafkamiddleware "serveq/pkg/kafka/middleware"
	"serveq/pkg/mailer"
)

const ServiceName = "serveq"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting serveq service")

	producer := initProducer(cfg)
	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.Log)

	otpSvc := initOtpService(cfg, mail)
	notifySvc := initNotifyService(cfg, producer, mail)
	slotSvc, queueSvc := initInventoryServices(cfg, otpSvc, notifySvc)
	flowSvc := flowservice.NewFlowService(otpSvc, slotSvc, queueSvc, notifySvc, cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		flowhandler.NewFlowHandler(flowSvc, cfg.Log),
		queuehandler.NewQueueHandler(queueSvc, cfg.Log),
		notifyhandler.NewNotificationHandler(notifySvc, cfg.Log),
	)

	serverApp.OnShutdown(flowSvc.Stop)
	if producer != nil {
		serverApp.OnShutdown(func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		})
	}
	serverApp.OnShutdown(cfg.GracefulShutdown)

	serverApp.Run()
}

func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg := kafkaconfig.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	producer.Use(kafkamiddleware.MetricsProducerMiddleware())
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Kafka producer initialized", "topic", cfg.NotificationsTopic)
	return producer
}

func initOtpService(cfg *config.Config, mail mailer.Mailer) otpservice.OtpService {
	otpValidator := otpvalidator.NewOtpValidator(cfg.OtpLength, cfg.Log)
	otpRepo := otprepository.NewMongoOtpRepository(cfg)
	svc := otpservice.NewOtpService(otpRepo, otpValidator, mail, cfg)

	cfg.Log.Info("Passcode service initialized", "database", cfg.MongoDatabaseName)
	return svc
}

func initNotifyService(cfg *config.Config, producer *kafka.Producer, mail mailer.Mailer) notifyservice.NotifyService {
	notifyRepo := notifyrepository.NewMongoNotificationRepository(cfg)

	var publisher notifyservice.EventPublisher
	if producer != nil {
		publisher = producer
	}
	svc := notifyservice.NewNotifyService(notifyRepo, publisher, mail, cfg)

	cfg.Log.Info("Notification service initialized")
	return svc
}

func initInventoryServices(
	cfg *config.Config,
	gate slotsservice.PasscodeGate,
	notifySvc notifyservice.NotifyService,
) (slotsservice.SlotService, queueservice.QueueService) {
	slotValidator := slotsvalidator.NewSlotValidator(cfg.Log)
	slotRepo := slotsrepository.NewMongoSlotRepository(cfg)
	reservationRepo := slotsrepository.NewMongoReservationRepository(cfg)
	lockRepo := slotsrepository.NewSlotLockRepository(cfg)

	slotSvc := slotsservice.NewSlotService(slotRepo, reservationRepo, lockRepo, gate, slotValidator, cfg)
	queueSvc := queueservice.NewQueueService(reservationRepo, notifySvc, cfg)

	cfg.Log.Info("Slot inventory and queue tracker initialized")
	return slotSvc, queueSvc
}
