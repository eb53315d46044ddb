package main

import (
	"context"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/atefhejazi1/job-kit-sub001/internal/infrastructure/persistence/postgres/connection"
	"github.com/atefhejazi1/job-kit-sub001/pkg/broker"
	"github.com/atefhejazi1/job-kit-sub001/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// NotificationSystem holds all notification-related components
type NotificationSystem struct {
	Service       notification.Service
	Dispatcher    notification.Dispatcher
	Announcer     notification.Announcer
	Consumer      notification.AnnouncementConsumer
	Notifier      notification.Notifier
	MessageBroker broker.MessageBroker
	Logger        *logrus.Logger
	CancelFunc    context.CancelFunc
}

// SetupNotificationSystem initializes and configures all notification components
func SetupNotificationSystem(
	db *connection.Database,
	appLogger *logger.Logger,
	subscriberBuffer int,
	isDevelopment bool,
) (*NotificationSystem, error) {
	notifLogger := logrus.New()
	notifLogger.SetFormatter(&logrus.JSONFormatter{})
	if isDevelopment {
		notifLogger.SetLevel(logrus.DebugLevel)
	} else {
		notifLogger.SetLevel(logrus.InfoLevel)
	}

	repo := notification.NewRepository(db.DB, notifLogger)
	dispatcher := notification.NewDispatcher(subscriberBuffer, notifLogger)

	service := notification.NewService(notification.ServiceConfig{
		Repository: repo,
		Dispatcher: dispatcher,
		Logger:     notifLogger,
	})

	// The announcement pipeline sits upstream of the store: producers enqueue
	// broadcasts on the broker, the consumer drains them through CreateBulk.
	msgBroker := broker.NewInMemoryBroker(notifLogger)
	announcer := notification.NewAnnouncer(msgBroker, notifLogger)
	consumer := notification.NewAnnouncementConsumer(msgBroker, service, notifLogger)

	notifier := notification.NewNotifier(service, notifLogger)

	consumerCtx, cancelFunc := context.WithCancel(context.Background())
	if err := consumer.Start(consumerCtx); err != nil {
		cancelFunc()
		appLogger.Error("Failed to start announcement consumer", zap.Error(err))
		return nil, err
	}

	appLogger.Info("Notification system started successfully")

	return &NotificationSystem{
		Service:       service,
		Dispatcher:    dispatcher,
		Announcer:     announcer,
		Consumer:      consumer,
		Notifier:      notifier,
		MessageBroker: msgBroker,
		Logger:        notifLogger,
		CancelFunc:    cancelFunc,
	}, nil
}

// Shutdown gracefully stops all notification components
func (ns *NotificationSystem) Shutdown() error {
	if ns.Consumer != nil && ns.Consumer.IsRunning() {
		if err := ns.Consumer.Stop(); err != nil {
			ns.Logger.WithError(err).Error("Error shutting down announcement consumer")
			return err
		}
	}

	if ns.CancelFunc != nil {
		ns.CancelFunc()
	}

	if ns.MessageBroker != nil {
		if err := ns.MessageBroker.Close(); err != nil {
			ns.Logger.WithError(err).Error("Error closing message broker")
			return err
		}
	}

	if ns.Dispatcher != nil {
		ns.Dispatcher.Close()
	}

	ns.Logger.Info("Notification system shut down successfully")
	return nil
}
