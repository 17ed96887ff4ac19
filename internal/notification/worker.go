package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"downtime-report-backend/internal/model"
)

// queueFactor sizes the job buffer relative to the number of workers.
const queueFactor = 64

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is a persisted downtime long enough to be reported to subscribers.
type Alert struct {
	DowntimeID      string
	MachineCode     string
	DurationMinutes int
	ErrorType       string
}

// WorkerPool manages a pool of workers for sending critical downtime alerts.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	limiter *rate.Limiter
}

// NewWorkerPool creates a new worker pool. sendsPerSecond paces outgoing pushes across all
// workers; zero or less disables pacing.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, sendsPerSecond float64) *WorkerPool {
	if size < 1 {
		size = 1
	}
	limit := rate.Inf
	if sendsPerSecond > 0 {
		limit = rate.Limit(sendsPerSecond)
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*queueFactor),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debugf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.WithFields(log.Fields{"worker": id, "machine": alert.MachineCode, "downtime": alert.DowntimeID}).
				Debug("processing alert")
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Debugf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert. It never blocks an ingestion: when the queue is full the alert
// is dropped and false is returned.
func (wp *WorkerPool) Dispatch(alert Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		log.WithField("downtime", alert.DowntimeID).Warn("alert queue full, dropping alert")
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// Message renders the push text for an alert.
func Message(machineName string, alert Alert) string {
	return fmt.Sprintf("Machine %s down %d min (%s)", machineName, alert.DurationMinutes, alert.ErrorType)
}

// sendAlert fetches the machine's subscribers and pushes the alert to each of them.
func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_code = ?", alert.MachineCode).
		Find(&subscriptions).Error
	if err != nil {
		log.Errorf("Error fetching subscriptions for machine %s: %v", alert.MachineCode, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	machineLabel := alert.MachineCode
	var machine model.Machine
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&machine, "code = ?", alert.MachineCode).Error; err != nil {
		log.Warnf("Error fetching machine %s: %v", alert.MachineCode, err)
	} else if machine.Name != "" {
		machineLabel = machine.Name
	}

	log.Infof("Sending %d alerts for downtime %s", len(subscriptions), alert.DowntimeID)
	message := []byte(Message(machineLabel, alert))
	for _, sub := range subscriptions {
		if err := wp.limiter.Wait(ctx); err != nil {
			return
		}
		wp.sendNotification(ctx, sub, message)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Errorf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Infof("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Errorf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
