// Package notify доставляет выпущенные уведомления об алертах:
// браузерам по WebSocket, подписчикам MQTT и Redis, в лог
package notify

import (
	"context"
	"errors"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/logger"
)

const (
	// TopicAlerts MQTT топик уведомлений
	TopicAlerts = "dashboard/alerts"
	// ChannelAlerts Redis канал уведомлений
	ChannelAlerts = "dashboard:alerts"
)

// Multi рассылает уведомление всем получателям и объединяет их ошибки
type Multi []alerting.Notifier

func (m Multi) Notify(ctx context.Context, n alerting.Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier пишет уведомление в лог
type LogNotifier struct {
	Log logger.Logger
}

func (l LogNotifier) Notify(_ context.Context, n alerting.Notice) error {
	for _, line := range n.Lines {
		l.Log.With("event", logger.EventAlertRaised, "notice", n.ID, "kind", line.Kind).Warnf("%s", line.Text)
	}
	return nil
}

// Publisher отправляет сообщение в канал pub/sub
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisNotifier публикует уведомление в канал Redis
type RedisNotifier struct {
	Pub     Publisher
	Channel string
}

func (r RedisNotifier) Notify(ctx context.Context, n alerting.Notice) error {
	data, err := encode(n)
	if err != nil {
		return err
	}
	channel := r.Channel
	if channel == "" {
		channel = ChannelAlerts
	}
	return r.Pub.Publish(ctx, channel, data)
}
