package notify

import (
	"context"
	"fmt"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/logger"
)

// Broker встроенный MQTT брокер, в который публикуются уведомления
type Broker struct {
	server *mqtt.Server
	log    logger.Logger
}

// NewBroker создает брокер; пустой addr оставляет только встроенного клиента без TCP
func NewBroker(addr string, log logger.Logger) (*Broker, error) {
	server := mqtt.New(&mqtt.Options{InlineClient: true})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add auth hook: %w", err)
	}

	if addr != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: addr})
		if err := server.AddListener(tcp); err != nil {
			return nil, fmt.Errorf("failed to add TCP listener: %w", err)
		}
	}

	return &Broker{server: server, log: log.With("component", "broker")}, nil
}

// Start запускает листенеры брокера
func (b *Broker) Start() error {
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("failed to start MQTT server: %w", err)
	}
	b.log.With("event", logger.EventComponentStarted).Info("mqtt broker is running")
	return nil
}

// Notify публикует уведомление в TopicAlerts с флагом retain,
// чтобы новый подписчик сразу получил последний баннер
func (b *Broker) Notify(_ context.Context, n alerting.Notice) error {
	data, err := encode(n)
	if err != nil {
		return err
	}
	if err := b.server.Publish(TopicAlerts, data, true, 0); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}

// Subscribe подписывает встроенного клиента на filter и передает ему полезную нагрузку
func (b *Broker) Subscribe(filter string, id int, handler func(topic string, payload []byte)) error {
	return b.server.Subscribe(filter, id, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		handler(pk.TopicName, pk.Payload)
	})
}

// Close останавливает брокер
func (b *Broker) Close() error {
	b.log.With("event", logger.EventComponentShutdown).Info("mqtt broker is down")
	return b.server.Close()
}
