package rabbitmq

const (
	// NotificationsExchange — direct exchange для всех уведомлений.
	NotificationsExchange = "notifications"
	// AdminRoutingKey — ключ маршрутизации писем администратору.
	AdminRoutingKey = "admin"
	// AdminQueue — очередь писем администратору.
	AdminQueue = "notification.admin"
)

// QueueConfig описывает очередь и ключ, с которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые объявляют и издатель, и потребитель.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: AdminQueue, RoutingKey: AdminRoutingKey},
	}
}
