package kafka

import (
	"github.com/caarlos0/env/v10"
)

// Config содержит конфигурацию подключения к Kafka
type Config struct {
	// Brokers — список брокеров Kafka.
	// Значение зависит от среды выполнения:
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	// Несколько брокеров указываются через запятую: "broker1:9092,broker2:9092"
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:19092" envSeparator:","`
	// Topic — топик доменных событий заказов
	Topic string `env:"KAFKA_TOPIC" envDefault:"order-events"`
	// DLQTopic — топик для необработанных сообщений консьюмера
	DLQTopic string `env:"KAFKA_DLQ_TOPIC" envDefault:"order-events.dlq"`
	// GroupID — consumer group консьюмера доменных событий
	GroupID string `env:"KAFKA_GROUP_ID" envDefault:"order-processing-group"`
}

// LoadEnv загружает конфигурацию из переменных окружения
func LoadEnv(cfg *Config) error {
	return env.Parse(cfg)
}
