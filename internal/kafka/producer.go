package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Producer menulis ke topic manapun; topic dibawa per message.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *zap.Logger

	// mu menjaga inbox dari send setelah close (handler yang telat selesai saat shutdown)
	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	p := &Producer{
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return p
}

// Start menjalankan loop pengirim. Loop berhenti setelah Close dan inbox kosong.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka publish failed", zap.String("topic", m.Topic), zap.Error(err))
	}
}

// Publish tidak pernah blok lama: kalau inbox penuh event dibuang (hanya cache yang basi).
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("kafka producer closed, event dropped", zap.String("topic", topic))
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn("kafka inbox full, event dropped", zap.String("topic", topic))
	}
}

// Tutup channel supaya goroutine nge-flush sisa pesan lalu exit rapi. Aman dipanggil berulang.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
