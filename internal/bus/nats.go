package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"clinical-alert-engine/internal/alerts"
)

// Publisher forwards newly created alerts to NATS so downstream consumers
// (dashboards, paging integrations) can react without polling.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}

func (p *Publisher) PublishAlert(alert alerts.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}
