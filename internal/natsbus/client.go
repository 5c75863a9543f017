package natsbus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

type Client struct {
	conn *nats.Conn
}

func NewClient(bus *Bus) (*Client, error) {
	return NewClientFromURL(bus.ClientURL())
}

func NewClientFromURL(url string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name("scenegen"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.conn.Publish(topic, data)
}

func (c *Client) Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, handler)
}

// SubscribeJSON decodes each message on topic into a fresh T. Messages that
// fail to decode are passed to handler with a non-nil error.
func SubscribeJSON[T any](c *Client, topic string, handler func(subject string, v T, err error)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, func(msg *nats.Msg) {
		var v T
		err := json.Unmarshal(msg.Data, &v)
		handler(msg.Subject, v, err)
	})
}

// ConnectedURL is the server URL the client is connected to.
func (c *Client) ConnectedURL() string {
	return c.conn.ConnectedUrl()
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Drain flushes pending publishes and closes the connection.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

func (c *Client) Close() {
	c.conn.Close()
}
