// Package channel provides Redis-backed side channels between the
// handler plane and the process that owns the WebSocket terminations:
// a polling Pipe for request/reply style exchanges and a PubSub fan-out
// for injecting frames into live sessions.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Envelope wraps a frame with the station it targets.
type Envelope struct {
	ChargingStationID string `json:"charging_station_id"`
	Message           string `json:"message"`
}

// pollInterval is how often Listen re-checks its key.
const pollInterval = 500 * time.Millisecond

// Pipe is a polled key/value exchange: one side Sends under a key, the
// other Listens until the value shows up or the wait times out.
type Pipe struct {
	rdb *redis.Client
}

// NewPipe creates a Pipe on the given client.
func NewPipe(rdb *redis.Client) *Pipe {
	return &Pipe{rdb: rdb}
}

// Send stores value under key with an expiry bound.
func (p *Pipe) Send(ctx context.Context, key, value string, expire time.Duration) error {
	return p.rdb.Set(ctx, key, value, expire).Err()
}

// Get fetches and removes the value stored under key; it returns ok false
// when nothing is stored.
func (p *Pipe) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := p.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Listening reports whether someone is currently waiting in Listen for
// key. The marker is left in place; Listen clears it.
func (p *Pipe) Listening(ctx context.Context, key string) (bool, error) {
	count, err := p.rdb.Exists(ctx, "listen:"+key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Listen polls for a value under key until it arrives or timeout elapses.
// A "listen:"+key marker is set first so the sending side can tell whether
// anyone is waiting.
func (p *Pipe) Listen(ctx context.Context, key string, timeout time.Duration) (string, error) {
	if err := p.rdb.Set(ctx, "listen:"+key, "1", timeout).Err(); err != nil {
		return "", err
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		value, ok, err := p.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			p.rdb.Del(ctx, "listen:"+key)
			return value, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no value under %q within %v", key, timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// PubSub fans Envelopes out over a Redis channel.
type PubSub struct {
	rdb *redis.Client
}

// NewPubSub creates a PubSub on the given client.
func NewPubSub(rdb *redis.Client) *PubSub {
	return &PubSub{rdb: rdb}
}

// Publish sends an Envelope to every consumer of key.
func (p *PubSub) Publish(ctx context.Context, key string, envelope Envelope) error {
	data, err := gojson.Marshal(envelope)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, key, string(data)).Err()
}

// Subscribe waits for a single Envelope on key.
func (p *PubSub) Subscribe(ctx context.Context, key string) (*Envelope, error) {
	sub := p.rdb.Subscribe(ctx, key)
	defer sub.Close()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	envelope := &Envelope{}
	if err := gojson.Unmarshal([]byte(msg.Payload), envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}

// Consume delivers every Envelope published on key to fn until ctx ends.
// Undecodable payloads are skipped.
func (p *PubSub) Consume(ctx context.Context, key string, fn func(Envelope)) error {
	sub := p.rdb.Subscribe(ctx, key)
	defer sub.Close()
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			envelope := Envelope{}
			if err := gojson.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				continue
			}
			fn(envelope)
		}
	}
}
