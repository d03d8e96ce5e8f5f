package amqpevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-entity-repository/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent []published
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeDeclarer struct {
	name, kind string
	durable    bool
}

func (f *fakeDeclarer) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.name, f.kind, f.durable = name, kind, durable
	return nil
}

type invoice struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

func (i *invoice) GetID() int64 { return i.ID }

func TestPublisher_Handle(t *testing.T) {
	ch := &fakeChannel{}
	d := events.NewDispatcher(NewPublisher(ch, "entities"))

	if err := d.EntityInserted(context.Background(), &invoice{ID: 4, Number: "INV-4"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.sent))
	}

	sent := ch.sent[0]
	if sent.exchange != "entities" || sent.key != "invoice.inserted" {
		t.Errorf("unexpected routing %s/%s", sent.exchange, sent.key)
	}
	if sent.msg.ContentType != "application/json" || sent.msg.DeliveryMode != amqp.Persistent || sent.msg.Type != "inserted" {
		t.Errorf("unexpected message properties %+v", sent.msg)
	}

	var env Envelope
	if err := json.Unmarshal(sent.msg.Body, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ID != sent.msg.MessageId || env.EntityID != 4 || env.EntityName != "invoice" {
		t.Errorf("unexpected envelope %+v", env)
	}

	var body invoice
	if err := json.Unmarshal(env.Entity, &body); err != nil || body.Number != "INV-4" {
		t.Errorf("unexpected entity payload %s (%v)", env.Entity, err)
	}
}

func TestPublisher_Options(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "x", WithRoutingPrefix("billing"), WithoutPayload())

	ev := events.NewEvent(events.KindDeleted, &invoice{ID: 1})
	if got := p.RoutingKey(ev); got != "billing.invoice.deleted" {
		t.Errorf("unexpected routing key %q", got)
	}
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	var env Envelope
	_ = json.Unmarshal(ch.sent[0].msg.Body, &env)
	if env.Entity != nil {
		t.Errorf("expected payload omitted, got %s", env.Entity)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	broken := errors.New("channel closed")
	p := NewPublisher(&fakeChannel{err: broken}, "x", WithLogger(zap.New(core)))

	err := p.Handle(context.Background(), events.NewEvent(events.KindUpdated, &invoice{ID: 2}))
	if !errors.Is(err, broken) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
	if logs.FilterMessage("RMQ/PUBLISH FAILED").Len() != 1 {
		t.Error("expected failure to be logged")
	}
}

func TestPublisher_MarshalError(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "x")

	err := p.Handle(context.Background(), events.NewEvent(events.KindInserted, func() {}))
	if err == nil {
		t.Fatal("expected marshal error")
	}
	if len(ch.sent) != 0 {
		t.Error("nothing should be published")
	}
}

func TestDeclareExchange(t *testing.T) {
	d := &fakeDeclarer{}
	if err := DeclareExchange(d, Config{Exchange: "entities", Durable: true}); err != nil {
		t.Fatal(err)
	}
	if d.name != "entities" || d.kind != amqp.ExchangeTopic || !d.durable {
		t.Errorf("unexpected declaration %+v", d)
	}
}

func TestDial_RequiresConfig(t *testing.T) {
	if _, err := Dial(Config{}, nil); err == nil {
		t.Error("expected error for empty config")
	}
}
