package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/eventstream"
	"github.com/papercomputeco/proofpilot/pkg/eventstream/kafka"
)

type recordingWriter struct {
	messages []kafkago.Message
	deadline bool
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, w.deadline = ctx.Deadline()
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	event := func() *eventstream.CompletionFinishedEvent {
		return eventstream.NewCompletionFinishedEvent(time.Now(),
			eventstream.HoleRef{ID: "hole-7", URI: "file:///a.v"},
			eventstream.Outcome{Status: "SEARCH_FAILED"}, nil)
	}

	It("writes one keyed JSON message per event", func() {
		w := &recordingWriter{}
		p := kafka.NewPublisherWithWriter(w, time.Second)

		ev := event()
		Expect(p.PublishCompletion(context.Background(), ev)).To(Succeed())
		Expect(w.messages).To(HaveLen(1))
		Expect(w.deadline).To(BeTrue())

		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("hole-7"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeCompletionFinished)}))

		var decoded eventstream.CompletionFinishedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(ev.EventID))
		Expect(decoded.Outcome.Status).To(Equal("SEARCH_FAILED"))

		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})

	It("rejects nil events", func() {
		p := kafka.NewPublisherWithWriter(&recordingWriter{}, time.Second)
		Expect(p.PublishCompletion(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("wraps writer failures", func() {
		boom := errors.New("broker down")
		p := kafka.NewPublisherWithWriter(&recordingWriter{err: boom}, time.Second)
		err := p.PublishCompletion(context.Background(), event())
		Expect(errors.Is(err, boom)).To(BeTrue())
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer for the configured brokers", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})
})
