// Package broker hands a channel from a producer goroutine to a single
// consumer. The question handler produces reveal frames while the answer is
// "spoken"; the SSE handler consumes them. If the SSE connection drops and
// reconnects mid-answer, the late subscriber blocks until the producer is
// done and then falls back to the completed testimony from the session state.
package broker

type publication[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

type subscription[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan chan TPayload
}

// Broker passes a channel with ID from the producer to the first consumer.
// Subsequent consumers block until the producer is finished so that they can
// resolve the situation, e.g. by reading the recorded testimony instead.
type Broker[TID comparable, TPayload any] struct {
	stopChannel      chan struct{}
	publishChannel   chan publication[TID, TPayload]
	unpublishChannel chan TID
	subscribeChannel chan subscription[TID, TPayload]
}

// New creates a Broker. Call Start in a goroutine to run it and Stop to
// shut it down.
func New[TID comparable, TPayload any]() *Broker[TID, TPayload] {
	return &Broker[TID, TPayload]{
		stopChannel:      make(chan struct{}),
		publishChannel:   make(chan publication[TID, TPayload]),
		unpublishChannel: make(chan TID),
		subscribeChannel: make(chan subscription[TID, TPayload]),
	}
}

// Start listens for publish, unpublish, and subscribe events. It blocks until
// Stop is called, so it should run in a goroutine.
func (b *Broker[TID, TPayload]) Start() {
	publishedChannels := map[TID]chan TPayload{}
	subscriberLists := map[TID][]chan chan TPayload{}
	for {
		select {
		case <-b.stopChannel:
			return

		case sub := <-b.subscribeChannel:
			c := publishedChannels[sub.ID]
			if c == nil {
				// Signal to the subscriber that the producer is finished (or hasn't started yet).
				close(sub.Channel)
				break
			}
			subscribers := subscriberLists[sub.ID]
			if subscribers == nil {
				// First subscriber gets the channel from the producer.
				subscriberLists[sub.ID] = []chan chan TPayload{sub.Channel}
				sub.Channel <- c
			} else {
				// Subsequent subscribers block until the producer is finished.
				subscriberLists[sub.ID] = append(subscribers, sub.Channel)
			}

		case pub := <-b.publishChannel:
			publishedChannels[pub.ID] = pub.Channel

		case id := <-b.unpublishChannel:
			if subscribers := subscriberLists[id]; len(subscribers) > 1 {
				// Release the subscribers that were waiting for the producer.
				for _, subscriber := range subscribers[1:] {
					close(subscriber)
				}
			}
			delete(publishedChannels, id)
			delete(subscriberLists, id)
		}
	}
}

// Stop the goroutine that handles the broker.
func (b *Broker[TID, TPayload]) Stop() {
	close(b.stopChannel)
}

// Subscribe to the channel with ID. The returned channel delivers the
// producer's channel, or closes without a value when the producer is not
// publishing (or has finished).
func (b *Broker[TID, TPayload]) Subscribe(id TID) chan chan TPayload {
	channel := make(chan chan TPayload, 1)
	b.subscribeChannel <- subscription[TID, TPayload]{
		ID:      id,
		Channel: channel,
	}
	return channel
}

// Publish the channel with ID. The channel will be handed to the first
// subscriber. An unbuffered channel blocks the producer until a consumer
// arrives; pair it with a timeout if the consumers are unreliable.
func (b *Broker[TID, TPayload]) Publish(id TID, channel chan TPayload) {
	b.publishChannel <- publication[TID, TPayload]{
		ID:      id,
		Channel: channel,
	}
}

// Unpublish removes the channel with ID and releases any blocked subscribers.
func (b *Broker[TID, TPayload]) Unpublish(id TID) {
	b.unpublishChannel <- id
}
