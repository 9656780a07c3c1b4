package messaging

type consumeOptions struct {
	// group identifies the Kafka consumer group.
	group string

	// channel is the NSQ channel name.
	channel string

	// subscription is the Google Pub/Sub subscription name.
	subscription string

	concurrency int

	ready func()
}

// ConsumeOption configures consumer behavior.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&co)
	}
	if co.concurrency <= 0 {
		co.concurrency = 1
	}
	return co
}

func (o consumeOptions) markReady() {
	if o.ready != nil {
		o.ready()
	}
}

// WithGroup sets the consumer group name (Kafka). Broadcast consumers need a
// group unique per process.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithChannel sets the channel name (NSQ).
func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

// WithSubscription sets the subscription name (Google Pub/Sub).
func WithSubscription(subscription string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = subscription }
}

// WithConcurrency sets how many handler goroutines process messages in parallel.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithReady registers fn to be called once the subscription is established.
func WithReady(fn func()) ConsumeOption {
	return func(o *consumeOptions) { o.ready = fn }
}
