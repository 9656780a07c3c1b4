package event

// Delivery identifies which transport event carried a context payload.
type Delivery int

const (
	// DeliveryMessage is an immediate message, only sent while the companion
	// is reachable.
	DeliveryMessage Delivery = iota
	// DeliveryContextLive is a durable context update received while active.
	DeliveryContextLive
	// DeliveryContextOnActivation is the durable context already stored when
	// the companion activated.
	DeliveryContextOnActivation
)

func (d Delivery) String() string {
	switch d {
	case DeliveryMessage:
		return "message"
	case DeliveryContextLive:
		return "application_context"
	case DeliveryContextOnActivation:
		return "application_context_on_activation"
	default:
		return "unknown"
	}
}
