package core

// Client is a tap observer as seen by the core layer.
type Client struct {
	ID     string
	Events chan *Event
}

// NewClient constructs an observer with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 32),
	}
}
