package proto

import "time"

// Message is the record exchanged on the multicast group.
type Message struct {
	SenderID  string
	Timestamp int64 // seconds since the Unix epoch
	Content   string
}

// NewMessage stamps a message with the current time.
func NewMessage(senderID, content string) Message {
	return Message{
		SenderID:  senderID,
		Timestamp: time.Now().Unix(),
		Content:   content,
	}
}

// Age returns how long ago the message was stamped. Clock skew between
// peers never yields a negative age.
func (m Message) Age() time.Duration {
	age := time.Now().Unix() - m.Timestamp
	if age < 0 {
		return 0
	}
	return time.Duration(age) * time.Second
}
