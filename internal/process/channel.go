package process

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/tidwall/gjson"
)

// ErrChannelClosed is returned by Send after Close.
var ErrChannelClosed = errors.New("message channel closed")

// maxMessageSize bounds a single line read from the child.
const maxMessageSize = 1 << 20

// Channel exchanges newline-delimited JSON messages with a child.
//
// String messages are delivered as their decoded value, so the child's
// process.send("exit") arrives as "exit". Other JSON values are delivered
// raw.
type Channel struct {
	conn io.ReadWriteCloser

	wmu      sync.Mutex
	messages chan string
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewChannel starts reading messages from conn.
func NewChannel(conn io.ReadWriteCloser) *Channel {
	c := &Channel{
		conn:     conn,
		messages: make(chan string, 16),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send encodes msg as a JSON string followed by a newline.
func (c *Channel) Send(msg string) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// Messages returns the channel of received messages. It is closed at end of
// file or after Close.
func (c *Channel) Messages() <-chan string {
	return c.messages
}

// Close closes the connection.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Channel) readLoop() {
	defer close(c.messages)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}

		value := gjson.ParseBytes(line)
		msg := value.Raw
		if value.Type == gjson.String {
			msg = value.String()
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}
