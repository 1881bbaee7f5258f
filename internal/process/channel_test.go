package process

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestChannel_ReceiveAndSend(t *testing.T) {
	parent, child := net.Pipe()
	defer child.Close()

	ch := NewChannel(parent)
	defer ch.Close()

	go func() {
		_, _ = child.Write([]byte("\"exit\"\nnot json\n{\"cmd\":\"NODE_HANDLE_ACK\"}\n\n"))
	}()

	want := []string{"exit", `{"cmd":"NODE_HANDLE_ACK"}`}
	for _, w := range want {
		select {
		case got := <-ch.Messages():
			if got != w {
				t.Errorf("message = %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(child).ReadString('\n')
		lines <- line
	}()
	if err := ch.Send("beforeExit"); err != nil {
		t.Fatalf("Send error = %v", err)
	}
	select {
	case line := <-lines:
		if line != "\"beforeExit\"\n" {
			t.Errorf("child read %q, want %q", line, "\"beforeExit\"\n")
		}
	case <-time.After(time.Second):
		t.Fatal("child did not receive the message")
	}
}

func TestChannel_EOFClosesMessages(t *testing.T) {
	parent, child := net.Pipe()
	ch := NewChannel(parent)
	defer ch.Close()

	child.Close()

	select {
	case _, ok := <-ch.Messages():
		if ok {
			t.Error("expected closed messages channel")
		}
	case <-time.After(time.Second):
		t.Fatal("messages channel not closed at EOF")
	}
}

func TestChannel_SendAfterClose(t *testing.T) {
	parent, child := net.Pipe()
	defer child.Close()

	ch := NewChannel(parent)
	if err := ch.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := ch.Send("beforeExit"); err != ErrChannelClosed {
		t.Errorf("Send after Close error = %v, want ErrChannelClosed", err)
	}
}
