package transport

import (
	"testing"

	"github.com/fpt/klein-bot/internal/session"
)

func TestBusPublishAndClose(t *testing.T) {
	b := NewBus(2)
	if !b.Publish(session.GroupsUpdate{GroupIDs: []string{"g"}}) {
		t.Fatal("publish on open bus failed")
	}
	b.Close()
	b.Close()

	if b.Publish(session.GroupsUpdate{}) {
		t.Error("publish after close should be dropped")
	}
	batch, ok := <-b.Events()
	if !ok || len(batch) != 1 || batch[0].Name() != session.EventGroupsUpdate {
		t.Errorf("buffered batch = %v, %v", batch, ok)
	}
	if _, ok := <-b.Events(); ok {
		t.Error("events should be closed")
	}
}

func TestBusCloseUnblocksPublish(t *testing.T) {
	b := NewBus(1)
	b.Publish(session.ChatsUpsert{})

	done := make(chan bool)
	go func() { done <- b.Publish(session.ChatsUpsert{}) }()
	b.Close()
	if <-done {
		t.Error("blocked publish should report false after close")
	}
}
