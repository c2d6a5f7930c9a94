package broadcast

import (
	"testing"

	"resumate/internal/parser"
)

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroadcaster(4, nil)
	b.Publish("job-1", parser.NewProgress("job-1", parser.StageTextExtraction, 10, "starting"))
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(4, nil)
	first := b.Subscribe("job-1")
	second := b.Subscribe("job-1")
	other := b.Subscribe("job-2")

	event := parser.NewProgress("job-1", parser.StageTextExtraction, 30, "extracting")
	b.Publish("job-1", event)

	for _, sub := range []*Subscriber{first, second} {
		select {
		case got := <-sub.Events():
			if got.Percent != 30 {
				t.Errorf("percent: got %d, want 30", got.Percent)
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case <-other.Events():
		t.Fatal("subscriber of another job must not receive the event")
	default:
	}
}

func TestSlowSubscriberIsPrunedWithoutBlocking(t *testing.T) {
	b := NewBroadcaster(1, nil)
	slow := b.Subscribe("job-1")
	healthy := b.Subscribe("job-1")

	// 填满迟滞订阅者的缓冲。
	b.Publish("job-1", parser.NewProgress("job-1", parser.StageTextExtraction, 10, "one"))
	<-healthy.Events()

	// 第二次发布时迟滞订阅者被剔除，健康订阅者照常收到。
	b.Publish("job-1", parser.NewProgress("job-1", parser.StageTextExtraction, 30, "two"))

	if got := b.SubscriberCount("job-1"); got != 1 {
		t.Errorf("subscriber count: got %d, want 1", got)
	}

	select {
	case got := <-healthy.Events():
		if got.Percent != 30 {
			t.Errorf("percent: got %d, want 30", got.Percent)
		}
	default:
		t.Fatal("healthy subscriber missed the event")
	}

	// 迟滞订阅者先读到缓冲里的第一条，随后通道关闭。
	if got, ok := <-slow.Events(); !ok || got.Percent != 10 {
		t.Fatalf("slow subscriber buffered event: got %+v ok=%v", got, ok)
	}
	if _, ok := <-slow.Events(); ok {
		t.Error("slow subscriber channel must be closed after pruning")
	}
}

func TestUnsubscribeClosesChannelAndPrunesRegistry(t *testing.T) {
	b := NewBroadcaster(4, nil)
	sub := b.Subscribe("job-1")

	b.Unsubscribe("job-1", sub)
	if _, ok := <-sub.Events(); ok {
		t.Error("channel must be closed after unsubscribe")
	}
	if got := b.SubscriberCount("job-1"); got != 0 {
		t.Errorf("subscriber count: got %d, want 0", got)
	}

	// 重复退订无害。
	b.Unsubscribe("job-1", sub)
}

func TestLateSubscriberSeesNoHistory(t *testing.T) {
	b := NewBroadcaster(4, nil)
	b.Publish("job-1", parser.NewProgress("job-1", parser.StageTextExtraction, 10, "early"))

	late := b.Subscribe("job-1")
	select {
	case <-late.Events():
		t.Fatal("late subscriber must not receive replayed events")
	default:
	}
}
