package protocol_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"mediasuite/internal/protocol"
)

func TestCreateMessageAssignsFreshIdentity(t *testing.T) {
	p := protocol.New("orchestrator")
	first := p.CreateMessage("", "video-agent", protocol.ActionProcess, map[string]any{"job_id": "j1"})
	second := p.CreateMessage("", "video-agent", protocol.ActionProcess, map[string]any{"job_id": "j1"})

	if first.ID() == "" || first.ID() == second.ID() {
		t.Fatalf("expected unique message ids, got %q and %q", first.ID(), second.ID())
	}
	if first.Header.FromID != "orchestrator" {
		t.Fatalf("expected sender to default to participant, got %q", first.Header.FromID)
	}
	if first.Header.ProtocolVersion != protocol.Version {
		t.Fatalf("unexpected version %q", first.Header.ProtocolVersion)
	}
	if first.Header.Priority != protocol.PriorityNormal || first.Header.RequiresAck || first.IsReply() {
		t.Fatalf("unexpected defaults: %+v", first.Header)
	}
	if first.Header.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
	if len(p.Log()) != 0 {
		t.Fatal("CreateMessage must not send")
	}
}

func TestCreateMessageCopiesData(t *testing.T) {
	p := protocol.New("orchestrator")
	data := map[string]any{"k": "v"}
	env := p.CreateMessage("", "x", "noop", data)
	data["k"] = "changed"
	if env.DataString("k") != "v" {
		t.Fatalf("envelope data shares caller map: %v", env.Payload.Data)
	}
}

func TestLogSharesNoNestedValues(t *testing.T) {
	p := protocol.New("orchestrator")
	results := map[string]any{"codec": "h264"}
	times := []float64{0, 2.5}
	p.Send(context.Background(), p.CreateMessage("", "x", protocol.ActionProcessComplete,
		map[string]any{"results": results, "key_frame_times": times}))
	results["codec"] = "changed"
	times[1] = 99

	first := p.Log()[0]
	nested := first.Payload.Data["results"].(map[string]any)
	nested["codec"] = "mutated by reader"

	again := p.Log()[0]
	if got := again.Payload.Data["results"].(map[string]any)["codec"]; got != "h264" {
		t.Fatalf("logged results changed to %v", got)
	}
	if got := again.Payload.Data["key_frame_times"].([]any)[1]; got != 2.5 {
		t.Fatalf("logged key frame time changed to %v", got)
	}
}

func TestSendGrowsLogAndTracksAcks(t *testing.T) {
	p := protocol.New("orchestrator")
	ctx := context.Background()

	plain := p.CreateMessage("", "audio-agent", protocol.ActionProcess, nil)
	acked := p.CreateMessage("", "audio-agent", protocol.ActionProcess, nil, protocol.WithRequiresAck(), protocol.WithPriority(protocol.PriorityHigh))
	p.Send(ctx, plain)
	p.Send(ctx, acked)
	p.Send(ctx, plain)

	log := p.Log()
	if len(log) != 3 {
		t.Fatalf("expected every send to append, got %d entries", len(log))
	}
	if log[1].ID() != acked.ID() || log[1].Header.Priority != protocol.PriorityHigh {
		t.Fatalf("log out of order: %+v", log[1].Header)
	}
	if pending := p.Pending(); !slices.Equal(pending, []string{acked.ID()}) {
		t.Fatalf("unexpected pending set %v", pending)
	}
	stats := p.Stats()
	if stats.TotalMessages != 3 || stats.PendingAcks != 1 || stats.ConnectedPeers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReceiveAckResolvesOnlyMatchingID(t *testing.T) {
	p := protocol.New("orchestrator")
	ctx := context.Background()

	a := p.CreateMessage("", "video-agent", protocol.ActionProcess, nil, protocol.WithRequiresAck())
	b := p.CreateMessage("", "audio-agent", protocol.ActionProcess, nil, protocol.WithRequiresAck())
	p.Send(ctx, a)
	p.Send(ctx, b)

	peer := protocol.New("video-agent")
	ack := peer.CreateMessage("", "orchestrator", protocol.ActionAck, map[string]any{"ack_for": a.ID()}, protocol.WithCorrelationID(a.ID()))
	if _, ok := p.Receive(ctx, ack); ok {
		t.Fatal("ack without handler should not report a result")
	}
	if p.IsPending(a.ID()) {
		t.Fatal("expected acknowledged id to be cleared")
	}
	if !p.IsPending(b.ID()) {
		t.Fatal("unrelated id must stay pending")
	}

	unknown := peer.CreateMessage("", "orchestrator", protocol.ActionAck, nil, protocol.WithCorrelationID("does-not-exist"))
	p.Receive(ctx, unknown)
	if !slices.Equal(p.Pending(), []string{b.ID()}) {
		t.Fatalf("unknown ack changed pending set: %v", p.Pending())
	}
}

func TestReceiveDispatchesToHandler(t *testing.T) {
	p := protocol.New("video-agent")
	var seen string
	p.RegisterHandler(protocol.ActionProcess, func(_ context.Context, env protocol.Envelope) (map[string]any, error) {
		seen = env.DataString("job_id")
		return map[string]any{"status": "ok"}, nil
	})

	sender := protocol.New("orchestrator")
	env := sender.CreateMessage("", "video-agent", protocol.ActionProcess, map[string]any{"job_id": "j7"})
	result, ok := p.Receive(context.Background(), env)
	if !ok || result["status"] != "ok" {
		t.Fatalf("unexpected dispatch result %v %v", result, ok)
	}
	if seen != "j7" {
		t.Fatalf("handler saw %q", seen)
	}
	if len(p.Log()) != 1 {
		t.Fatalf("expected received envelope in log, got %d", len(p.Log()))
	}
}

func TestReceiveAcknowledgesBeforeDispatch(t *testing.T) {
	p := protocol.New("video-agent")
	var logLenAtDispatch int
	p.RegisterHandler(protocol.ActionProcess, func(context.Context, protocol.Envelope) (map[string]any, error) {
		logLenAtDispatch = len(p.Log())
		return nil, nil
	})
	sender := protocol.New("orchestrator")
	env := sender.CreateMessage("", "video-agent", protocol.ActionProcess, nil, protocol.WithRequiresAck())
	p.Receive(context.Background(), env)

	log := p.Log()
	if len(log) != 2 {
		t.Fatalf("expected received envelope and ack, got %d", len(log))
	}
	ack := log[1]
	if ack.Action() != protocol.ActionAck || ack.Header.CorrelationID != env.ID() || ack.Header.ToID != "orchestrator" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if ack.DataString("ack_for") != env.ID() {
		t.Fatalf("ack data missing original id: %v", ack.Payload.Data)
	}
	if logLenAtDispatch != 2 {
		t.Fatalf("ack should be sent before dispatch, log had %d entries", logLenAtDispatch)
	}
}

func TestReceiveHandlerFailureSendsErrorEnvelope(t *testing.T) {
	for name, handler := range map[string]protocol.Handler{
		"error": func(context.Context, protocol.Envelope) (map[string]any, error) {
			return nil, errors.New("disk full")
		},
		"panic": func(context.Context, protocol.Envelope) (map[string]any, error) {
			panic("disk full")
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := protocol.New("audio-agent")
			p.RegisterHandler(protocol.ActionProcess, handler)
			sender := protocol.New("orchestrator")
			env := sender.CreateMessage("", "audio-agent", protocol.ActionProcess, nil)

			result, ok := p.Receive(context.Background(), env)
			if ok || result != nil {
				t.Fatalf("failure must not surface a result: %v %v", result, ok)
			}
			log := p.Log()
			if len(log) != 2 {
				t.Fatalf("expected error reply in log, got %d entries", len(log))
			}
			reply := log[1]
			if reply.Action() != protocol.ActionError || reply.Header.CorrelationID != env.ID() {
				t.Fatalf("unexpected reply %+v", reply)
			}
			if reply.DataString("original_message_id") != env.ID() || reply.DataString("error") == "" {
				t.Fatalf("unexpected reply data %v", reply.Payload.Data)
			}
		})
	}
}

func TestFailedErrorHandlerIsNotAnswered(t *testing.T) {
	p := protocol.New("audio-agent")
	p.RegisterHandler(protocol.ActionError, func(context.Context, protocol.Envelope) (map[string]any, error) {
		return nil, errors.New("cannot handle error")
	})
	env := protocol.New("orchestrator").CreateMessage("", "audio-agent", protocol.ActionError,
		map[string]any{"error": "boom"})

	if result, ok := p.Receive(context.Background(), env); ok || result != nil {
		t.Fatalf("failure must not surface a result: %v %v", result, ok)
	}
	if log := p.Log(); len(log) != 1 {
		t.Fatalf("error envelopes must not be answered, log has %d entries: %v", len(log), log)
	}
}

func TestBusFailingErrorHandlersDoNotLoop(t *testing.T) {
	bus := protocol.NewBus(nil)
	fail := func(context.Context, protocol.Envelope) (map[string]any, error) {
		return nil, errors.New("cannot handle")
	}
	a := protocol.New("video-agent")
	b := protocol.New("audio-agent")
	for _, p := range []*protocol.Protocol{a, b} {
		p.RegisterHandler(protocol.ActionProcess, fail)
		p.RegisterHandler(protocol.ActionError, fail)
		if err := bus.Attach(p); err != nil {
			t.Fatalf("Attach %s: %v", p.ID(), err)
		}
	}

	a.Send(context.Background(), a.CreateMessage("", "audio-agent", protocol.ActionProcess, nil))

	// b answers the failed process with one error; a's failing error
	// handler ends the exchange.
	if got := actions(b.Log()); !slices.Equal(got, []string{protocol.ActionProcess, protocol.ActionError}) {
		t.Fatalf("audio-agent log = %v", got)
	}
	if got := actions(a.Log()); !slices.Equal(got, []string{protocol.ActionProcess, protocol.ActionError}) {
		t.Fatalf("video-agent log = %v", got)
	}
}

func actions(envs []protocol.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Action())
	}
	return out
}

func TestReceiveWithoutHandlerIsDropped(t *testing.T) {
	p := protocol.New("metadata-agent")
	sender := protocol.New("orchestrator")
	env := sender.CreateMessage("", "metadata-agent", "unknown", map[string]any{"x": "y"})

	result, ok := p.Receive(context.Background(), env)
	if ok || result != nil {
		t.Fatalf("expected no result, got %v %v", result, ok)
	}
	log := p.Log()
	if len(log) != 1 || log[0].ID() != env.ID() {
		t.Fatalf("expected only the received envelope to be logged, got %d entries", len(log))
	}
}

func TestRegisterHandlerLastWins(t *testing.T) {
	p := protocol.New("storyboard-agent")
	p.RegisterHandler("status", func(context.Context, protocol.Envelope) (map[string]any, error) {
		return map[string]any{"v": "first"}, nil
	})
	p.RegisterHandler("status", func(context.Context, protocol.Envelope) (map[string]any, error) {
		return map[string]any{"v": "second"}, nil
	})
	env := protocol.New("orchestrator").CreateMessage("", "storyboard-agent", "status", nil)
	result, _ := p.Receive(context.Background(), env)
	if result["v"] != "second" {
		t.Fatalf("expected last registration to win, got %v", result)
	}
	if p.Stats().Handlers != 1 {
		t.Fatalf("expected one handler, got %d", p.Stats().Handlers)
	}
}

func TestCapabilitiesSnapshotInMetadata(t *testing.T) {
	p := protocol.New("video-agent")
	p.RegisterHandler("status", func(context.Context, protocol.Envelope) (map[string]any, error) { return nil, nil })
	p.RegisterHandler("process", func(context.Context, protocol.Envelope) (map[string]any, error) { return nil, nil })

	env := p.CreateMessage("", "orchestrator", "status", nil)
	caps, ok := env.Payload.Metadata["agent_capabilities"].([]any)
	if !ok || !slices.Equal(caps, []any{"process", "status"}) {
		t.Fatalf("unexpected capabilities metadata %v", env.Payload.Metadata)
	}
}
