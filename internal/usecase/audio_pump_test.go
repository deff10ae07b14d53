package usecase

import (
	"errors"
	"testing"

	"memoai/internal/domain"
)

func TestPumpAudioChunksForwardsUntilEOF(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("one"), []byte("two")}}
	stream := &recordingStreamingSession{fakeStreamingSession: newFakeStreamingSession()}
	events := &fakeEventSink{}
	done := make(chan struct{})

	pumpAudioChunks(audio, stream, 512, events, done)

	<-done
	if len(stream.sent) != 2 {
		t.Fatalf("expected 2 chunks sent, got %d", len(stream.sent))
	}
	if string(stream.sent[0]) != "one" || string(stream.sent[1]) != "two" {
		t.Fatalf("unexpected payloads: %q", stream.sent)
	}
	if len(events.snapshotErrors()) != 0 {
		t.Fatalf("EOF must not surface as an error: %+v", events.snapshotErrors())
	}
}

func TestPumpAudioChunksReportsSendFailure(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("one"), []byte("two")}}
	stream := &recordingStreamingSession{
		fakeStreamingSession: newFakeStreamingSession(),
		sendErr:              errors.New("socket closed"),
	}
	events := &fakeEventSink{}
	done := make(chan struct{})

	pumpAudioChunks(audio, stream, 512, events, done)

	<-done
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeAudioStream {
		t.Fatalf("expected one audio_stream error, got %+v", errs)
	}
}

type recordingStreamingSession struct {
	*fakeStreamingSession
	sent    [][]byte
	sendErr error
}

func (r *recordingStreamingSession) SendAudio(chunk []byte) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.sent = append(r.sent, buf)
	return nil
}
