package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

func TestRunAnnouncesThenPublishes(t *testing.T) {
	d := newTestDevice(t, 2)
	temp := mustSensor(t, d, "air-temp")
	mustNumber(t, d, "vent")
	temp.Publish(21.5)

	b := runDevice(t, d)

	cfg := b.nextPublish()
	if cfg.TopicName != "homeassistant/sensor/greenhouse/air-temp/config" || !cfg.Retain {
		t.Fatalf("first message = %q retain=%v", cfg.TopicName, cfg.Retain)
	}
	parsed, err := hass.ParseEntityConfig(cfg.Payload)
	if err != nil {
		t.Fatalf("ParseEntityConfig() error = %v", err)
	}
	if parsed.UniqueID != "greenhouse_air-temp" || parsed.StateTopic != "greenhouse/air-temp/state" {
		t.Errorf("sensor config = %+v", parsed)
	}
	if parsed.UnitOfMeasurement != "°C" || parsed.DeviceClass != "temperature" || parsed.StateClass != "measurement" {
		t.Errorf("sensor classes = %+v", parsed)
	}
	if parsed.CommandTopic != "" {
		t.Errorf("sensor should have no command topic, got %q", parsed.CommandTopic)
	}
	if parsed.Device.Name != "Greenhouse" || len(parsed.Device.Identifiers) != 1 || parsed.Device.Identifiers[0] != "greenhouse" {
		t.Errorf("device block = %+v", parsed.Device)
	}

	num := b.nextPublish()
	if num.TopicName != "homeassistant/number/greenhouse/vent/config" {
		t.Fatalf("second message topic = %q", num.TopicName)
	}
	parsedNum, err := hass.ParseEntityConfig(num.Payload)
	if err != nil {
		t.Fatalf("ParseEntityConfig() error = %v", err)
	}
	if parsedNum.CommandTopic != "greenhouse/vent/set" {
		t.Errorf("number command topic = %q", parsedNum.CommandTopic)
	}
	if parsedNum.Min == nil || *parsedNum.Min != 0 || parsedNum.Max == nil || *parsedNum.Max != 100 || parsedNum.Step == nil || *parsedNum.Step != 1 {
		t.Errorf("number range = %v %v %v", parsedNum.Min, parsedNum.Max, parsedNum.Step)
	}
	if parsedNum.Mode != "auto" {
		t.Errorf("number mode = %q", parsedNum.Mode)
	}

	online := b.nextPublish()
	if online.TopicName != "greenhouse/availability" || string(online.Payload) != hass.PayloadOnline || !online.Retain {
		t.Fatalf("availability = %q %q retain=%v", online.TopicName, online.Payload, online.Retain)
	}

	state := b.nextPublish()
	if state.TopicName != "greenhouse/air-temp/state" || string(state.Payload) != "21.5" || !state.Retain {
		t.Fatalf("state = %q %q retain=%v", state.TopicName, state.Payload, state.Retain)
	}

	waitFor(t, "steady state", func() bool { return d.State() == StateSteady })
}

func TestRunNoRedundantPublish(t *testing.T) {
	d := newTestDevice(t, 1)
	s := mustSensor(t, d, "air-temp")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	s.Publish(20)
	if got := b.nextPublish(); string(got.Payload) != "20" {
		t.Fatalf("payload = %q, want 20", got.Payload)
	}

	s.Publish(20)
	b.expectQuiet(50 * time.Millisecond)

	s.Publish(20.25)
	if got := b.nextPublish(); string(got.Payload) != "20.25" {
		t.Fatalf("payload = %q, want 20.25", got.Payload)
	}
}

func TestRunPublishesLatestValueOnce(t *testing.T) {
	d := newTestDevice(t, 1)
	s := mustSensor(t, d, "air-temp")
	for _, v := range []float32{1, 2, 3} {
		s.Publish(v)
	}

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	if got := b.nextPublish(); string(got.Payload) != "3" {
		t.Fatalf("payload = %q, want 3", got.Payload)
	}
	b.expectQuiet(50 * time.Millisecond)
}

func TestRunCommandRoundTrip(t *testing.T) {
	d := newTestDevice(t, 1)
	n := mustNumber(t, d, "vent")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	res := valueWait(context.Background(), n)
	b.send("greenhouse/vent/set", "73", 0, 0)

	got := recvWait(t, res)
	if got.err != nil || got.v != 73 {
		t.Fatalf("ValueWait() = %v, %v, want 73", got.v, got.err)
	}

	n.ValueSet(got.v)
	state := b.nextPublish()
	if state.TopicName != "greenhouse/vent/state" || string(state.Payload) != "73" {
		t.Fatalf("state = %q %q, want greenhouse/vent/state 73", state.TopicName, state.Payload)
	}
}

func TestRunAcknowledgesQoS1(t *testing.T) {
	d := newTestDevice(t, 1)
	n := mustNumber(t, d, "vent")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	b.send("greenhouse/vent/set", "12.5", 1, 7)

	ack, ok := b.next().(*packets.PubackPacket)
	if !ok {
		t.Fatal("expected PUBACK")
	}
	if ack.MessageID != 7 {
		t.Errorf("PUBACK id = %d, want 7", ack.MessageID)
	}

	v, err := n.ValueWait(context.Background())
	if err != nil || v != 12.5 {
		t.Fatalf("ValueWait() = %v, %v, want 12.5", v, err)
	}
}

func TestRunDiscardsUnusableMessages(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newTestDevice(t, 1, WithMetrics(NewMetrics(reg)))
	n := mustNumber(t, d, "vent")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	b.send("greenhouse/unknown/set", "1", 0, 0)
	b.send("other-device/vent/set", "1", 0, 0)
	b.send("greenhouse/vent/set", "warm", 0, 0)
	b.send("greenhouse/vent/set", "NaN", 0, 0)
	b.send("greenhouse/vent/set", "101", 0, 0)
	b.send("greenhouse/vent/set", "-1", 0, 0)
	b.send("greenhouse/vent/set", " 42 ", 0, 0)

	// Messages are routed in order, so the valid one arrives last.
	v, err := n.ValueWait(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("ValueWait() = %v, %v, want 42", v, err)
	}

	wantDiscards := map[string]float64{
		discardUnknownTopic: 2,
		discardMalformed:    2,
		discardOutOfRange:   2,
	}
	for reason, want := range wantDiscards {
		if got := counterValue(t, reg, "hadevice_inbound_discarded_total", reason); got != want {
			t.Errorf("discarded{reason=%s} = %v, want %v", reason, got, want)
		}
	}
	if got := counterValue(t, reg, "hadevice_commands_routed_total", "vent"); got != 1 {
		t.Errorf("commands routed = %v, want 1", got)
	}
	if d.State() != StateSteady {
		t.Errorf("State() = %v, want steady", d.State())
	}
}

func TestDiscoveryIdempotent(t *testing.T) {
	d := newTestDevice(t, 3)
	mustSensor(t, d, "a")
	mustNumber(t, d, "b")
	if _, err := d.CreateEnergySensor("c", "C", hass.EnergyKiloWattHour); err != nil {
		t.Fatal(err)
	}

	first, err := d.Announcements()
	if err != nil {
		t.Fatalf("Announcements() error = %v", err)
	}
	second, err := d.Announcements()
	if err != nil {
		t.Fatalf("Announcements() error = %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("announcement count = %d, %d, want 3", len(first), len(second))
	}
	for i := range first {
		if first[i].Topic != second[i].Topic || !bytes.Equal(first[i].Payload, second[i].Payload) {
			t.Errorf("announcement %d differs between calls", i)
		}
	}

	// A second Run announces the same bytes again.
	collect := func() [][]byte {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		w := &recordingTransport{}
		go func() {
			waitFor(t, "steady state", func() bool { return d.State() == StateSteady })
			cancel()
		}()
		if err := d.Run(ctx, w); !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want Canceled", err)
		}
		return w.frames()
	}
	run1, run2 := collect(), collect()
	if len(run1) != len(run2) || len(run1) < 4 {
		t.Fatalf("frames per run = %d, %d", len(run1), len(run2))
	}
	for i := range 4 {
		if !bytes.Equal(run1[i], run2[i]) {
			t.Errorf("frame %d differs between runs", i)
		}
	}
}

func TestRunTransportClosed(t *testing.T) {
	d := newTestDevice(t, 1)
	mustSensor(t, d, "a")

	b := runDevice(t, d)
	b.skipAnnouncement(1)
	waitFor(t, "steady state", func() bool { return d.State() == StateSteady })

	b.conn.Close()

	if err := b.wait(); !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("Run() error = %v, want ErrTransportClosed", err)
	}
	if d.State() != StateConnecting {
		t.Errorf("State() = %v, want connecting", d.State())
	}
}

func TestRunAlreadyRunning(t *testing.T) {
	d := newTestDevice(t, 1)
	mustSensor(t, d, "a")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	if err := d.Run(context.Background(), &recordingTransport{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunWriteFailureRequeues(t *testing.T) {
	d := newTestDevice(t, 1)
	s := mustSensor(t, d, "a")
	s.Publish(5)

	// Config and availability succeed, the state write fails.
	ft := &failingTransport{okWrites: 2}
	defer ft.Close()

	err := d.Run(context.Background(), ft)
	if !errors.Is(err, ErrTransportWrite) {
		t.Fatalf("Run() error = %v, want ErrTransportWrite", err)
	}

	snap := d.Snapshot()[0]
	if !snap.PublishPending {
		t.Error("entity should be pending again after a failed write")
	}
	if d.res.queue.len() != 1 {
		t.Errorf("queue len = %d, want 1", d.res.queue.len())
	}

	// The next run delivers it.
	b := runDevice(t, d)
	b.skipAnnouncement(1)
	if got := b.nextPublish(); string(got.Payload) != "5" {
		t.Fatalf("payload = %q, want 5", got.Payload)
	}
}

func TestRunAnnouncementWriteFailure(t *testing.T) {
	d := newTestDevice(t, 1)
	mustSensor(t, d, "a")

	ft := &failingTransport{okWrites: 0}
	defer ft.Close()

	if err := d.Run(context.Background(), ft); !errors.Is(err, ErrTransportWrite) {
		t.Fatalf("Run() error = %v, want ErrTransportWrite", err)
	}
	if d.State() != StateConnecting {
		t.Errorf("State() = %v, want connecting", d.State())
	}
}

func TestRunKeepAlive(t *testing.T) {
	d := newTestDevice(t, 1, WithKeepAlive(10*time.Millisecond))
	mustSensor(t, d, "a")

	b := runDevice(t, d)
	b.skipAnnouncement(1)

	if _, ok := b.next().(*packets.PingreqPacket); !ok {
		t.Fatal("expected PINGREQ")
	}
}

func TestRunRecordsPublishedStates(t *testing.T) {
	var mu sync.Mutex
	var got []StateRecord
	recorded := make(chan struct{}, 8)

	rec := StateRecorderFunc(func(_ context.Context, r StateRecord) error {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		recorded <- struct{}{}
		return nil
	})
	failing := StateRecorderFunc(func(context.Context, StateRecord) error {
		return errInjected
	})

	reg := prometheus.NewRegistry()
	at := time.Unix(1_700_000_000, 0)
	d := newTestDevice(t, 1,
		WithRecorder(rec),
		WithRecorder(failing),
		WithMetrics(NewMetrics(reg)),
		WithClock(func() time.Time { return at }),
	)
	s := mustSensor(t, d, "air-temp")
	s.Publish(19.5)

	b := runDevice(t, d)
	b.skipAnnouncement(1)
	b.nextPublish()

	select {
	case <-recorded:
	case <-time.After(testTimeout):
		t.Fatal("state was not recorded")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	want := StateRecord{DeviceID: "greenhouse", EntityID: "air-temp", Domain: hass.DomainSensor, Unit: "°C", Value: 19.5, At: at}
	if got[0] != want {
		t.Errorf("record = %+v, want %+v", got[0], want)
	}
	waitFor(t, "record error metric", func() bool {
		return counterValue(t, reg, "hadevice_state_record_errors_total", "") == 1
	})
}

func TestRecordWorkerDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	rec := StateRecorderFunc(func(context.Context, StateRecord) error {
		<-block
		return nil
	})

	reg := prometheus.NewRegistry()
	w := startRecordWorker(context.Background(), []StateRecorder{rec}, noopLogger{}, NewMetrics(reg))
	for range recordBuffer + 10 {
		w.submit(StateRecord{EntityID: "a"})
	}
	close(block)
	w.stop()

	dropped := counterValue(t, reg, "hadevice_state_records_dropped_total", "")
	if dropped < 9 {
		t.Errorf("dropped = %v, want at least 9", dropped)
	}

	var none *recordWorker
	none.submit(StateRecord{})
	none.stop()
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{73, "73"},
		{21.5, "21.5"},
		{0.1, "0.1"},
		{-3.25, "-3.25"},
		{0, "0"},
		{1013.25, "1013.25"},
	}
	for _, tt := range tests {
		if got := string(FormatValue(tt.in)); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Test transports
// =============================================================================

// recordingTransport captures every write and blocks reads until closed.
type recordingTransport struct {
	mu     sync.Mutex
	writes [][]byte
	block  chan struct{}
	once   sync.Once
}

func (r *recordingTransport) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, bytes.Clone(p))
	return len(p), nil
}

func (r *recordingTransport) Read([]byte) (int, error) {
	r.once.Do(func() { r.block = make(chan struct{}) })
	<-r.block
	return 0, io.EOF
}

func (r *recordingTransport) frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// failingTransport accepts okWrites writes and fails the rest. Reads block
// until Close.
type failingTransport struct {
	okWrites int
	mu       sync.Mutex
	pr       *io.PipeReader
	pw       *io.PipeWriter
	once     sync.Once
}

func (f *failingTransport) init() {
	f.once.Do(func() { f.pr, f.pw = io.Pipe() })
}

func (f *failingTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.okWrites == 0 {
		return 0, errInjected
	}
	f.okWrites--
	return len(p), nil
}

func (f *failingTransport) Read(p []byte) (int, error) {
	f.init()
	return f.pr.Read(p)
}

func (f *failingTransport) Close() {
	f.init()
	f.pw.Close()
}

// counterValue reads a counter from reg. label selects the series by its
// single label value; empty selects an unlabelled counter.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := m.GetLabel()
			if label == "" && len(labels) == 0 {
				return m.GetCounter().GetValue()
			}
			if len(labels) == 1 && labels[0].GetValue() == label {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
