package notify

import (
	"fmt"
	"sync"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-notifications"
	"github.com/mattsolo1/grove-watch/internal/config"
	"github.com/sirupsen/logrus"
)

// Notification is a single user-facing message.
type Notification struct {
	Title    string
	Message  string
	Level    string // "info", "warning", "error"
	Priority string // ntfy priority, "default" when empty
	Tags     []string
}

// Notifier delivers a notification to the operator.
type Notifier interface {
	Notify(n Notification) error
}

// NtfyNotifier pushes notifications through an ntfy topic.
type NtfyNotifier struct {
	URL   string
	Topic string
}

func (n *NtfyNotifier) Notify(note Notification) error {
	priority := note.Priority
	if priority == "" {
		priority = "default"
	}
	if err := notifications.SendNtfy(n.URL, n.Topic, note.Title, note.Message, priority, note.Tags); err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	return nil
}

// SystemNotifier shows desktop notifications for configured levels.
type SystemNotifier struct {
	Levels []string
}

func (n *SystemNotifier) Notify(note Notification) error {
	if !n.levelEnabled(note.Level) {
		return nil
	}
	if err := notifications.SendSystem("Grove Watch", note.Message, note.Level); err != nil {
		return fmt.Errorf("failed to send system notification: %w", err)
	}
	return nil
}

func (n *SystemNotifier) levelEnabled(level string) bool {
	for _, enabled := range n.Levels {
		if level == enabled {
			return true
		}
	}
	return false
}

// MultiNotifier fans a notification out to every backend. All backends are
// attempted; the first error is returned.
type MultiNotifier struct {
	Backends []Notifier
}

func (m *MultiNotifier) Notify(note Notification) error {
	var firstErr error
	for _, backend := range m.Backends {
		if err := backend.Notify(note); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopNotifier discards notifications. Used when no backend is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) error { return nil }

// FromConfig builds the notifier stack described by the configuration.
func FromConfig(cfg *config.Config) Notifier {
	var backends []Notifier
	if cfg.Ntfy.Enabled && cfg.Ntfy.Topic != "" {
		backends = append(backends, &NtfyNotifier{URL: cfg.Ntfy.URL, Topic: cfg.Ntfy.Topic})
	}
	if cfg.System.Enabled {
		backends = append(backends, &SystemNotifier{Levels: cfg.System.Levels})
	}
	switch len(backends) {
	case 0:
		return NopNotifier{}
	case 1:
		return backends[0]
	default:
		return &MultiNotifier{Backends: backends}
	}
}

// Supervisor dispatches notifications on background goroutines without
// letting their errors go unobserved. The caller never waits for delivery;
// failures are drained by a single consumer goroutine and logged.
type Supervisor struct {
	notifier Notifier
	errs     chan error
	done     chan struct{}
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// NewSupervisor starts the error consumer for the given notifier.
func NewSupervisor(notifier Notifier) *Supervisor {
	s := &Supervisor{
		notifier: notifier,
		errs:     make(chan error, 16),
		done:     make(chan struct{}),
		log:      logging.NewLogger("watch.notify"),
	}
	go s.drain()
	return s
}

func (s *Supervisor) drain() {
	defer close(s.done)
	for err := range s.errs {
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("Notification delivery failed")
		}
	}
}

// Dispatch delivers n in the background. Delivery errors are logged, never
// returned; a full error channel drops the error on the floor only after
// logging it synchronously.
func (s *Supervisor) Dispatch(n Notification) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.notifier.Notify(n)
		select {
		case s.errs <- err:
		default:
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"error": err.Error(),
				}).Warn("Notification delivery failed (supervisor backlogged)")
			}
		}
	}()
}

// Close waits for in-flight deliveries and stops the error consumer. Only
// call once no further Dispatch calls can occur.
func (s *Supervisor) Close() {
	s.wg.Wait()
	close(s.errs)
	<-s.done
}
